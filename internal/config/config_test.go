package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// chdir переносит тест в пустой каталог, чтобы не подхватить чужие .env и config/chat.yaml.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("APP_ENV", "production") // skip .env lookup in parent dirs
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://chat.example")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	chdir(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/chat")

	cfg := Load()
	req.Equal(":8080", cfg.ServerAddr)
	req.Equal("postgres", cfg.Store)
	req.Equal("memory", cfg.Profiles.Backend)
	req.Equal(10*time.Minute, cfg.Profiles.TTL)
	req.Equal(5*time.Second, cfg.Identity.Timeout)
	req.False(cfg.Profiles.Coalesce)
	req.Equal(20, cfg.DBMaxConnections())
	req.Empty(cfg.Audit.NATSURL)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	req := require.New(t)
	dir := chdir(t)
	req.NoError(os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	req.NoError(os.WriteFile(filepath.Join(dir, "config", "chat.yaml"), []byte(`
server_addr: ":9090"
store: memory
profile_cache: redis
profile_ttl_seconds: 30
resolver_coalesce: true
nats_url: nats://bus:4222
`), 0o644))
	t.Setenv("PROFILE_TTL_SECONDS", "45")
	t.Setenv("STORE", "MEMORY")

	cfg := Load()
	req.Equal(":9090", cfg.ServerAddr)
	req.Equal("memory", cfg.Store)
	req.Equal("redis", cfg.Profiles.Backend)
	req.Equal(45*time.Second, cfg.Profiles.TTL)
	req.True(cfg.Profiles.Coalesce)
	req.Equal("nats://bus:4222", cfg.Audit.NATSURL)
	req.Equal("chat.requests", cfg.Audit.Subject)
}

func TestLoad_UnknownBackendsFallBack(t *testing.T) {
	req := require.New(t)
	chdir(t)
	t.Setenv("STORE", "cassandra")
	t.Setenv("PROFILE_CACHE", "memcached")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/chat")

	cfg := Load()
	req.Equal("postgres", cfg.Store)
	req.Equal("memory", cfg.Profiles.Backend)
}

func TestLoadEnv_DoesNotOverride(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	req.NoError(err)
	req.NoError(os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	req.NoError(os.WriteFile(filepath.Join(dir, ".env"), []byte("CHAT_TEST_A=from-file\nCHAT_TEST_B=from-file\n"), 0o644))
	t.Setenv("APP_ENV", "")
	t.Setenv("CHAT_TEST_A", "from-env")
	t.Setenv("CHAT_TEST_B", "")
	req.NoError(os.Unsetenv("CHAT_TEST_B"))

	loadEnv()
	req.Equal("from-env", os.Getenv("CHAT_TEST_A"))
	req.Equal("from-file", os.Getenv("CHAT_TEST_B"))
	req.NoError(os.Unsetenv("CHAT_TEST_B"))
}

func TestSeconds(t *testing.T) {
	require.Equal(t, 3*time.Second, seconds(3, 9))
	require.Equal(t, 9*time.Second, seconds(0, 9))
}
