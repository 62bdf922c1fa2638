package migrations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrdered(t *testing.T) {
	req := require.New(t)
	names, err := Ordered()
	req.NoError(err)
	req.Equal([]string{"001_init.sql", "002_read_markers.sql"}, names)

	data, err := Files.ReadFile("002_read_markers.sql")
	req.NoError(err)
	req.Contains(string(data), "read_markers")
}
