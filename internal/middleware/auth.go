package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/chat-service/internal/logger"
	"github.com/golang-jwt/jwt/v5"
)

var errNoUser = errors.New("no user id")

// Authenticate определяет пользователя запроса.
// Если secret задан, проверяется Authorization: Bearer <HS256 JWT>, user id берётся из claim "userId".
// Иначе доверяем заголовку X-User-Id от шлюза. Без пользователя отвечаем 401.
func Authenticate(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				userID int64
				err    error
			)
			if secret != "" {
				userID, err = userFromToken(r.Header.Get("Authorization"), key)
			} else {
				userID, err = parseUserID(r.Header.Get("X-User-Id"))
			}
			if err != nil {
				logger.Debugf("auth: %s %s rejected: %v", r.Method, r.URL.Path, err)
				writeUnauthorized(w)
				return
			}
			reportUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func userFromToken(header string, key []byte) (int64, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, errNoUser
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("token %s: %w", MaskToken(raw), err)
	}
	switch v := claims["userId"].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("userId claim %v: %w", v, errNoUser)
		}
		return positive(int64(v))
	case string:
		return parseUserID(v)
	default:
		return 0, errNoUser
	}
}

func parseUserID(s string) (int64, error) {
	if s == "" {
		return 0, errNoUser
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user id %q: %w", s, errNoUser)
	}
	return positive(id)
}

func positive(id int64) (int64, error) {
	if id <= 0 {
		return 0, fmt.Errorf("user id %d: %w", id, errNoUser)
	}
	return id, nil
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

// writeJSONError пишет ошибку в том же конверте, что и хендлеры.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
