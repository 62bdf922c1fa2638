// Package apperr: общие виды ошибок для хранилищ, учёта прочтения и справочника пользователей.
// Оборачиваются через fmt.Errorf("...: %w", ...), проверяются через errors.Is.
package apperr

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
	// ErrConflict зарезервирован: запись маркеров монотонна и не конфликтует.
	ErrConflict = errors.New("conflict")
)
