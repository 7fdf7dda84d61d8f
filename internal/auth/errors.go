package auth

import "errors"

var (
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrStorageUnavailable = errors.New("auth: storage unavailable")
	ErrNotFound           = errors.New("auth: not found")
)
