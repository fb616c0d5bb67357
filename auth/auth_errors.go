package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("account already registered")
	ErrRateLimited        = errors.New("too many attempts, try again later")
)
