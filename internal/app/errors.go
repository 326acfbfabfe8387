package service

import "errors"

// Sentinel errors returned by Service.
var (
	ErrEmptyUsername = errors.New("username is empty")
	ErrNotStarted    = errors.New("service not started")
)
