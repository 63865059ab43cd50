package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrQueueFull       = errors.New("queue is full")
	ErrStopped         = errors.New("component is stopped")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrExpired         = errors.New("entry has expired")
	ErrModelDisabled   = errors.New("no available model")
	ErrNoBackend       = errors.New("no backend configured for model")
	ErrOperationFailed = errors.New("operation failed")
)
