package sched

import "discord-pug-bot/internal/apperrors"

// Scheduler errors, classified for the caller.
var (
	// ErrOverload is delivered to operations dropped when a tenant's
	// queue depth limit is exceeded.
	ErrOverload = apperrors.ErrSchedulerOverload
	// ErrClosed is returned for submissions after Close.
	ErrClosed = apperrors.ErrSchedulerClosed
)
