package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default timeout for manifest and index lookups
	DefaultTimeout = 10 * time.Second

	// ChatTimeout bounds a blocking chat request, which may make up to four model calls
	ChatTimeout = 2 * time.Minute

	// IndexTimeout is for synchronous indexing of an uploaded document
	IndexTimeout = 30 * time.Minute

	// ShortTimeout is for quick operations (cache lookups, etc.)
	ShortTimeout = 2 * time.Second
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithChatTimeout creates a context bounding a blocking chat request
func WithChatTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ChatTimeout)
}

// WithIndexTimeout creates a context for indexing runs
func WithIndexTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, IndexTimeout)
}

// WithShortTimeout creates a context with short timeout for quick operations
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
