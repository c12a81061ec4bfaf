package utils

import (
	"context"
	"time"
)

const DefaultTimeout = time.Minute

func NewContext() (ctx context.Context, cancel func()) {
	return NewContextWithTimeout(DefaultTimeout)
}

func NewContextWithTimeout(timeout time.Duration) (ctx context.Context, cancel func()) {
	return context.WithTimeout(context.TODO(), timeout)
}

// Derives a context bounded by timeout. A non positive timeout only adds cancellation
func WithOptionalTimeout(parent context.Context, timeout time.Duration) (ctx context.Context, cancel func()) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
