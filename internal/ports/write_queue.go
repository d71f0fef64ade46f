package ports

import "context"

// WriteTask is a mutating store call executed off the caller's goroutine.
type WriteTask func(ctx context.Context) error

// WriteQueue accepts fire-and-forget writes. Submit never blocks; it reports
// false when the task was dropped. Tasks sharing a key run in submission
// order.
type WriteQueue interface {
	Submit(key, name string, task WriteTask) bool
}
