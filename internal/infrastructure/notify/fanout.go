package notify

import (
	"context"
	"errors"

	"hardcore/internal/ports"
)

// Fanout delivers to every notifier and joins their errors.
type Fanout []ports.Notifier

func (f Fanout) Notify(ctx context.Context, n ports.Notification) error {
	var joined error
	for _, notifier := range f {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			joined = errors.Join(joined, err)
		}
	}
	return joined
}
