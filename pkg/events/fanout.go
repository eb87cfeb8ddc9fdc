package events

import (
	"context"
	"errors"
)

// Fanout delivers every event to each of its publishers. Nil entries are skipped.
type Fanout []Publisher

var _ Publisher = Fanout{}

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
