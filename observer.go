package datasource

import (
	"context"
	"time"

	"github.com/goforj/datasource/dscore"
)

// Observer receives events for handle operations.
// It is called after each Browser, Navigator or Cache operation completes.
type Observer interface {
	OnOp(ctx context.Context, op string, typ dscore.Type, target string, err error, dur time.Duration)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, typ dscore.Type, target string, err error, dur time.Duration)

// OnOp implements Observer.
func (f ObserverFunc) OnOp(ctx context.Context, op string, typ dscore.Type, target string, err error, dur time.Duration) {
	if f == nil {
		return
	}
	f(ctx, op, typ, target, err, dur)
}

func observe(ctx context.Context, o Observer, op string, typ dscore.Type, target string, start time.Time, err error) {
	if o == nil {
		return
	}
	o.OnOp(ctx, op, typ, target, err, time.Since(start))
}
