package handoff

import (
	"context"
	"log/slog"
)

// Fallback publishes through a primary transport and drops to an in-process
// slot when that fails, so delivery degrades to the same process rather than
// being lost. Observers attach to both.
type Fallback struct {
	Primary Channel
	Local   *Memory
}

// WithFallback wraps primary with the process-global memory slot.
func WithFallback(primary Channel) *Fallback {
	return &Fallback{Primary: primary, Local: Shared}
}

// Publish implements Channel.
func (f *Fallback) Publish(ctx context.Context, m Message) error {
	if f.Primary != nil {
		err := f.Primary.Publish(ctx, m)
		if err == nil {
			return nil
		}
		slog.Warn("hand-off transport failed, using in-process slot", "error", err)
	}
	return f.Local.Publish(ctx, m)
}

// Observe implements Channel. A primary that cannot be attached is logged
// and only the local slot is observed.
func (f *Fallback) Observe(ctx context.Context, fn func(Message)) (func(), error) {
	deliver := deliverOnce(fn)
	stopLocal, err := f.Local.Observe(ctx, deliver)
	if err != nil {
		return nil, err
	}
	if f.Primary == nil {
		return stopLocal, nil
	}
	stopPrimary, err := f.Primary.Observe(ctx, deliver)
	if err != nil {
		slog.Warn("hand-off transport unavailable, observing in-process slot only", "error", err)
		return stopLocal, nil
	}
	return func() {
		stopPrimary()
		stopLocal()
	}, nil
}
