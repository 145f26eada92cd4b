package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field, plus descriptors like @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Retention prunes drawings older than MaxAge on a cron schedule.
type Retention struct {
	store  *Store
	maxAge time.Duration
	now    func() time.Time
	cron   *cron.Cron
}

// NewRetention validates schedule and returns a stopped Retention.
func NewRetention(store *Store, maxAge time.Duration, schedule string) (*Retention, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %v", maxAge)
	}
	r := &Retention{
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
		cron:   cron.New(cron.WithParser(cronParser)),
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.Run() }); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Run prunes once and returns the number of files removed.
func (r *Retention) Run() int {
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.store.Prune(cutoff)
	if err != nil {
		slog.Warn("prune stored images", "error", err)
	}
	if n > 0 {
		slog.Info("pruned stored images", "removed", n, "older_than", cutoff.Format(time.RFC3339))
	}
	return n
}

// Start starts the cron ticker.
func (r *Retention) Start() {
	r.cron.Start()
	slog.Info("retention scheduled", "max_age", r.maxAge)
}

// Stop stops the cron ticker and waits for a running prune to finish.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}
