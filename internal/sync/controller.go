// Package sync keeps a picker's view of shared history current by refreshing
// it on a fixed interval.
package sync

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	otelScope       = "pickflix/sync"
	metricRefreshes = "pickflix.sync.refreshes"
	metricSkipped   = "pickflix.sync.skipped"
)

// DefaultInterval is the background refresh period.
const DefaultInterval = 20 * time.Second

// Refresher is the picker surface the controller drives.
// Implemented by [picker.Picker].
type Refresher interface {
	Refresh(ctx context.Context, silent bool) (bool, error)
	Busy() bool
	Shared() bool
}

// Controller runs the startup refresh and the periodic background refresh.
type Controller struct {
	picker   Refresher
	interval time.Duration
	log      *slog.Logger

	cntRefreshes metric.Int64Counter
	cntSkipped   metric.Int64Counter
}

// NewController creates a Controller. A non-positive interval uses DefaultInterval.
func NewController(p Refresher, interval time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	meter := otel.Meter(otelScope)
	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Controller{
		picker:       p,
		interval:     interval,
		log:          logger,
		cntRefreshes: mustCounter(metricRefreshes, "Number of background history refreshes"),
		cntSkipped:   mustCounter(metricSkipped, "Number of refresh ticks skipped while busy"),
	}
}

// Run performs an immediate explicit refresh, then for shared stores a silent
// refresh every interval until ctx is cancelled. Local stores only get the
// initial load and Run returns nil right after it.
func (c *Controller) Run(ctx context.Context) error {
	if _, err := c.picker.Refresh(ctx, false); err != nil {
		c.log.Error("initial refresh failed", "error", err)
	}

	if !c.picker.Shared() {
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("sync controller shutting down")
			return ctx.Err()
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one background refresh unless an operation is in flight.
func (c *Controller) tick(ctx context.Context) {
	if c.picker.Busy() {
		c.cntSkipped.Add(ctx, 1)
		c.log.Debug("refresh tick skipped, operation in flight")
		return
	}

	ok, err := c.picker.Refresh(ctx, true)
	switch {
	case err != nil:
		c.log.Debug("background refresh failed", "error", err)
	case !ok:
		// Lost the race to a user-triggered operation.
		c.cntSkipped.Add(ctx, 1)
		c.log.Debug("refresh tick skipped, operation in flight")
		return
	}
	c.cntRefreshes.Add(ctx, 1)
}

// RefreshNow is the user-triggered refresh; its errors reach the status line.
func (c *Controller) RefreshNow(ctx context.Context) (bool, error) {
	return c.picker.Refresh(ctx, false)
}
