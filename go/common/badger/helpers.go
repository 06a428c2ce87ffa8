// Package badger contains helpers for running node databases on BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/BadBoiLabs/cetf/go/common/logging"
)

const (
	// DefaultGCInterval is the default value log GC interval.
	DefaultGCInterval = 5 * time.Minute

	gcDiscardRatio = 0.5
)

// NewLogAdapter routes badger's log output to a module logger.
func NewLogAdapter(logger *logging.Logger) badger.Logger {
	return logAdapter{logger}
}

type logAdapter struct {
	*logging.Logger
}

func format(f string, a []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(f, a...))
}

func (l logAdapter) Errorf(f string, a ...interface{})   { l.Error(format(f, a)) }
func (l logAdapter) Warningf(f string, a ...interface{}) { l.Warn(format(f, a)) }
func (l logAdapter) Infof(f string, a ...interface{})    { l.Info(format(f, a)) }
func (l logAdapter) Debugf(f string, a ...interface{})   { l.Debug(format(f, a)) }

// GCWorker periodically garbage collects a database's value log.
type GCWorker struct {
	logger *logging.Logger
	db     *badger.DB

	cancel context.CancelFunc
	doneCh chan struct{}
}

// Close stops the worker and waits for it to exit. It is safe to call
// more than once.
func (gc *GCWorker) Close() {
	gc.cancel()
	<-gc.doneCh
}

// collect rewrites value log files until there is nothing left to reclaim.
func (gc *GCWorker) collect(ctx context.Context) (int, error) {
	var rewritten int
	for ctx.Err() == nil {
		err := gc.db.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
			rewritten++
		case errors.Is(err, badger.ErrNoRewrite):
			return rewritten, nil
		default:
			return rewritten, err
		}
	}
	return rewritten, nil
}

func (gc *GCWorker) run(ctx context.Context, interval time.Duration) {
	defer close(gc.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := gc.collect(ctx)
		if err != nil {
			gc.logger.Error("failed to GC value log",
				"err", err,
			)
			continue
		}
		if n > 0 {
			gc.logger.Debug("value log GC done",
				"rewritten", n,
			)
		}
	}
}

// NewGCWorker starts a value log GC worker for db. A non-positive interval
// selects DefaultGCInterval.
func NewGCWorker(logger *logging.Logger, db *badger.DB, interval time.Duration) *GCWorker {
	if interval <= 0 {
		interval = DefaultGCInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	gc := &GCWorker{
		logger: logger,
		db:     db,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	go gc.run(ctx, interval)

	return gc
}
