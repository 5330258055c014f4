package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/footbar/fulfillment/internal/fulfill"
	"github.com/footbar/fulfillment/internal/order"
	"github.com/footbar/fulfillment/internal/pkg/distlock"
	"github.com/footbar/fulfillment/internal/pkg/logger"
)

// ErrPassInProgress means another poll pass already holds this source's
// ledger. The caller should simply try again later; the running pass is
// doing the same work.
var ErrPassInProgress = errors.New("poll pass already in progress")

// ErrUpstreamFetch means a marketplace fetch failed for one order. The
// batch continues; the order is retried next poll because the watermark
// is held behind it.
var ErrUpstreamFetch = errors.New("upstream order fetch failed")

// Fetched is one upstream order returned by a poll source. Err is set
// when the per-order detail fetch failed (e.g. the bulk listing omitted
// the buyer address and the follow-up call timed out); such an order is
// reported and retried next poll without aborting the batch.
type Fetched struct {
	ID        string
	Timestamp time.Time
	Order     order.Order
	Err       error
}

// Source is one polled marketplace. FetchSince returns orders created
// after the watermark; a zero watermark means the source applies its own
// default lookback window.
type Source interface {
	Name() string
	FetchSince(ctx context.Context, since time.Time) ([]Fetched, error)
}

// Processor runs one fulfillment pass; satisfied by *fulfill.Service.
type Processor interface {
	Process(ctx context.Context, o order.Order) (*fulfill.Result, error)
}

// Notification summarizes one order's outcome within a poll pass.
type Notification struct {
	OrderID string          `json:"order_id"`
	Status  string          `json:"status"` // "sent", "duplicate", "error"
	Result  *fulfill.Result `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Summary is the aggregated outcome of one poll pass.
type Summary struct {
	Source        string         `json:"source"`
	Fetched       int            `json:"fetched"`
	Processed     int            `json:"processed"`
	Duplicates    int            `json:"duplicates"`
	Failures      int            `json:"failures"`
	Notifications []Notification `json:"notifications"`
}

// Poller drives one reconciliation pass per invocation. There is no
// internal scheduler; an external trigger calls Run.
type Poller struct {
	store     LedgerStore
	processor Processor
	locker    distlock.Locker
}

// NewPoller creates a poll driver over the given ledger store. The ledger
// is the same kind of read-modify-write resource as a key pool, so passes
// for one source are serialized under the same locker.
func NewPoller(store LedgerStore, processor Processor, locker distlock.Locker) *Poller {
	return &Poller{store: store, processor: processor, locker: locker}
}

// Run executes one poll pass for a source: fetch orders past the
// watermark, drop ledger duplicates, fulfill the rest oldest-first, and
// advance the ledger after each success (not batched, so a mid-pass
// failure keeps the progress already made).
//
// After the first failed order the watermark is held; later successes
// still record their ids, so on the next poll the failed order is
// re-fetched while the successes stay deduplicated.
func (p *Poller) Run(ctx context.Context, src Source) (*Summary, error) {
	// Try once, never queue: an overlapping trigger would only repeat the
	// running pass's work.
	lock := p.locker.Lock("ledger:" + src.Name())
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock ledger %s: %w", src.Name(), err)
	}
	if !ok {
		return nil, fmt.Errorf("source %s: %w", src.Name(), ErrPassInProgress)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("ledger lock release failed", "source", src.Name(), "error", err)
		}
	}()

	ledger, err := p.store.Load(ctx, src.Name())
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", src.Name(), err)
	}

	fetched, err := src.FetchSince(ctx, ledger.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("fetch %s orders: %w", src.Name(), err)
	}

	// Oldest first, so the watermark never jumps over an unseen order.
	sort.Slice(fetched, func(i, j int) bool {
		return fetched[i].Timestamp.Before(fetched[j].Timestamp)
	})

	summary := &Summary{Source: src.Name(), Fetched: len(fetched)}
	holdWatermark := false

	for _, f := range fetched {
		if !ledger.IsNew(f.ID) {
			summary.Duplicates++
			continue
		}

		if f.Err != nil {
			summary.Failures++
			holdWatermark = true
			summary.Notifications = append(summary.Notifications, Notification{
				OrderID: f.ID, Status: "error", Error: f.Err.Error(),
			})
			logger.Warn("order fetch incomplete, will retry next poll",
				"source", src.Name(), "order_id", f.ID, "error", f.Err)
			continue
		}

		result, err := p.processor.Process(ctx, f.Order)
		if err != nil {
			summary.Failures++
			holdWatermark = true
			summary.Notifications = append(summary.Notifications, Notification{
				OrderID: f.ID, Status: "error", Result: result, Error: err.Error(),
			})
			logger.Error("poll order failed",
				"source", src.Name(), "order_id", f.ID, "error", err)
			continue
		}

		ts := f.Timestamp
		if holdWatermark {
			ts = time.Time{}
		}
		ledger.Advance(f.ID, ts)
		if err := p.store.Save(ctx, src.Name(), ledger); err != nil {
			// The order IS fulfilled; losing the ledger write risks a
			// duplicate next poll, which the processed-id set absorbs as
			// long as a later save lands. Surface it and keep going.
			logger.Error("ledger save failed after fulfillment",
				"source", src.Name(), "order_id", f.ID, "error", err)
		}

		summary.Processed++
		summary.Notifications = append(summary.Notifications, Notification{
			OrderID: f.ID, Status: "sent", Result: result,
		})
	}

	logger.Info("poll pass complete",
		"source", src.Name(), "fetched", summary.Fetched,
		"processed", summary.Processed, "duplicates", summary.Duplicates,
		"failures", summary.Failures)
	return summary, nil
}
