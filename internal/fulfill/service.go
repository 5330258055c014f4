// Package fulfill drives one fulfillment pass over a canonical order:
// route each line, allocate one key per unit, dispatch the customer
// notification, aggregate results. There is no compensating rollback:
// keys consumed before an abort stay consumed, and the result says so.
package fulfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/footbar/fulfillment/internal/config"
	"github.com/footbar/fulfillment/internal/keypool"
	"github.com/footbar/fulfillment/internal/order"
	"github.com/footbar/fulfillment/internal/pkg/logger"
	"github.com/footbar/fulfillment/internal/routing"
)

// Allocator is the key-allocation dependency; satisfied by
// *keypool.Allocator.
type Allocator interface {
	Allocate(ctx context.Context, poolID, email, orderID string) (string, error)
}

// Notification is one key-delivery email to send.
type Notification struct {
	Email    string
	Language string
	Template string
	Sku      string
	Title    string
	Key      string
	OrderID  string
}

// Notifier dispatches key-delivery emails; satisfied by *mailer.Mailer.
type Notifier interface {
	SendKey(ctx context.Context, n Notification) error
}

// Detail records one issued key.
type Detail struct {
	Sku          string `json:"sku"`
	Key          string `json:"key"`
	QuantitySent int    `json:"quantity_sent"`
}

// Result aggregates one fulfillment pass. On an aborted order it still
// lists the keys issued before the abort, since those stay consumed.
type Result struct {
	TotalKeys   int      `json:"total_keys"`
	Details     []Detail `json:"details"`
	SkippedSkus []string `json:"skipped_skus,omitempty"`
}

// Service is the fulfillment orchestrator.
type Service struct {
	routes      *routing.Table
	alloc       Allocator
	notifier    Notifier
	defaultLang string
	bundles     map[string]bool
	suppressed  map[string]bool
}

// NewService creates the orchestrator. Bundle/suppression sets come from
// static configuration and are immutable afterward.
func NewService(routes *routing.Table, alloc Allocator, notifier Notifier, cfg config.FulfillmentConfig) *Service {
	s := &Service{
		routes:      routes,
		alloc:       alloc,
		notifier:    notifier,
		defaultLang: cfg.DefaultLanguage,
		bundles:     make(map[string]bool, len(cfg.BundleSkus)),
		suppressed:  make(map[string]bool, len(cfg.SuppressedWithBundle)),
	}
	for _, sku := range cfg.BundleSkus {
		s.bundles[sku] = true
	}
	for _, sku := range cfg.SuppressedWithBundle {
		s.suppressed[sku] = true
	}
	return s
}

// Process runs one fulfillment pass over a canonical order.
//
// Lines are processed sequentially in input order, one allocation and one
// notification per unit of quantity. A route miss skips the line and the
// pass continues; pool exhaustion or a dispatch failure aborts the rest
// of the order immediately. The returned Result is non-nil even on abort
// so callers can report the keys that were already consumed.
func (s *Service) Process(ctx context.Context, o order.Order) (*Result, error) {
	if o.Email == "" {
		return nil, fmt.Errorf("%w: customer email required", ErrValidation)
	}
	if len(o.Lines) == 0 {
		return nil, fmt.Errorf("%w: order has no line items", ErrValidation)
	}

	lang := order.NormalizeLanguage(o.Language, s.defaultLang)

	// Bundle suppression: when the order contains a bundle product, its
	// companion subscription products in the same order are already
	// covered and must not consume keys. Silently omitted from both
	// issued and skipped counts.
	hasBundle := false
	for _, line := range o.Lines {
		if s.bundles[line.Sku] {
			hasBundle = true
			break
		}
	}

	result := &Result{}
	for _, line := range o.Lines {
		if !line.Valid() {
			logger.Warn("skipping invalid line item",
				"order_id", o.ID, "sku", line.Sku, "quantity", line.Quantity)
			continue
		}
		if hasBundle && s.suppressed[line.Sku] {
			logger.Info("suppressing subscription line, bundle present",
				"order_id", o.ID, "sku", line.Sku)
			continue
		}

		rule, ok := s.routes.Resolve(line.Sku)
		if !ok {
			result.SkippedSkus = append(result.SkippedSkus, line.Sku)
			continue
		}

		for unit := 0; unit < line.Quantity; unit++ {
			key, err := s.alloc.Allocate(ctx, rule.Pool, o.Email, o.ID)
			if err != nil {
				// Abort the whole order; keys issued above stay consumed.
				logger.Error("allocation failed, aborting order",
					"order_id", o.ID, "sku", line.Sku, "pool", rule.Pool,
					"issued_so_far", result.TotalKeys, "error", err)
				return result, fmt.Errorf("sku %s: %w", line.Sku, err)
			}

			n := Notification{
				Email:    o.Email,
				Language: lang,
				Template: rule.Template,
				Sku:      line.Sku,
				Title:    line.Title,
				Key:      key,
				OrderID:  o.ID,
			}
			if err := s.notifier.SendKey(ctx, n); err != nil {
				// Same retention policy as allocation failure: the key is
				// consumed, the customer did not get it, and the error
				// payload must say which one.
				logger.Error("notification dispatch failed, aborting order",
					"order_id", o.ID, "sku", line.Sku, "key", logger.RedactKey(key),
					"email", o.Email, "error", err)
				return result, fmt.Errorf("%w: sku %s key %s: %v",
					ErrDispatch, line.Sku, logger.RedactKey(key), err)
			}

			result.TotalKeys++
			result.Details = append(result.Details, Detail{Sku: line.Sku, Key: key, QuantitySent: 1})
		}
	}

	if result.TotalKeys == 0 {
		// Individual lines were only skipped, but an order that issued
		// nothing is an error to the caller.
		return result, fmt.Errorf("%w (skipped: %v)", ErrNoConfiguredProduct, result.SkippedSkus)
	}

	logger.Info("order fulfilled",
		"order_id", o.ID, "source", string(o.Source), "email", o.Email,
		"total_keys", result.TotalKeys, "skipped", len(result.SkippedSkus))
	return result, nil
}

// IsValidation reports whether err is a client-fault validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNoKey reports whether err is pool exhaustion.
func IsNoKey(err error) bool {
	return errors.Is(err, keypool.ErrNoKeyAvailable)
}
