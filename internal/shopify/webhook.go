// Package shopify adapts Shopify Flow webhook deliveries into canonical
// orders. This is the push source: Shopify calls us, we never poll it.
//
// Shopify webhooks carry no reliable order identifier we can dedup on, so
// duplicate deliveries of the same purchase are processed twice. That risk
// is accepted; the optional order_id field is used for key stamping and
// receipts only.
package shopify

import (
	"github.com/footbar/fulfillment/internal/order"
)

// WebhookPayload is the order payload posted by the Shopify Flow action.
type WebhookPayload struct {
	OrderID   string     `json:"order_id,omitempty"`
	Email     string     `json:"email"`
	Language  string     `json:"language,omitempty"`
	LineItems []LineItem `json:"line_items"`
}

// LineItem is one purchased product in the webhook payload.
type LineItem struct {
	Sku      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Title    string `json:"title,omitempty"`
}

// Normalize maps the webhook payload to a canonical order. Language may
// be empty; the fulfillment default applies downstream.
func (p WebhookPayload) Normalize() order.Order {
	lines := make([]order.Line, 0, len(p.LineItems))
	for _, item := range p.LineItems {
		lines = append(lines, order.Line{
			Sku:      item.Sku,
			Quantity: item.Quantity,
			Title:    item.Title,
		})
	}
	return order.Order{
		ID:       p.OrderID,
		Source:   order.SourceShopify,
		Email:    p.Email,
		Language: p.Language,
		Lines:    lines,
	}
}
