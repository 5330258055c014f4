// Package order defines the canonical purchase representation. Every
// inbound source (Shopify webhook, Decathlon, Fnac) is normalized into an
// Order before fulfillment; the orchestrator never sees source-specific
// shapes.
package order

import "strings"

// Source identifies where an order came from.
type Source string

const (
	SourceShopify   Source = "shopify"
	SourceDecathlon Source = "decathlon"
	SourceFnac      Source = "fnac"
)

// Line is one purchased product within an order.
type Line struct {
	Sku      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Title    string `json:"title"`
}

// Valid reports whether the line is processable. Invalid lines are
// skipped, never fulfilled.
func (l Line) Valid() bool {
	return strings.TrimSpace(l.Sku) != "" && l.Quantity > 0
}

// Order is the canonical, source-agnostic purchase event. Immutable after
// normalization; never persisted.
type Order struct {
	// ID is the upstream order reference. Empty for Shopify webhook
	// deliveries, which carry no reliable identifier.
	ID       string `json:"id,omitempty"`
	Source   Source `json:"source"`
	Email    string `json:"email"`
	Language string `json:"language"`
	Lines    []Line `json:"lines"`
}

// NormalizeLanguage lowercases a language code and falls back to def when
// the source omitted it.
func NormalizeLanguage(lang, def string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return def
	}
	// "fr-FR" and friends collapse to the base language
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
