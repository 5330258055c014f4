package decathlon

import "github.com/footbar/fulfillment/internal/order"

// normalize maps a Decathlon order to the canonical shape. The Mirakl
// locale ("fr_FR") collapses to a base language downstream.
func normalize(o Order) order.Order {
	lines := make([]order.Line, 0, len(o.OrderLines))
	for _, l := range o.OrderLines {
		lines = append(lines, order.Line{
			Sku:      l.OfferSku,
			Quantity: l.Quantity,
			Title:    l.ProductTitle,
		})
	}
	return order.Order{
		ID:       o.OrderID,
		Source:   order.SourceDecathlon,
		Email:    o.Customer.Email,
		Language: o.Customer.Locale,
		Lines:    lines,
	}
}
