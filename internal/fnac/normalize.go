package fnac

import "github.com/footbar/fulfillment/internal/order"

// normalize maps a Fnac order to the canonical shape.
func normalize(o Order) order.Order {
	lines := make([]order.Line, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, order.Line{
			Sku:      item.Reference,
			Quantity: item.Quantity,
			Title:    item.Label,
		})
	}
	return order.Order{
		ID:       o.ID,
		Source:   order.SourceFnac,
		Email:    o.Buyer.ContactEmail,
		Language: o.Buyer.Language,
		Lines:    lines,
	}
}
