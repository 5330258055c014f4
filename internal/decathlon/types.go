package decathlon

// ordersResponse is the Mirakl-style order listing envelope.
type ordersResponse struct {
	Orders     []Order `json:"orders"`
	TotalCount int     `json:"total_count"`
}

// Order is one marketplace order as listed by the Decathlon API. The
// bulk listing may omit the customer email; the detail endpoint always
// carries it.
type Order struct {
	OrderID     string      `json:"order_id"`
	CreatedDate string      `json:"created_date"` // RFC3339
	State       string      `json:"order_state"`
	Customer    Customer    `json:"customer"`
	OrderLines  []OrderLine `json:"order_lines"`
}

// Customer is the buyer block of a Decathlon order.
type Customer struct {
	Email  string `json:"email,omitempty"`
	Locale string `json:"locale,omitempty"` // e.g. "fr_FR"
}

// OrderLine is one purchased offer within a Decathlon order.
type OrderLine struct {
	OfferSku     string `json:"offer_sku"`
	Quantity     int    `json:"quantity"`
	ProductTitle string `json:"product_title"`
}
