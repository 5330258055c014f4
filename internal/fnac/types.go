package fnac

// ordersPage is the Fnac marketplace order listing envelope.
type ordersPage struct {
	Page    int     `json:"page"`
	NbTotal int     `json:"nb_total"`
	Orders  []Order `json:"orders"`
}

// Order is one marketplace order as returned by the Fnac API.
type Order struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"` // RFC3339
	State     string `json:"state"`
	Buyer     Buyer  `json:"buyer"`
	Items     []Item `json:"items"`
}

// Buyer is the customer block. The listing endpoint frequently strips
// ContactEmail for privacy; the detail endpoint includes it.
type Buyer struct {
	ContactEmail string `json:"contact_email,omitempty"`
	Language     string `json:"language,omitempty"` // e.g. "fr"
}

// Item is one purchased reference within a Fnac order.
type Item struct {
	Reference string `json:"reference"`
	Quantity  int    `json:"quantity"`
	Label     string `json:"label"`
}
