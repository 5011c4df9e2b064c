package domain

// Platform is a distribution variant of a product (e.g. Steam, PlayStation)
// with its own independent stock count.
type Platform struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product is a snapshot of a catalog product at the time it was added to the
// cart. Stock counts are the values embedded in the snapshot, not a live view.
type Product struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Slug            string         `json:"slug"`
	Price           int64          `json:"price"`
	SalePrice       *int64         `json:"sale_price,omitempty"`
	StockByPlatform map[string]int `json:"stock_by_platform"`
	CoverImageURL   string         `json:"cover_image_url,omitempty"`
}

// EffectivePrice returns the sale price when one is set, otherwise the list price.
func (p *Product) EffectivePrice() int64 {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// StockFor returns the snapshot stock for the given platform. Unknown
// platforms have zero stock.
func (p *Product) StockFor(platformID string) int {
	return p.StockByPlatform[platformID]
}

// LineItem is one entry in the cart, keyed by product+platform.
type LineItem struct {
	Product  Product  `json:"product"`
	Platform Platform `json:"platform"`
	Quantity int      `json:"quantity"`
}

// UnitPrice returns the effective price of the item's product.
func (li *LineItem) UnitPrice() int64 {
	return li.Product.EffectivePrice()
}

// Subtotal returns the line total (effective price times quantity).
func (li *LineItem) Subtotal() int64 {
	return li.UnitPrice() * int64(li.Quantity)
}

// AvailableStock returns the snapshot stock for this line's platform.
func (li *LineItem) AvailableStock() int {
	return li.Product.StockFor(li.Platform.ID)
}

// Cart holds a user's line items. Order of items is insertion order;
// it carries no correctness meaning but is preserved for display stability.
type Cart struct {
	UserID string     `json:"user_id"`
	Items  []LineItem `json:"items"`
}

// NewCart creates an empty cart for the given user.
func NewCart(userID string) *Cart {
	return &Cart{
		UserID: userID,
		Items:  []LineItem{},
	}
}

// FindItemIndex returns the index of the line item matching the given product
// and platform IDs, or -1 if not found.
func (c *Cart) FindItemIndex(productID, platformID string) int {
	for i := range c.Items {
		if c.Items[i].Product.ID == productID && c.Items[i].Platform.ID == platformID {
			return i
		}
	}
	return -1
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalAmount returns the monetary total over all lines, using sale prices
// where present.
func (c *Cart) TotalAmount() int64 {
	var total int64
	for i := range c.Items {
		total += c.Items[i].Subtotal()
	}
	return total
}

// ItemCount returns the total quantity over all lines.
func (c *Cart) ItemCount() int {
	var count int
	for i := range c.Items {
		count += c.Items[i].Quantity
	}
	return count
}

// LineCount returns the number of distinct lines.
func (c *Cart) LineCount() int {
	return len(c.Items)
}

// Totals is the derived read model of a cart.
type Totals struct {
	ItemCount   int   `json:"item_count"`
	LineCount   int   `json:"line_count"`
	TotalAmount int64 `json:"total_amount"`
}

// Totals computes the cart's derived totals.
func (c *Cart) Totals() Totals {
	return Totals{
		ItemCount:   c.ItemCount(),
		LineCount:   c.LineCount(),
		TotalAmount: c.TotalAmount(),
	}
}
