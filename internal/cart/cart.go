package cart

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotFound    = errors.New("item not found in cart")
)

// ProductSnapshot is the part of a product a cart line needs to render and
// to build a payment line item.
type ProductSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    *int64 `json:"price,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type Selection struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

type Item struct {
	Product   ProductSnapshot `json:"product"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Selection Selection       `json:"selectedOptions"`
}

// Matches reports whether the line has the identity (productID, color, size).
// Colors and sizes compare case-insensitively, as the catalog does.
func (i *Item) Matches(productID, color, size string) bool {
	return i.Product.ID == productID &&
		strings.EqualFold(i.Selection.Color, color) &&
		strings.EqualFold(i.Selection.Size, size)
}

type Cart struct {
	OwnerID   string    `json:"ownerId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New(ownerID string) *Cart {
	return &Cart{OwnerID: ownerID, Items: []Item{}}
}

// Add merges item into an existing line with the same identity by summing
// quantities, or appends a new line.
func (c *Cart) Add(item Item) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].Matches(item.Product.ID, item.Selection.Color, item.Selection.Size) {
			c.Items[i].Quantity += item.Quantity
			c.touch()
			return nil
		}
	}
	c.Items = append(c.Items, item)
	c.touch()
	return nil
}

// Find returns the line with the given identity.
func (c *Cart) Find(productID, color, size string) (*Item, bool) {
	for i := range c.Items {
		if c.Items[i].Matches(productID, color, size) {
			return &c.Items[i], true
		}
	}
	return nil, false
}

func (c *Cart) SetQuantity(productID, color, size string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	item, ok := c.Find(productID, color, size)
	if !ok {
		return ErrItemNotFound
	}
	item.Quantity = qty
	c.touch()
	return nil
}

// Remove deletes the exact line when both color and size are given,
// otherwise every line of the product. It returns the number of lines removed.
func (c *Cart) Remove(productID, color, size string) int {
	exact := color != "" && size != ""
	kept := c.Items[:0]
	removed := 0
	for _, item := range c.Items {
		drop := item.Product.ID == productID
		if exact {
			drop = item.Matches(productID, color, size)
		}
		if drop {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	if removed > 0 {
		c.touch()
	}
	return removed
}

func (c *Cart) Clear() {
	c.Items = []Item{}
	c.touch()
}

// Total is the sum of price × quantity over lines with a known price.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		if item.Product.Price != nil {
			total += *item.Product.Price * int64(item.Quantity)
		}
	}
	return total
}

// Count is the number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
