package domain

import (
	"strings"
	"time"
)

// DefaultCurrency is used when a product document carries no currency code.
const DefaultCurrency = "JPY"

type GalleryImage struct {
	ID  string `bson:"_id" json:"_id"`
	URL string `bson:"url" json:"url"`
}

type Size struct {
	Name     string `bson:"name" json:"name"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

type ColorVariant struct {
	Color    string `bson:"color" json:"color"`
	ImageURL string `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Sizes    []Size `bson:"sizes" json:"sizes"`
}

// Product is the catalog document. Price is in minor currency units and may be
// absent on incomplete documents; checkout refuses such products.
type Product struct {
	ID          string         `bson:"_id" json:"_id"`
	Name        string         `bson:"name" json:"name"`
	Slug        string         `bson:"slug,omitempty" json:"slug,omitempty"`
	Description string         `bson:"description,omitempty" json:"description,omitempty"`
	Price       *int64         `bson:"price,omitempty" json:"price,omitempty"`
	Currency    string         `bson:"currency,omitempty" json:"currency,omitempty"`
	ImageURL    string         `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Categories  []string       `bson:"categories,omitempty" json:"categories,omitempty"`
	Gallery     []GalleryImage `bson:"gallery,omitempty" json:"gallery,omitempty"`
	Variants    []ColorVariant `bson:"variants,omitempty" json:"variants,omitempty"`
	Version     int64          `bson:"version" json:"-"`
	CreatedAt   time.Time      `bson:"createdAt" json:"createdAt"`
}

func (p *Product) HasPrice() bool {
	return p.Price != nil
}

func (p *Product) CurrencyCode() string {
	if p.Currency == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(p.Currency)
}

// FindVariant matches a color case-insensitively. An empty color selects the
// first variant.
func (p *Product) FindVariant(color string) (int, *ColorVariant) {
	if len(p.Variants) == 0 {
		return -1, nil
	}
	if color == "" {
		return 0, &p.Variants[0]
	}
	for i := range p.Variants {
		if strings.EqualFold(p.Variants[i].Color, color) {
			return i, &p.Variants[i]
		}
	}
	return -1, nil
}

// FindSize matches a size name case-insensitively.
func (v *ColorVariant) FindSize(name string) (int, *Size) {
	for i := range v.Sizes {
		if strings.EqualFold(v.Sizes[i].Name, name) {
			return i, &v.Sizes[i]
		}
	}
	return -1, nil
}

// TotalQuantity sums the stock of every size of the variant.
func (v *ColorVariant) TotalQuantity() int {
	total := 0
	for _, s := range v.Sizes {
		total += s.Quantity
	}
	return total
}

// PrimaryImage returns the image shown for a variant selection.
func (p *Product) PrimaryImage(v *ColorVariant) string {
	if v != nil && v.ImageURL != "" {
		return v.ImageURL
	}
	if p.ImageURL != "" {
		return p.ImageURL
	}
	if len(p.Gallery) > 0 {
		return p.Gallery[0].URL
	}
	return ""
}

// CloneVariants returns a deep copy of the variants array.
func (p *Product) CloneVariants() []ColorVariant {
	out := make([]ColorVariant, len(p.Variants))
	for i, v := range p.Variants {
		out[i] = v
		out[i].Sizes = append([]Size(nil), v.Sizes...)
	}
	return out
}
