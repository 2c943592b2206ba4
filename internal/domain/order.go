package domain

import "time"

type OrderItemOptions struct {
	Variant string `bson:"variant,omitempty" json:"variant,omitempty"`
	Size    string `bson:"size,omitempty" json:"size,omitempty"`
}

// OrderItem is a snapshot taken at purchase time; it never follows later
// product edits.
type OrderItem struct {
	Key       string           `bson:"_key" json:"_key"`
	ProductID string           `bson:"productId" json:"productId"`
	Name      string           `bson:"name" json:"name"`
	Quantity  int              `bson:"quantity" json:"quantity"`
	Price     int64            `bson:"price" json:"price"`
	Options   OrderItemOptions `bson:"options" json:"options"`
}

type CustomerDetails struct {
	UserID      string `bson:"userId,omitempty" json:"userId,omitempty"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
	FirstName   string `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName    string `bson:"lastName,omitempty" json:"lastName,omitempty"`
	PhoneNumber string `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Address     string `bson:"address,omitempty" json:"address,omitempty"`
}

type Order struct {
	ID                string          `bson:"_id" json:"_id"`
	OrderNumber       string          `bson:"orderNumber" json:"orderNumber"`
	CheckoutSessionID string          `bson:"stripeCheckoutSessionId" json:"stripeCheckoutSessionId"`
	PaymentIntentID   string          `bson:"stripePaymentIntentId,omitempty" json:"stripePaymentIntentId,omitempty"`
	CustomerID        string          `bson:"stripeCustomerId,omitempty" json:"stripeCustomerId,omitempty"`
	UserID            string          `bson:"userId,omitempty" json:"userId,omitempty"`
	CustomerDetails   CustomerDetails `bson:"customerDetails" json:"customerDetails"`
	Items             []OrderItem     `bson:"items" json:"items"`
	TotalAmount       int64           `bson:"totalAmount" json:"totalAmount"`
	Currency          string          `bson:"currency,omitempty" json:"currency,omitempty"`
	Status            OrderStatus     `bson:"status" json:"status"`
	OrderDate         time.Time       `bson:"orderDate" json:"orderDate"`
}
