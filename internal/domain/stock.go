package domain

// StockAdjustment is a request to deduct sold units from one variant/size.
type StockAdjustment struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// StockAdjustmentResult records what a decrement actually did. Shortfall is
// the number of units sold beyond the stock that was on hand.
type StockAdjustmentResult struct {
	Success          bool   `json:"success"`
	ProductID        string `json:"productId"`
	Variant          string `json:"variant,omitempty"`
	Size             string `json:"size,omitempty"`
	PreviousQuantity int    `json:"previousQuantity"`
	NewQuantity      int    `json:"newQuantity"`
	Shortfall        int    `json:"shortfall,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ClampedDecrement never lets stock go below zero.
func ClampedDecrement(current, requested int) int {
	if current-requested < 0 {
		return 0
	}
	return current - requested
}
