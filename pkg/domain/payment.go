package domain

// Order is a PayPal order created for a drucoin purchase.
type Order struct {
	ID string `json:"orderID"`
}

// Capture is the outcome of capturing an approved order.
type Capture struct {
	OrderID  string `json:"orderID"`
	Drucoins int    `json:"drucoins"`
}
