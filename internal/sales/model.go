package sales

import "time"

// Transaction is a completed point-of-sale checkout.
type Transaction struct {
	ID            int64               `json:"transaction_id"`
	UserID        int64               `json:"user_id"`
	PaymentMethod string              `json:"payment_method"`
	TotalAmount   float64             `json:"total_amount"`
	DateTime      time.Time           `json:"date_time"`
	Details       []TransactionDetail `json:"items"`
}

// TransactionDetail is one sold line of a transaction.
type TransactionDetail struct {
	ID            int64   `json:"-"`
	TransactionID int64   `json:"-"`
	ProductID     int64   `json:"product_id"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	Subtotal      float64 `json:"subtotal"`
}

// Payment records how a transaction was settled.
type Payment struct {
	ID            int64   `json:"payment_id"`
	TransactionID int64   `json:"transaction_id"`
	Method        string  `json:"method"`
	Amount        float64 `json:"amount"`
}
