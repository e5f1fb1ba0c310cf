package sales

// CheckoutItem is one requested line of a checkout.
type CheckoutItem struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// CheckoutRequest carries the POST /transactions body.
type CheckoutRequest struct {
	UserID        int64          `json:"user_id" validate:"required,gt=0"`
	PaymentMethod string         `json:"payment_method" validate:"required,max=50"`
	TotalAmount   float64        `json:"total_amount" validate:"gte=0"`
	Items         []CheckoutItem `json:"items" validate:"required,min=1,dive"`
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	UserID int64
	Limit  int
}
