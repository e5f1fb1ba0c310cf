package products

// ProductForm carries a create/update request body.
type ProductForm struct {
	Name          string  `json:"product_name" validate:"required,min=1,max=100"`
	CategoryID    *int64  `json:"category_id" validate:"omitempty,gt=0"`
	Price         float64 `json:"price" validate:"required,gte=0"`
	StockQuantity int     `json:"stock_quantity" validate:"gte=0"`
	Unit          string  `json:"unit" validate:"omitempty,max=20"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	CategoryID *int64
	Search     string
	Limit      int
	Page       int
}
