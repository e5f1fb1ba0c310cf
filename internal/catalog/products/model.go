package products

import "time"

// Product is a sellable catalog item. StockQuantity is a cached running
// total owned by the inventory ledger; once the product exists it only
// changes through ledger operations.
type Product struct {
	ID            int64     `json:"product_id"`
	Name          string    `json:"product_name"`
	CategoryID    *int64    `json:"category_id"`
	Price         float64   `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	Unit          string    `json:"unit"`
	CreatedAt     time.Time `json:"created_at"`
}
