package categories

// Category groups products for the catalog.
type Category struct {
	ID   int64  `json:"category_id"`
	Name string `json:"category_name"`
}
