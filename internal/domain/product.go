package domain

import "github.com/shopspring/decimal"

const placeholderProductName = "Unnamed Product"

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Unit     string          `json:"unit,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
	SellerID string          `json:"seller_id,omitempty"`
}

// PlaceholderProduct stands in for a product whose lookup failed.
func PlaceholderProduct(id string) Product {
	return Product{
		ID:    id,
		Name:  placeholderProductName,
		Price: decimal.Zero,
		Stock: 0,
	}
}

func (p Product) IsPlaceholder() bool {
	return p.Name == placeholderProductName && p.Stock == 0 && p.Price.IsZero()
}

// SellerStats is the aggregate the marketplace dashboard keeps per seller.
type SellerStats struct {
	SellerID      string          `json:"seller_id"`
	OrdersCount   int             `json:"orders_count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	ProductsCount int             `json:"products_count"`
}
