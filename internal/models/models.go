package models

import (
	"database/sql"
	"time"
)

// CompletedOrderStatuses are the order states that count as a sale.
var CompletedOrderStatuses = []string{"completed", "delivered"}

// ProductRow is a product as selected by the listing and detail queries,
// before coercion. Stock is the effective stock computed by the query;
// BaseStock is the product's own column.
type ProductRow struct {
	ProductID          int64          `db:"product_id"`
	Name               string         `db:"name"`
	ProductCode        sql.NullString `db:"product_code"`
	Description        sql.NullString `db:"description"`
	CategoryID         sql.NullInt64  `db:"category_id"`
	CategoryName       sql.NullString `db:"category_name"`
	CreatedAt          sql.NullTime   `db:"created_at"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
	IsFeatured         sql.NullBool   `db:"is_featured"`
	BasePrice          Number         `db:"base_price"`
	DiscountedPrice    Number         `db:"discounted_price"`
	DiscountPercentage Number         `db:"discount_percentage"`
	AverageRating      Number         `db:"average_rating"`
	ReviewCount        Number         `db:"review_count"`
	BaseStock          Number         `db:"base_stock"`
	Stock              Number         `db:"stock"`
	HasVariants        bool           `db:"has_variants"`
	TotalSold          Number         `db:"total_sold"`
	ItemsSold          Number         `db:"items_sold"`
}

// VariantRow is a product_variants row.
type VariantRow struct {
	VariantID  int64          `db:"variant_id"`
	ProductID  int64          `db:"product_id"`
	SKU        sql.NullString `db:"sku"`
	Price      Number         `db:"price"`
	Stock      Number         `db:"stock"`
	ImageURL   []byte         `db:"image_url"`
	Attributes []byte         `db:"attributes"`
	CreatedAt  sql.NullTime   `db:"created_at"`
	UpdatedAt  sql.NullTime   `db:"updated_at"`
}

// ImageRow is a raw image reference, either declared in product_images or
// borrowed from a variant. ImageURL holds a path, an absolute URL or blob bytes.
type ImageRow struct {
	ProductID int64         `db:"product_id"`
	ImageID   sql.NullInt64 `db:"image_id"`
	ImageURL  []byte        `db:"image_url"`
	SortOrder int64         `db:"sort_order"`
	AltText   string        `db:"alt_text"`
}

// Image is a resolved, client-fetchable image reference.
type Image struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Alt   string `json:"alt"`
	Order int64  `json:"order"`
}

// Product is the normalized listing representation.
type Product struct {
	ProductID          int64      `json:"product_id"`
	Name               string     `json:"name"`
	ProductCode        *string    `json:"product_code"`
	Description        *string    `json:"description"`
	CategoryID         *int64     `json:"category_id"`
	CategoryName       *string    `json:"category_name"`
	CreatedAt          *time.Time `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
	IsFeatured         bool       `json:"is_featured"`
	Price              float64    `json:"price"`
	DiscountedPrice    float64    `json:"discounted_price"`
	DiscountPercentage float64    `json:"discount_percentage"`
	AverageRating      float64    `json:"average_rating"`
	ReviewCount        int64      `json:"review_count"`
	Stock              int64      `json:"stock"`
	HasVariants        bool       `json:"has_variants"`
	TotalSold          int64      `json:"total_sold,omitempty"`
	Variants           []Variant  `json:"variants"`
	Images             []Image    `json:"images"`
}

// ProductList is the envelope of the "all products" listing.
type ProductList struct {
	Products []Product `json:"products"`
}

// Variant is a normalized variant as nested in a product detail.
type Variant struct {
	VariantID       int64      `json:"variant_id"`
	ProductID       int64      `json:"product_id"`
	ParentProductID int64      `json:"parent_product_id"`
	SKU             *string    `json:"sku"`
	Name            string     `json:"name"`
	Price           float64    `json:"price"`
	Stock           int64      `json:"stock"`
	ImageURL        *string    `json:"image_url"`
	Attributes      Attributes `json:"attributes"`
	Images          []Image    `json:"images"`
	CreatedAt       *time.Time `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// ProductDetail is the single product view. Stock is the effective stock,
// StockQuantity the product's own column.
type ProductDetail struct {
	Product
	StockQuantity int64 `json:"stock_quantity"`
	ItemsSold     int64 `json:"items_sold"`
}

// SearchResult is the compact shape returned by product search.
type SearchResult struct {
	ProductID     int64   `json:"product_id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	ProductCode   string  `json:"product_code"`
	CategoryName  string  `json:"category_name"`
	CategoryID    *int64  `json:"category_id"`
	Price         float64 `json:"price"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int64   `json:"review_count"`
	Image         *string `json:"image"`
	Stock         int64   `json:"stock"`
}
