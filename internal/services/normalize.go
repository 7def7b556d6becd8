package services

import (
	"database/sql"
	"time"

	"github.com/storefront/catalog-service/internal/images"
	"github.com/storefront/catalog-service/internal/models"
	"go.uber.org/zap"
)

const uncategorized = "Uncategorized"

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// normalizeProduct coerces a listing row. Variants and Images start empty;
// callers fill them in.
func normalizeProduct(row models.ProductRow) models.Product {
	return models.Product{
		ProductID:          row.ProductID,
		Name:               row.Name,
		ProductCode:        nullString(row.ProductCode),
		Description:        nullString(row.Description),
		CategoryID:         nullInt64(row.CategoryID),
		CategoryName:       nullString(row.CategoryName),
		CreatedAt:          nullTime(row.CreatedAt),
		UpdatedAt:          nullTime(row.UpdatedAt),
		IsFeatured:         row.IsFeatured.Valid && row.IsFeatured.Bool,
		Price:              row.BasePrice.Float64(),
		DiscountedPrice:    row.DiscountedPrice.Float64(),
		DiscountPercentage: row.DiscountPercentage.Float64(),
		AverageRating:      row.AverageRating.Float64(),
		ReviewCount:        row.ReviewCount.Int64(),
		Stock:              nonNegative(row.Stock),
		HasVariants:        row.HasVariants,
		TotalSold:          row.TotalSold.Int64(),
		Variants:           []models.Variant{},
		Images:             []models.Image{},
	}
}

func toSearchResult(p models.Product) models.SearchResult {
	r := models.SearchResult{
		ProductID:     p.ProductID,
		Name:          p.Name,
		CategoryName:  uncategorized,
		CategoryID:    p.CategoryID,
		Price:         p.Price,
		AverageRating: p.AverageRating,
		ReviewCount:   p.ReviewCount,
		Stock:         p.Stock,
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.ProductCode != nil {
		r.ProductCode = *p.ProductCode
	}
	if p.CategoryName != nil {
		r.CategoryName = *p.CategoryName
	}
	if len(p.Images) > 0 {
		url := p.Images[0].URL
		r.Image = &url
	}
	return r
}

// normalizeVariant builds the nested detail view of one variant. Its display
// name and image alt text combine the product name with the attribute values.
func (s *ProductService) normalizeVariant(product models.Product, row models.VariantRow) models.Variant {
	attrs, err := models.ParseAttributes(row.Attributes)
	if err != nil {
		s.logger.Warn("ignoring malformed variant attributes",
			zap.Int64("variant_id", row.VariantID),
			zap.Int64("product_id", product.ProductID),
			zap.Error(err),
		)
		attrs = models.Attributes{}
	}

	name := product.Name
	if label := attrs.DisplayValue(); label != "" {
		name = product.Name + " - " + label
	}

	v := models.Variant{
		VariantID:       row.VariantID,
		ProductID:       row.ProductID,
		ParentProductID: product.ProductID,
		SKU:             nullString(row.SKU),
		Name:            name,
		Price:           row.Price.Float64(),
		Stock:           nonNegative(row.Stock),
		Attributes:      attrs,
		Images:          []models.Image{},
		CreatedAt:       nullTime(row.CreatedAt),
		UpdatedAt:       nullTime(row.UpdatedAt),
	}

	switch src := images.Classify(row.ImageURL).(type) {
	case images.Path, images.External:
		url := s.resolver.Policy().URL(src, product.ProductID)
		v.ImageURL = &url
		v.Images = append(v.Images, models.Image{ID: row.VariantID, URL: url, Alt: name})
	case images.Blob:
		// the image route serves product images only
		s.logger.Debug("variant image stored inline has no public url", zap.Int64("variant_id", row.VariantID))
	}
	return v
}
