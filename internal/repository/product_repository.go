package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/storefront/catalog-service/internal/apperrors"
	"github.com/storefront/catalog-service/internal/metrics"
	"github.com/storefront/catalog-service/internal/models"
)

const (
	// effectiveStockSQL is the variant stock total when variants exist, else
	// the product's own stock.
	effectiveStockSQL = "COALESCE((SELECT SUM(pv.stock) FROM product_variants pv WHERE pv.product_id = p.product_id), p.stock, 0)"
	hasVariantsSQL    = "EXISTS (SELECT 1 FROM product_variants pv WHERE pv.product_id = p.product_id)"
)

// soldSQL sums quantities of completed orders; it takes the statuses as args.
var soldSQL = "COALESCE((SELECT SUM(oi.quantity) FROM order_items oi JOIN orders o ON o.order_id = oi.order_id" +
	" WHERE oi.product_id = p.product_id AND o.order_status IN (" +
	squirrel.Placeholders(len(models.CompletedOrderStatuses)) + ")), 0)"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ProductRepository reads the catalog tables.
type ProductRepository struct {
	db      *sqlx.DB
	metrics *metrics.AppMetrics
}

// NewProductRepository creates a repository over db.
func NewProductRepository(db *sqlx.DB, m *metrics.AppMetrics) *ProductRepository {
	return &ProductRepository{db: db, metrics: m}
}

func productColumns() squirrel.SelectBuilder {
	return squirrel.Select(
		"p.product_id",
		"p.name",
		"p.product_code",
		"p.description",
		"p.category_id",
		"p.created_at",
		"p.updated_at",
		"p.is_featured",
		"p.price AS base_price",
		"p.discounted_price",
		"p.discount_percentage",
		"p.average_rating",
		"p.review_count",
		"c.name AS category_name",
		"p.stock AS base_stock",
		effectiveStockSQL+" AS stock",
		hasVariantsSQL+" AS has_variants",
	).
		From("products p").
		LeftJoin("categories c ON p.category_id = c.category_id")
}

// inStock is the shared starting point of every aggregate listing.
func inStock() squirrel.SelectBuilder {
	return productColumns().Where(effectiveStockSQL + " > 0")
}

func soldExpr() squirrel.Sqlizer {
	return squirrel.Expr(soldSQL, statusArgs()...)
}

func statusArgs() []any {
	args := make([]any, len(models.CompletedOrderStatuses))
	for i, s := range models.CompletedOrderStatuses {
		args[i] = s
	}
	return args
}

// ListAll returns every in-stock product, newest first, optionally limited to
// one category.
func (r *ProductRepository) ListAll(ctx context.Context, categoryID *int64) ([]models.ProductRow, error) {
	q := inStock()
	if categoryID != nil {
		q = q.Where(squirrel.Eq{"p.category_id": *categoryID})
	}
	q = q.OrderBy("p.created_at DESC", "p.product_id DESC")

	var rows []models.ProductRow
	err := r.selectRows(ctx, "list products", "products", q, &rows)
	return rows, err
}

// ListNewArrivals returns in-stock products created at or after since.
func (r *ProductRepository) ListNewArrivals(ctx context.Context, since time.Time, limit uint64) ([]models.ProductRow, error) {
	q := inStock().
		Where(squirrel.GtOrEq{"p.created_at": since}).
		OrderBy("p.created_at DESC").
		Limit(limit)

	var rows []models.ProductRow
	err := r.selectRows(ctx, "list new arrivals", "products", q, &rows)
	return rows, err
}

// ListBestSellers returns in-stock products with completed sales, most sold
// first, ties broken by recency.
func (r *ProductRepository) ListBestSellers(ctx context.Context, limit uint64) ([]models.ProductRow, error) {
	q := inStock().
		Column(squirrel.Alias(soldExpr(), "total_sold")).
		Where(squirrel.Expr(soldSQL+" > 0", statusArgs()...)).
		OrderBy("total_sold DESC", "p.created_at DESC").
		Limit(limit)

	var rows []models.ProductRow
	err := r.selectRows(ctx, "list best sellers", "products", q, &rows)
	return rows, err
}

// ListFlashDeals returns discounted in-stock products, deepest discount first.
func (r *ProductRepository) ListFlashDeals(ctx context.Context, limit uint64) ([]models.ProductRow, error) {
	q := inStock().
		Where(squirrel.Gt{"p.discounted_price": 0}).
		Where(squirrel.Gt{"p.discount_percentage": 0}).
		OrderBy("p.discount_percentage DESC", "p.created_at DESC").
		Limit(limit)

	var rows []models.ProductRow
	err := r.selectRows(ctx, "list flash deals", "products", q, &rows)
	return rows, err
}

// Search matches text case-insensitively against name, description, product
// code and category name. Name matches rank above description matches.
func (r *ProductRepository) Search(ctx context.Context, text string, limit uint64) ([]models.ProductRow, error) {
	term := "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"

	q := inStock().
		Where(squirrel.Or{
			squirrel.Expr("LOWER(p.name) LIKE ?", term),
			squirrel.Expr("LOWER(COALESCE(p.description, '')) LIKE ?", term),
			squirrel.Expr("LOWER(COALESCE(p.product_code, '')) LIKE ?", term),
			squirrel.Expr("LOWER(COALESCE(c.name, '')) LIKE ?", term),
		}).
		OrderByClause("CASE WHEN LOWER(p.name) LIKE ? THEN 10 WHEN LOWER(COALESCE(p.description, '')) LIKE ? THEN 5 ELSE 1 END DESC", term, term).
		OrderBy("p.created_at DESC").
		Limit(limit)

	var rows []models.ProductRow
	err := r.selectRows(ctx, "search products", "products", q, &rows)
	return rows, err
}

// GetDetail returns one product regardless of stock, with the quantity sold
// through completed orders.
func (r *ProductRepository) GetDetail(ctx context.Context, productID int64) (*models.ProductRow, error) {
	q := productColumns().
		Column(squirrel.Alias(soldExpr(), "items_sold")).
		Where(squirrel.Eq{"p.product_id": productID})

	query, args, err := q.ToSql()
	if err != nil {
		return nil, apperrors.Store("build product detail query", err)
	}

	var row models.ProductRow
	start := time.Now()
	err = r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		r.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, true)
		return nil, fmt.Errorf("product %d: %w", productID, apperrors.ErrNotFound)
	}
	r.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, apperrors.Store("get product detail", err)
	}
	return &row, nil
}

// ListVariants returns the variants of one product.
func (r *ProductRepository) ListVariants(ctx context.Context, productID int64) ([]models.VariantRow, error) {
	q := squirrel.Select(
		"variant_id", "product_id", "sku", "price", "stock", "image_url", "attributes", "created_at", "updated_at",
	).
		From("product_variants").
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("variant_id")

	var rows []models.VariantRow
	err := r.selectRows(ctx, "list variants", "product_variants", q, &rows)
	return rows, err
}

// DeclaredImages returns the distinct product_images references of a batch.
func (r *ProductRepository) DeclaredImages(ctx context.Context, productIDs []int64) ([]models.ImageRow, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	q := squirrel.Select(
		"pi.product_id",
		"pi.image_id",
		"pi.image_url",
		"COALESCE(pi.sort_order, 0) AS sort_order",
		"COALESCE(pi.alt_text, '') AS alt_text",
	).
		Distinct().
		From("product_images pi").
		Where(squirrel.Eq{"pi.product_id": productIDs}).
		OrderBy("pi.product_id", "sort_order")

	var rows []models.ImageRow
	err := r.selectRows(ctx, "list product images", "product_images", q, &rows)
	return rows, err
}

// VariantImages returns the non-null variant image references of a batch.
func (r *ProductRepository) VariantImages(ctx context.Context, productIDs []int64) ([]models.ImageRow, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	q := squirrel.Select(
		"pv.product_id",
		"pv.variant_id AS image_id",
		"pv.image_url",
		"0 AS sort_order",
		"'' AS alt_text",
	).
		Distinct().
		From("product_variants pv").
		Where(squirrel.Eq{"pv.product_id": productIDs}).
		Where(squirrel.NotEq{"pv.image_url": nil}).
		OrderBy("pv.product_id", "pv.variant_id")

	var rows []models.ImageRow
	err := r.selectRows(ctx, "list variant images", "product_variants", q, &rows)
	return rows, err
}

// FirstImage returns the raw reference of the product's first declared image.
func (r *ProductRepository) FirstImage(ctx context.Context, productID int64) ([]byte, error) {
	query, args, err := squirrel.Select("image_url").
		From("product_images").
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("sort_order").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, apperrors.Store("build first image query", err)
	}

	var raw []byte
	start := time.Now()
	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		r.metrics.RecordDBQuery(ctx, "SELECT", "product_images", query, start, true)
		return nil, fmt.Errorf("image of product %d: %w", productID, apperrors.ErrNotFound)
	}
	r.metrics.RecordDBQuery(ctx, "SELECT", "product_images", query, start, err == nil)
	if err != nil {
		return nil, apperrors.Store("get first image", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("image of product %d is empty: %w", productID, apperrors.ErrNotFound)
	}
	return raw, nil
}

func (r *ProductRepository) selectRows(ctx context.Context, op, table string, q squirrel.SelectBuilder, dest any) error {
	query, args, err := q.ToSql()
	if err != nil {
		return apperrors.Store("build "+op+" query", err)
	}

	start := time.Now()
	err = r.db.SelectContext(ctx, dest, query, args...)
	r.metrics.RecordDBQuery(ctx, "SELECT", table, query, start, err == nil)
	return apperrors.Store(op, err)
}
