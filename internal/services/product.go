package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/storefront/catalog-service/internal/apperrors"
	"github.com/storefront/catalog-service/internal/cache"
	"github.com/storefront/catalog-service/internal/images"
	"github.com/storefront/catalog-service/internal/metrics"
	"github.com/storefront/catalog-service/internal/models"
	"go.uber.org/zap"
)

// Listing intents, also used as cache key and metric labels.
const (
	IntentAll         = "all"
	IntentNewArrivals = "new-arrivals"
	IntentBestSellers = "best-sellers"
	IntentFlashDeals  = "flash-deals"
	IntentSearch      = "search"
)

const (
	highlightLimit   = 12
	searchLimit      = 10
	newArrivalWindow = 30 * 24 * time.Hour
	// MaxSearchLength bounds the search text in characters.
	MaxSearchLength = 200
)

// Catalog is the read side of the product store.
type Catalog interface {
	ListAll(ctx context.Context, categoryID *int64) ([]models.ProductRow, error)
	ListNewArrivals(ctx context.Context, since time.Time, limit uint64) ([]models.ProductRow, error)
	ListBestSellers(ctx context.Context, limit uint64) ([]models.ProductRow, error)
	ListFlashDeals(ctx context.Context, limit uint64) ([]models.ProductRow, error)
	Search(ctx context.Context, text string, limit uint64) ([]models.ProductRow, error)
	GetDetail(ctx context.Context, productID int64) (*models.ProductRow, error)
	ListVariants(ctx context.Context, productID int64) ([]models.VariantRow, error)
	FirstImage(ctx context.Context, productID int64) ([]byte, error)
}

// ProductFilter narrows the "all products" listing.
type ProductFilter struct {
	CategoryID    *int64
	IncludeImages bool
}

// ListOptions applies to the fixed-size highlight listings.
type ListOptions struct {
	IncludeImages bool
}

// ProductService assembles client-ready catalog views
type ProductService struct {
	catalog  Catalog
	resolver *images.Resolver
	files    images.Files
	cache    *cache.Listing
	metrics  *metrics.AppMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewProductService creates a new product service
func NewProductService(
	catalog Catalog,
	resolver *images.Resolver,
	files images.Files,
	listing *cache.Listing,
	m *metrics.AppMetrics,
	logger *zap.Logger,
) *ProductService {
	return &ProductService{
		catalog:  catalog,
		resolver: resolver,
		files:    files,
		cache:    listing,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// ListProducts returns every in-stock product under the products envelope.
func (s *ProductService) ListProducts(ctx context.Context, f ProductFilter) (models.ProductList, error) {
	params := url.Values{}
	if f.CategoryID != nil {
		params.Set("category", strconv.FormatInt(*f.CategoryID, 10))
	}
	params.Set("includeImages", strconv.FormatBool(f.IncludeImages))

	key := cache.Key{Intent: IntentAll, Params: params}
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (models.ProductList, bool, error) {
		rows, err := s.catalog.ListAll(ctx, f.CategoryID)
		if err != nil {
			return models.ProductList{}, false, err
		}
		products, complete := s.assemble(ctx, IntentAll, rows, f.IncludeImages)
		return models.ProductList{Products: products}, complete, nil
	})
}

// ListNewArrivals returns up to 12 in-stock products created in the last 30 days.
func (s *ProductService) ListNewArrivals(ctx context.Context, opts ListOptions) ([]models.Product, error) {
	return s.highlight(ctx, IntentNewArrivals, opts, func(ctx context.Context) ([]models.ProductRow, error) {
		return s.catalog.ListNewArrivals(ctx, s.now().Add(-newArrivalWindow), highlightLimit)
	})
}

// ListBestSellers returns up to 12 in-stock products by completed sales.
func (s *ProductService) ListBestSellers(ctx context.Context, opts ListOptions) ([]models.Product, error) {
	return s.highlight(ctx, IntentBestSellers, opts, func(ctx context.Context) ([]models.ProductRow, error) {
		return s.catalog.ListBestSellers(ctx, highlightLimit)
	})
}

// ListFlashDeals returns up to 12 discounted in-stock products.
func (s *ProductService) ListFlashDeals(ctx context.Context, opts ListOptions) ([]models.Product, error) {
	return s.highlight(ctx, IntentFlashDeals, opts, func(ctx context.Context) ([]models.ProductRow, error) {
		return s.catalog.ListFlashDeals(ctx, highlightLimit)
	})
}

// SearchProducts matches query against names, descriptions, codes and
// categories. Blank queries return an empty result without touching the store.
func (s *ProductService) SearchProducts(ctx context.Context, query string) ([]models.SearchResult, error) {
	text := strings.TrimSpace(query)
	if text == "" {
		return []models.SearchResult{}, nil
	}
	if utf8.RuneCountInString(text) > MaxSearchLength {
		return nil, apperrors.Validation("search query longer than %d characters", MaxSearchLength)
	}

	key := cache.Key{Intent: IntentSearch, Params: url.Values{"q": {strings.ToLower(text)}}}
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]models.SearchResult, bool, error) {
		rows, err := s.catalog.Search(ctx, text, searchLimit)
		if err != nil {
			return nil, false, err
		}
		products, complete := s.assemble(ctx, IntentSearch, rows, true)
		results := make([]models.SearchResult, 0, len(products))
		for _, p := range products {
			results = append(results, toSearchResult(p))
		}
		return results, complete, nil
	})
}

// GetProductDetail returns one product with its variants and images,
// whatever its stock. It is never cached.
func (s *ProductService) GetProductDetail(ctx context.Context, productID int64) (*models.ProductDetail, error) {
	row, err := s.catalog.GetDetail(ctx, productID)
	if err != nil {
		return nil, err
	}
	variants, err := s.catalog.ListVariants(ctx, productID)
	if err != nil {
		return nil, err
	}

	product := normalizeProduct(*row)
	product.Stock, product.HasVariants = aggregateStock(row.BaseStock, variants)

	results := s.resolver.Resolve(ctx, []images.Subject{{ID: product.ProductID, Name: product.Name}}, true)
	product.Images = results.Images(product.ProductID)

	product.Variants = make([]models.Variant, 0, len(variants))
	for _, v := range variants {
		product.Variants = append(product.Variants, s.normalizeVariant(product, v))
	}

	category := uncategorized
	if product.CategoryName != nil {
		category = *product.CategoryName
	}
	s.metrics.RecordProductView(ctx, productID, category)

	return &models.ProductDetail{
		Product:       product,
		StockQuantity: nonNegative(row.BaseStock),
		ItemsSold:     row.ItemsSold.Int64(),
	}, nil
}

// ImageKind says how a product image is delivered.
type ImageKind int

const (
	ImageBlob ImageKind = iota + 1
	ImageRedirect
	ImageFile
)

// ImagePayload is the primary image of a product ready to be written out.
type ImagePayload struct {
	Kind        ImageKind
	Data        []byte // ImageBlob
	ContentType string // ImageBlob
	Location    string // ImageRedirect
	FilePath    string // ImageFile
}

// ServeProductImage returns the first declared image of a product: inline
// bytes, an external location, or a file under the uploads directory.
func (s *ProductService) ServeProductImage(ctx context.Context, productID int64) (*ImagePayload, error) {
	raw, err := s.catalog.FirstImage(ctx, productID)
	if err != nil {
		return nil, err
	}

	switch src := images.Classify(raw).(type) {
	case images.Blob:
		return &ImagePayload{Kind: ImageBlob, Data: src.Data, ContentType: images.ContentType(src.Data)}, nil
	case images.External:
		return &ImagePayload{Kind: ImageRedirect, Location: src.URL}, nil
	case images.Path:
		path, err := s.files.Locate(src.Path)
		if err != nil {
			return nil, err
		}
		return &ImagePayload{Kind: ImageFile, FilePath: path}, nil
	default:
		return nil, fmt.Errorf("image of product %d: %w", productID, apperrors.ErrNotFound)
	}
}

func (s *ProductService) highlight(
	ctx context.Context,
	intent string,
	opts ListOptions,
	fetch func(context.Context) ([]models.ProductRow, error),
) ([]models.Product, error) {
	key := cache.Key{Intent: intent, Params: url.Values{"includeImages": {strconv.FormatBool(opts.IncludeImages)}}}
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]models.Product, bool, error) {
		rows, err := fetch(ctx)
		if err != nil {
			return nil, false, err
		}
		products, complete := s.assemble(ctx, intent, rows, opts.IncludeImages)
		return products, complete, nil
	})
}

// assemble normalizes rows, keeps what is in stock and attaches images. The
// second result is false when some images could not be resolved, in which
// case the listing should not be cached.
func (s *ProductService) assemble(ctx context.Context, intent string, rows []models.ProductRow, includeImages bool) ([]models.Product, bool) {
	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, normalizeProduct(row))
	}
	products = available(products)

	subjects := make([]images.Subject, len(products))
	for i, p := range products {
		subjects[i] = images.Subject{ID: p.ProductID, Name: p.Name}
	}
	results := s.resolver.Resolve(ctx, subjects, includeImages)
	for i := range products {
		products[i].Images = results.Images(products[i].ProductID)
	}

	s.metrics.RecordListing(ctx, intent, len(products))
	return products, len(results.Failures()) == 0
}
