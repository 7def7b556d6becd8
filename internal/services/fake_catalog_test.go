package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/storefront/catalog-service/internal/apperrors"
	"github.com/storefront/catalog-service/internal/cache"
	"github.com/storefront/catalog-service/internal/images"
	"github.com/storefront/catalog-service/internal/metrics"
	"github.com/storefront/catalog-service/internal/models"
	"go.uber.org/zap/zaptest"
)

// fakeCatalog serves canned rows and also acts as the image fetcher.
type fakeCatalog struct {
	mu sync.Mutex

	listings map[string][]models.ProductRow
	details  map[int64]models.ProductRow
	variants map[int64][]models.VariantRow
	declared []models.ImageRow
	fallback []models.ImageRow
	first    map[int64][]byte

	listErr  error
	imageErr error

	calls      map[string]int
	since      time.Time
	searchText string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		listings: map[string][]models.ProductRow{},
		details:  map[int64]models.ProductRow{},
		variants: map[int64][]models.VariantRow{},
		first:    map[int64][]byte{},
		calls:    map[string]int{},
	}
}

func (f *fakeCatalog) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeCatalog) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeCatalog) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeCatalog) listing(op string) ([]models.ProductRow, error) {
	f.record(op)
	if f.listErr != nil {
		return nil, apperrors.Store(op, f.listErr)
	}
	return f.listings[op], nil
}

func (f *fakeCatalog) ListAll(_ context.Context, categoryID *int64) ([]models.ProductRow, error) {
	rows, err := f.listing(IntentAll)
	if err != nil || categoryID == nil {
		return rows, err
	}
	var out []models.ProductRow
	for _, r := range rows {
		if r.CategoryID.Valid && r.CategoryID.Int64 == *categoryID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListNewArrivals(_ context.Context, since time.Time, _ uint64) ([]models.ProductRow, error) {
	f.since = since
	return f.listing(IntentNewArrivals)
}

func (f *fakeCatalog) ListBestSellers(context.Context, uint64) ([]models.ProductRow, error) {
	return f.listing(IntentBestSellers)
}

func (f *fakeCatalog) ListFlashDeals(context.Context, uint64) ([]models.ProductRow, error) {
	return f.listing(IntentFlashDeals)
}

func (f *fakeCatalog) Search(_ context.Context, text string, _ uint64) ([]models.ProductRow, error) {
	f.searchText = text
	return f.listing(IntentSearch)
}

func (f *fakeCatalog) GetDetail(_ context.Context, id int64) (*models.ProductRow, error) {
	f.record("detail")
	row, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, apperrors.ErrNotFound)
	}
	return &row, nil
}

func (f *fakeCatalog) ListVariants(_ context.Context, id int64) ([]models.VariantRow, error) {
	f.record("variants")
	return f.variants[id], nil
}

func (f *fakeCatalog) FirstImage(_ context.Context, id int64) ([]byte, error) {
	f.record("first image")
	raw, ok := f.first[id]
	if !ok {
		return nil, fmt.Errorf("image of product %d: %w", id, apperrors.ErrNotFound)
	}
	return raw, nil
}

func (f *fakeCatalog) DeclaredImages(_ context.Context, ids []int64) ([]models.ImageRow, error) {
	f.record("declared images")
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return filterImages(f.declared, ids), nil
}

func (f *fakeCatalog) VariantImages(_ context.Context, ids []int64) ([]models.ImageRow, error) {
	f.record("variant images")
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return filterImages(f.fallback, ids), nil
}

func filterImages(rows []models.ImageRow, ids []int64) []models.ImageRow {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.ImageRow
	for _, r := range rows {
		if want[r.ProductID] {
			out = append(out, r)
		}
	}
	return out
}

var created = time.Date(2026, 9, 20, 8, 0, 0, 0, time.UTC)

func productRow(id int64, name string, stock float64) models.ProductRow {
	return models.ProductRow{
		ProductID: id,
		Name:      name,
		CreatedAt: sql.NullTime{Time: created, Valid: true},
		UpdatedAt: sql.NullTime{Time: created, Valid: true},
		BasePrice: models.NewNumber(10),
		BaseStock: models.NewNumber(stock),
		Stock:     models.NewNumber(stock),
	}
}

func imageRow(productID, imageID int64, url string, order int64) models.ImageRow {
	return models.ImageRow{
		ProductID: productID,
		ImageID:   sql.NullInt64{Int64: imageID, Valid: imageID != 0},
		ImageURL:  []byte(url),
		SortOrder: order,
	}
}

func newTestService(t *testing.T, cat *fakeCatalog, ttl time.Duration) (*ProductService, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(ttl, 0)
	t.Cleanup(func() { store.Close() })

	logger := zaptest.NewLogger(t)
	m := metrics.Noop("test")
	resolver := images.NewResolver(cat, images.DefaultURLPolicy, m, logger)
	files := images.NewFiles(t.TempDir(), images.DefaultURLPolicy.UploadsPrefix)
	return NewProductService(cat, resolver, files, cache.NewListing(store, m, logger), m, logger), store
}
