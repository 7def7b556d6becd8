package images

import (
	"context"
	"fmt"
	"sort"

	"github.com/storefront/catalog-service/internal/metrics"
	"github.com/storefront/catalog-service/internal/models"
	"go.uber.org/zap"
)

// Fetcher loads raw image rows for a batch of products.
type Fetcher interface {
	// DeclaredImages returns product_images rows ordered by product and sort order.
	DeclaredImages(ctx context.Context, productIDs []int64) ([]models.ImageRow, error)
	// VariantImages returns the non-null variant image references of the products.
	VariantImages(ctx context.Context, productIDs []int64) ([]models.ImageRow, error)
}

// Subject is a product whose images are resolved. Name is the alt text fallback.
type Subject struct {
	ID   int64
	Name string
}

// ResolutionFailure records that a product's images could not be looked up.
type ResolutionFailure struct {
	ProductID int64
	Err       error
}

func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("resolve images for product %d: %v", e.ProductID, e.Err)
}

func (e *ResolutionFailure) Unwrap() error {
	return e.Err
}

// Outcome is the per-product result of a batch. When Err is set Images is empty.
type Outcome struct {
	ProductID int64
	Images    []models.Image
	Err       error
}

// Results maps product ids to outcomes.
type Results map[int64]Outcome

// Images returns the resolved images of productID, never nil.
func (r Results) Images(productID int64) []models.Image {
	if o, ok := r[productID]; ok && o.Images != nil {
		return o.Images
	}
	return []models.Image{}
}

// Failures returns the failed outcomes ordered by product id.
func (r Results) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].ProductID < failed[j].ProductID })
	return failed
}

// Resolver builds product image lists from declared images, falling back to
// variant images for products that declare none.
type Resolver struct {
	fetcher Fetcher
	policy  URLPolicy
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(fetcher Fetcher, policy URLPolicy, m *metrics.AppMetrics, logger *zap.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, policy: policy, metrics: m, logger: logger}
}

// Policy returns the URL policy used for resolution.
func (r *Resolver) Policy() URLPolicy {
	return r.policy
}

// Resolve returns an outcome for every subject. Lookup failures never escape:
// affected products get an empty image list and a failed outcome, the rest
// of the batch is resolved normally. With include false nothing is fetched.
func (r *Resolver) Resolve(ctx context.Context, subjects []Subject, include bool) Results {
	results := make(Results, len(subjects))
	for _, s := range subjects {
		results[s.ID] = Outcome{ProductID: s.ID, Images: []models.Image{}}
	}
	if !include || len(results) == 0 {
		return results
	}

	ids := make([]int64, 0, len(results))
	queued := make(map[int64]struct{}, len(results))
	for _, s := range subjects {
		if _, ok := queued[s.ID]; ok {
			continue
		}
		queued[s.ID] = struct{}{}
		ids = append(ids, s.ID)
	}

	rows := make(map[int64][]models.ImageRow, len(ids))
	failed := make(map[int64]error)

	declared, err := r.fetcher.DeclaredImages(ctx, ids)
	if err != nil {
		for _, id := range ids {
			failed[id] = err
		}
	} else {
		collect(rows, declared, results, false)
	}

	var missing []int64
	for _, id := range ids {
		if failed[id] == nil && len(rows[id]) == 0 {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		fallback, err := r.fetcher.VariantImages(ctx, missing)
		if err != nil {
			for _, id := range missing {
				failed[id] = err
			}
		} else {
			collect(rows, fallback, results, true)
		}
	}

	for _, s := range subjects {
		if err := failed[s.ID]; err != nil {
			results[s.ID] = Outcome{
				ProductID: s.ID,
				Images:    []models.Image{},
				Err:       &ResolutionFailure{ProductID: s.ID, Err: err},
			}
			continue
		}
		results[s.ID] = Outcome{ProductID: s.ID, Images: r.build(s, rows[s.ID])}
	}

	r.report(ctx, results)
	return results
}

// collect groups rows by product, dropping repeats of the same raw reference
// and rows for products outside the batch.
func collect(dst map[int64][]models.ImageRow, src []models.ImageRow, batch Results, fallback bool) {
	seen := make(map[string]struct{}, len(src))
	for _, row := range src {
		if _, ok := batch[row.ProductID]; !ok || len(row.ImageURL) == 0 {
			continue
		}
		key := fmt.Sprintf("%d-%s", row.ProductID, row.ImageURL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if fallback {
			row.SortOrder = 0
			row.AltText = ""
		}
		dst[row.ProductID] = append(dst[row.ProductID], row)
	}
}

// build resolves and de-duplicates by final URL, since different raw
// references can land on the same client URL.
func (r *Resolver) build(s Subject, rows []models.ImageRow) []models.Image {
	out := make([]models.Image, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		src := Classify(row.ImageURL)
		if src == nil {
			continue
		}
		url := r.policy.URL(src, s.ID)
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}

		alt := row.AltText
		if alt == "" {
			alt = s.Name
		}
		var id int64
		if row.ImageID.Valid {
			id = row.ImageID.Int64
		}
		out = append(out, models.Image{ID: id, URL: url, Alt: alt, Order: row.SortOrder})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (r *Resolver) report(ctx context.Context, results Results) {
	failures := results.Failures()
	if len(failures) == 0 {
		return
	}
	ids := make([]int64, len(failures))
	for i, f := range failures {
		ids[i] = f.ProductID
	}
	r.logger.Warn("image resolution degraded to empty image lists",
		zap.Int("failed", len(failures)),
		zap.Int("batch", len(results)),
		zap.Int64s("product_ids", ids),
		zap.Error(failures[0].Err),
	)
	r.metrics.RecordImageFailures(ctx, len(failures))
}
