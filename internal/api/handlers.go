package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/storefront/catalog-service/internal/apperrors"
	"github.com/storefront/catalog-service/internal/metrics"
	"github.com/storefront/catalog-service/internal/middleware"
	"github.com/storefront/catalog-service/internal/models"
	"github.com/storefront/catalog-service/internal/services"
	"go.uber.org/zap"
)

// ProductService is the catalog behaviour the HTTP layer needs.
type ProductService interface {
	ListProducts(ctx context.Context, f services.ProductFilter) (models.ProductList, error)
	ListNewArrivals(ctx context.Context, opts services.ListOptions) ([]models.Product, error)
	ListBestSellers(ctx context.Context, opts services.ListOptions) ([]models.Product, error)
	ListFlashDeals(ctx context.Context, opts services.ListOptions) ([]models.Product, error)
	SearchProducts(ctx context.Context, query string) ([]models.SearchResult, error)
	GetProductDetail(ctx context.Context, productID int64) (*models.ProductDetail, error)
	ServeProductImage(ctx context.Context, productID int64) (*services.ImagePayload, error)
}

// Pinger reports store health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures the HTTP layer.
type Options struct {
	UploadsDir  string
	ImageMaxAge time.Duration
}

// App holds application dependencies
type App struct {
	products ProductService
	db       Pinger
	metrics  *metrics.AppMetrics
	logger   *zap.Logger
	opts     Options
}

// NewApp creates a new application instance
func NewApp(ps ProductService, db Pinger, m *metrics.AppMetrics, logger *zap.Logger, opts Options) *App {
	return &App{products: ps, db: db, metrics: m, logger: logger, opts: opts}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics, a.logger))
	r.Use(middleware.RecoverMiddleware(a.logger))

	products := r.PathPrefix("/api/products").Subrouter()
	products.HandleFunc("", a.ListProductsHandler).Methods(http.MethodGet)
	products.HandleFunc("/new-arrivals", a.NewArrivalsHandler).Methods(http.MethodGet)
	products.HandleFunc("/best-sellers", a.BestSellersHandler).Methods(http.MethodGet)
	products.HandleFunc("/flash-deals", a.FlashDealsHandler).Methods(http.MethodGet)
	products.HandleFunc("/search", a.SearchHandler).Methods(http.MethodGet)
	products.HandleFunc("/image/{id:[0-9]+}", a.ProductImageHandler).Methods(http.MethodGet)
	products.HandleFunc("/{id:[0-9]+}", a.GetProductHandler).Methods(http.MethodGet)

	if a.opts.UploadsDir != "" {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.opts.UploadsDir))))
	}

	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		if err := a.db.PingContext(r.Context()); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListProductsHandler handles GET /api/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	filter := services.ProductFilter{IncludeImages: includeImages(r)}
	if c := r.URL.Query().Get("category"); c != "" {
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil || id <= 0 {
			a.writeError(w, r, apperrors.Validation("invalid category %q", c))
			return
		}
		filter.CategoryID = &id
	}

	list, err := a.products.ListProducts(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// NewArrivalsHandler handles GET /api/products/new-arrivals
func (a *App) NewArrivalsHandler(w http.ResponseWriter, r *http.Request) {
	a.writeListing(w, r, a.products.ListNewArrivals)
}

// BestSellersHandler handles GET /api/products/best-sellers
func (a *App) BestSellersHandler(w http.ResponseWriter, r *http.Request) {
	a.writeListing(w, r, a.products.ListBestSellers)
}

// FlashDealsHandler handles GET /api/products/flash-deals
func (a *App) FlashDealsHandler(w http.ResponseWriter, r *http.Request) {
	a.writeListing(w, r, a.products.ListFlashDeals)
}

// SearchHandler handles GET /api/products/search?query=
func (a *App) SearchHandler(w http.ResponseWriter, r *http.Request) {
	results, err := a.products.SearchProducts(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// GetProductHandler handles GET /api/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	detail, err := a.products.GetProductDetail(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ProductImageHandler handles GET /api/products/image/{id}
func (a *App) ProductImageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	img, err := a.products.ServeProductImage(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(a.opts.ImageMaxAge.Seconds())))
	switch img.Kind {
	case services.ImageBlob:
		w.Header().Set("Content-Type", img.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img.Data)
	case services.ImageRedirect:
		http.Redirect(w, r, img.Location, http.StatusFound)
	case services.ImageFile:
		http.ServeFile(w, r, img.FilePath)
	default:
		a.writeError(w, r, apperrors.ErrNotFound)
	}
}

func (a *App) writeListing(
	w http.ResponseWriter,
	r *http.Request,
	list func(context.Context, services.ListOptions) ([]models.Product, error),
) {
	products, err := list(r.Context(), services.ListOptions{IncludeImages: includeImages(r)})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// writeError maps service errors to status codes. Internal details are
// logged, never returned.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Product not found"})
	case errors.Is(err, apperrors.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
	case apperrors.IsStore(err):
		a.logger.Error("store query failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Server error while fetching products"})
	default:
		a.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Server error while fetching products"})
	}
}

type errorBody struct {
	Message string `json:"message"`
}

func productID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Validation("invalid product id %q", raw)
	}
	return id, nil
}

// includeImages reads the includeImages query flag; images are on unless
// explicitly disabled.
func includeImages(r *http.Request) bool {
	switch r.URL.Query().Get("includeImages") {
	case "false", "0":
		return false
	default:
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
