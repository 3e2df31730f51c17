// Package server exposes tracking over HTTP with chi and huma.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"FreightTracker/internal/domain"
	"FreightTracker/internal/milestone"
	"FreightTracker/internal/ports"
	"FreightTracker/internal/usecase"
)

// Config for the HTTP API handler. Repository and Metrics are optional.
type Config struct {
	Tracker    *usecase.Tracker
	Repository ports.RecordRepository
	Metrics    http.Handler
	BasePath   string
	Clock      func() time.Time
	Logger     *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	return &apiError{
		status: status,
		Body:   apiErrorBody{Code: code, Message: message, Details: details},
	}
}

// New returns an HTTP handler exposing the tracking API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("server: tracker is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		router.Use(requestLogger(cfg.Logger))
	}

	hcfg := huma.DefaultConfig("Freight Tracker API", "1.0.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerTrack(group, cfg.Tracker)
	registerResolve(group, cfg.Clock)
	if cfg.Repository != nil {
		registerRecords(group, cfg.Repository)
	}
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics)
	}

	return router, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTrack(api huma.API, tracker *usecase.Tracker) {
	huma.Register(api, huma.Operation{
		OperationID: "track",
		Method:      http.MethodGet,
		Path:        "/track/{tracking_number}",
		Summary:     "Track a shipment across every configured carrier",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		TrackingNumber string `path:"tracking_number" minLength:"1"`
	}) (*struct {
		Body TrackResponse `json:"body"`
	}, error) {
		res, err := tracker.Track(ctx, input.TrackingNumber)
		if err != nil {
			var exhausted *domain.ExhaustedError
			if errors.As(err, &exhausted) {
				return nil, newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{
					"tried":    exhausted.Tried,
					"attempts": mapAttempts(res.Attempts),
				})
			}
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}

		return &struct {
			Body TrackResponse `json:"body"`
		}{Body: TrackResponse{
			TrackingNumber: res.TrackingNumber,
			Adapter:        res.Adapter,
			Record:         res.Record,
			Attempts:       mapAttempts(res.Attempts),
			ResolvedAt:     res.ResolvedAt,
		}}, nil
	})
}

func registerRecords(api huma.API, repo ports.RecordRepository) {
	huma.Register(api, huma.Operation{
		OperationID: "get-record",
		Method:      http.MethodGet,
		Path:        "/records/{tracking_number}",
		Summary:     "Latest stored record and recent attempts",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		TrackingNumber string `path:"tracking_number" minLength:"1"`
		Limit          int    `query:"limit" minimum:"1" maximum:"200" default:"20"`
	}) (*struct {
		Body RecordResponse `json:"body"`
	}, error) {
		stored, ok, err := repo.LatestRecord(ctx, input.TrackingNumber)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no record stored for "+input.TrackingNumber, nil)
		}

		attempts, err := repo.RecentAttempts(ctx, input.TrackingNumber, input.Limit)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}

		return &struct {
			Body RecordResponse `json:"body"`
		}{Body: RecordResponse{
			TrackingNumber: stored.TrackingNumber,
			Adapter:        stored.Adapter,
			Record:         stored.Record,
			ResolvedAt:     stored.ResolvedAt,
			Attempts:       mapStoredAttempts(attempts),
		}}, nil
	})
}

func registerResolve(api huma.API, clock func() time.Time) {
	huma.Register(api, huma.Operation{
		OperationID: "resolve",
		Method:      http.MethodPost,
		Path:        "/resolve",
		Summary:     "Resolve posted carrier events into a canonical record",
	}, func(ctx context.Context, input *struct {
		Body ResolveRequest `json:"body"`
	}) (*struct {
		Body domain.CanonicalRecord `json:"body"`
	}, error) {
		ref := clock()
		if input.Body.ReferenceTime != nil {
			ref = *input.Body.ReferenceTime
		}
		record := milestone.ResolveShipment(input.Body.shipment(), ref)
		return &struct {
			Body domain.CanonicalRecord `json:"body"`
		}{Body: record}, nil
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
