package carrier

import (
	"fmt"
	"log/slog"
	"time"

	"FreightTracker/internal/config"
	"FreightTracker/internal/infrastructure/retry"
	"FreightTracker/internal/ports"
	"FreightTracker/internal/timeparse"
)

// DefaultTimeout bounds one adapter invocation when the carrier config leaves it unset.
const DefaultTimeout = 30 * time.Second

// Deps carries collaborators shared by every adapter built from configuration.
type Deps struct {
	Diagnostics ports.DiagnosticsSink
	Logger      *slog.Logger
}

// NewFromConfig builds the adapter described by cfg.
func NewFromConfig(cfg config.CarrierConfig, deps Deps) (Adapter, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("carrier %s: %w", cfg.Name, err)
	}

	logger := deps.Logger
	if logger != nil {
		logger = logger.With("component", "carrier."+cfg.Name)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	fetch := &fetcher{
		adapter:     cfg.Name,
		urlTemplate: cfg.URL,
		timeout:     timeout,
		policy: retry.Policy{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		},
		headers:     cfg.Headers,
		diagnostics: deps.Diagnostics,
		logger:      logger,
	}
	times := timeparse.New(loc, cfg.DateLayouts...)

	switch cfg.Type {
	case config.CarrierTypeHTML:
		if cfg.HTML.Rows == "" || cfg.HTML.Timestamp == "" {
			return nil, fmt.Errorf("carrier %s: html.rows and html.timestamp selectors are required", cfg.Name)
		}
		return &HTMLAdapter{
			name:      cfg.Name,
			fetch:     fetch,
			selectors: cfg.HTML,
			times:     times,
			logger:    logger,
		}, nil
	case config.CarrierTypeDCSA:
		return &DCSAAdapter{
			name:   cfg.Name,
			fetch:  fetch,
			times:  times,
			logger: logger,
		}, nil
	default:
		return nil, fmt.Errorf("carrier %s: unsupported adapter type %q", cfg.Name, cfg.Type)
	}
}

// NewRegistryFromConfig builds every configured adapter and registers them in config order.
func NewRegistryFromConfig(carriers []config.CarrierConfig, deps Deps) (*Registry, error) {
	reg := NewRegistry()
	for _, cfg := range carriers {
		adapter, err := NewFromConfig(cfg, deps)
		if err != nil {
			return nil, err
		}
		reg.Register(adapter)
	}
	return reg, nil
}
