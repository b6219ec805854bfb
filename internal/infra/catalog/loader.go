// Package catalog loads and validates the poold configuration file.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"poold/internal/domain"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

func newCatalogViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.enableMetrics", true)
	v.SetDefault("observability.enableHealthz", true)
	return v
}

type rawCatalog struct {
	Pools         []rawPoolSpec          `mapstructure:"pools"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
}

type rawPoolSpec struct {
	Name                  string   `mapstructure:"name"`
	Network               string   `mapstructure:"network"`
	Address               string   `mapstructure:"address"`
	Capabilities          []string `mapstructure:"capabilities"`
	Min                   int      `mapstructure:"min"`
	Max                   int      `mapstructure:"max"`
	MaxRequests           int      `mapstructure:"maxRequests"`
	AcquireTimeoutSeconds *int     `mapstructure:"acquireTimeoutSeconds"`
	DisposeTimeoutSeconds *int     `mapstructure:"disposeTimeoutSeconds"`
	PingTimeoutSeconds    int      `mapstructure:"pingTimeoutSeconds"`
	IdleTimeoutSeconds    int      `mapstructure:"idleTimeoutSeconds"`
	SyncIntervalSeconds   *int     `mapstructure:"syncIntervalSeconds"`
	RequestTimeoutSeconds int      `mapstructure:"requestTimeoutSeconds"`
	BailAfterSeconds      int      `mapstructure:"bailAfterSeconds"`
	BackoffBaseMillis     int      `mapstructure:"backoffBaseMillis"`
	BackoffMaxMillis      int      `mapstructure:"backoffMaxMillis"`
	DialTimeoutSeconds    int      `mapstructure:"dialTimeoutSeconds"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
	EnableMetrics bool   `mapstructure:"enableMetrics"`
	EnableHealthz bool   `mapstructure:"enableHealthz"`
}

// Load reads, expands and validates the catalog at path.
func (l *Loader) Load(ctx context.Context, path string) (domain.Catalog, error) {
	if path == "" {
		return domain.Catalog{}, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read config: %w", err)
	}

	expanded, missing := expandConfigEnv(string(data))
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config",
			zap.String("path", path),
			zap.Strings("missing", missing),
		)
	}

	v := newCatalogViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg rawCatalog
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Catalog{}, fmt.Errorf("decode config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, err
	}

	var validationErrors []string
	nameSeen := make(map[string]struct{})
	pools := make([]domain.PoolSpec, 0, len(cfg.Pools))
	for i, raw := range cfg.Pools {
		spec := normalizePoolSpec(raw)
		if _, exists := nameSeen[spec.Name]; exists {
			validationErrors = append(validationErrors, fmt.Sprintf("pools[%d]: duplicate name %q", i, spec.Name))
		} else if spec.Name != "" {
			nameSeen[spec.Name] = struct{}{}
		}
		if errs := validatePoolSpec(spec, i); len(errs) > 0 {
			validationErrors = append(validationErrors, errs...)
			continue
		}
		pools = append(pools, spec)
	}

	if len(validationErrors) > 0 {
		return domain.Catalog{}, errors.New(strings.Join(validationErrors, "; "))
	}

	return domain.Catalog{
		Pools: pools,
		Runtime: domain.RuntimeConfig{
			Observability: domain.ObservabilityConfig{
				ListenAddress: cfg.Observability.ListenAddress,
				EnableMetrics: cfg.Observability.EnableMetrics,
				EnableHealthz: cfg.Observability.EnableHealthz,
			},
		},
	}, nil
}

func normalizePoolSpec(raw rawPoolSpec) domain.PoolSpec {
	spec := domain.PoolSpec{
		Name:                  strings.TrimSpace(raw.Name),
		Network:               strings.TrimSpace(raw.Network),
		Address:               strings.TrimSpace(raw.Address),
		Capabilities:          raw.Capabilities,
		Min:                   raw.Min,
		Max:                   raw.Max,
		MaxRequests:           raw.MaxRequests,
		AcquireTimeoutSeconds: raw.AcquireTimeoutSeconds,
		DisposeTimeoutSeconds: raw.DisposeTimeoutSeconds,
		PingTimeoutSeconds:    raw.PingTimeoutSeconds,
		IdleTimeoutSeconds:    raw.IdleTimeoutSeconds,
		SyncIntervalSeconds:   raw.SyncIntervalSeconds,
		RequestTimeoutSeconds: raw.RequestTimeoutSeconds,
		BailAfterSeconds:      raw.BailAfterSeconds,
		BackoffBaseMillis:     raw.BackoffBaseMillis,
		BackoffMaxMillis:      raw.BackoffMaxMillis,
		DialTimeoutSeconds:    raw.DialTimeoutSeconds,
	}
	if spec.Network == "" {
		spec.Network = "tcp"
	}
	if spec.Max == 0 {
		spec.Max = domain.DefaultMax
	}
	return spec
}

func validatePoolSpec(spec domain.PoolSpec, index int) []string {
	var errs []string
	prefix := fmt.Sprintf("pools[%d]", index)
	if spec.Name == "" {
		errs = append(errs, prefix+": name is required")
	}
	if spec.Address == "" {
		errs = append(errs, prefix+": address is required")
	}
	if spec.Min < 0 {
		errs = append(errs, prefix+": min cannot be negative")
	}
	if spec.Max < 1 {
		errs = append(errs, prefix+": max must be at least 1")
	}
	if spec.Min > spec.Max {
		errs = append(errs, prefix+": min cannot be greater than max")
	}
	if spec.MaxRequests < 0 {
		errs = append(errs, prefix+": maxRequests must be at least 1")
	}
	syncDisabled := spec.SyncIntervalSeconds != nil && *spec.SyncIntervalSeconds <= 0
	if syncDisabled && spec.IdleTimeoutSeconds > 0 {
		errs = append(errs, prefix+": idleTimeout cannot be set when syncInterval is disabled")
	}
	return errs
}

// expandConfigEnv substitutes ${VAR} references from the environment and
// reports unset variables.
func expandConfigEnv(data string) (string, []string) {
	var missing []string
	expanded := os.Expand(data, func(name string) string {
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ""
		}
		return value
	})
	return expanded, missing
}
