// Package config loads and validates the engine configuration. All case
// folding and defaulting happens here, once, so business logic downstream
// only ever sees a normalized struct.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default tolerance values. Exact numerics are configuration, not contract.
const (
	DefaultCeilingEpsilon     = 0.10
	DefaultPriceTolerancePts  = 1
	DefaultHistoryLookback    = 5 * 24 * time.Hour
	DefaultMartingaleLookback = 24 * time.Hour
	DefaultStandardDistance   = 5.0  // pips
	DefaultSyntheticDistance  = 15.0 // pips
)

// DefaultBreakevenCheckpoints are the staged stop-advance fractions of R.
var DefaultBreakevenCheckpoints = []float64{0.25, 0.50}

// Tolerances groups the numeric slack used across the sweep.
type Tolerances struct {
	// CeilingEpsilon absorbs rounding when comparing recomputed risk
	// against the tier ceiling, in account currency.
	CeilingEpsilon float64 `yaml:"ceiling_epsilon" validate:"gte=0"`
	// PriceTolerancePoints is the modify threshold: stop/target changes
	// smaller than this many points are not sent to the venue.
	PriceTolerancePoints int `yaml:"price_tolerance_points" validate:"gte=1"`
	// BreakevenCheckpoints are fractions of R, ascending.
	BreakevenCheckpoints []float64 `yaml:"breakeven_checkpoints" validate:"min=1,dive,gt=0,lt=1"`
	// HistoryLookback windows duplicate-setup detection.
	HistoryLookback time.Duration `yaml:"history_lookback"`
	// MartingaleLookback windows loss inspection for volume escalation.
	MartingaleLookback time.Duration `yaml:"martingale_lookback"`
}

// AccountConfig describes one broker account the sweeper processes.
type AccountConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Broker string `yaml:"broker" validate:"required"`
	// Gateway selects the venue adapter, e.g. "bridge".
	Gateway string `yaml:"gateway" validate:"required"`
	// GatewayConfig is the adapter-specific JSON config blob.
	GatewayConfig string `yaml:"gateway_config" validate:"required"`
	// ScalingMode is "martingale" or "consistency".
	ScalingMode types.ScalingMode `yaml:"scaling_mode" validate:"required,oneof=martingale consistency"`
	// RewardMultiple is the integer R-multiple for consistency mode.
	RewardMultiple int `yaml:"reward_multiple" validate:"gte=0"`
	// MartingaleSymbols is the explicit allow-list for volume escalation.
	MartingaleSymbols []string `yaml:"martingale_symbols"`
	// PricePreference picks the duplicate survivor during reconciliation.
	PricePreference types.PricePreference `yaml:"price_preference" validate:"omitempty,oneof=ascending descending"`
}

// AllowsMartingale reports whether the symbol is allow-listed for escalation.
func (a AccountConfig) AllowsMartingale(symbol string) bool {
	for _, s := range a.MartingaleSymbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}

	return false
}

// EffectiveMultiple is the reward multiple applied by the TP updater:
// 1 under martingale, the configured multiple (minimum 1) otherwise.
func (a AccountConfig) EffectiveMultiple() int {
	if a.ScalingMode == types.ScalingModeMartingale {
		return 1
	}

	if a.RewardMultiple < 1 {
		return 1
	}

	return a.RewardMultiple
}

// Config is the normalized engine configuration.
type Config struct {
	// PlanRoot is the directory holding per-(broker, tier) plan documents.
	PlanRoot string `yaml:"plan_root" validate:"required"`
	// AuditPath is the DuckDB audit database path. Empty means in-memory.
	AuditPath string `yaml:"audit_path"`
	// LogFile enables rotating file logging when set.
	LogFile string `yaml:"log_file"`
	// MinDistancePips maps instrument class to the minimum distance, in
	// pips, required between entry and market and between entry and stops.
	MinDistancePips map[types.InstrumentClass]float64 `yaml:"min_distance_pips" validate:"required"`
	Tolerances      Tolerances                        `yaml:"tolerances"`
	Tiers           []types.RiskTier                  `yaml:"tiers" validate:"required,min=1,dive"`
	Accounts        []AccountConfig                   `yaml:"accounts" validate:"required,min=1,dive"`
}

// MinDistanceFor returns the pip threshold for a class, falling back to the
// standard-class threshold for unknown classes.
func (c *Config) MinDistanceFor(class types.InstrumentClass) float64 {
	if d, ok := c.MinDistancePips[class]; ok {
		return d
	}

	return c.MinDistancePips[types.InstrumentClassStandard]
}

// TierFor picks the tier whose balance band contains the given balance.
// Returns an ErrCodeTierNotApplicable error when no band matches.
func (c *Config) TierFor(balance float64) (types.RiskTier, error) {
	for _, tier := range c.Tiers {
		if tier.Accepts(balance) {
			return tier, nil
		}
	}

	return types.RiskTier{}, errors.Newf(errors.ErrCodeTierNotApplicable, "no risk tier accepts balance %.2f", balance)
}

// applyDefaults fills zero-valued tolerance and distance fields.
func (c *Config) applyDefaults() {
	if c.Tolerances.CeilingEpsilon == 0 {
		c.Tolerances.CeilingEpsilon = DefaultCeilingEpsilon
	}

	if c.Tolerances.PriceTolerancePoints == 0 {
		c.Tolerances.PriceTolerancePoints = DefaultPriceTolerancePts
	}

	if len(c.Tolerances.BreakevenCheckpoints) == 0 {
		c.Tolerances.BreakevenCheckpoints = append([]float64(nil), DefaultBreakevenCheckpoints...)
	}

	if c.Tolerances.HistoryLookback == 0 {
		c.Tolerances.HistoryLookback = DefaultHistoryLookback
	}

	if c.Tolerances.MartingaleLookback == 0 {
		c.Tolerances.MartingaleLookback = DefaultMartingaleLookback
	}

	if c.MinDistancePips == nil {
		c.MinDistancePips = map[types.InstrumentClass]float64{
			types.InstrumentClassStandard:  DefaultStandardDistance,
			types.InstrumentClassSynthetic: DefaultSyntheticDistance,
		}
	}

	for i := range c.Accounts {
		c.Accounts[i].ScalingMode = types.ScalingMode(strings.ToLower(string(c.Accounts[i].ScalingMode)))
		c.Accounts[i].PricePreference = types.PricePreference(strings.ToLower(string(c.Accounts[i].PricePreference)))
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "invalid engine config", err)
	}

	for _, account := range c.Accounts {
		if account.ScalingMode == types.ScalingModeConsistency && account.RewardMultiple < 1 {
			return errors.Newf(errors.ErrCodeInvalidConfig, "account %s: consistency mode requires reward_multiple >= 1", account.Name)
		}

		if account.ScalingMode == types.ScalingModeMartingale && len(account.MartingaleSymbols) == 0 {
			return errors.Newf(errors.ErrCodeInvalidConfig, "account %s: martingale mode requires an allow-list of symbols", account.Name)
		}
	}

	for i := 1; i < len(c.Tolerances.BreakevenCheckpoints); i++ {
		if c.Tolerances.BreakevenCheckpoints[i] <= c.Tolerances.BreakevenCheckpoints[i-1] {
			return errors.New(errors.ErrCodeInvalidConfig, "breakeven checkpoints must be strictly ascending")
		}
	}

	return nil
}

// Load reads, defaults, and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfig, err, "failed to read config file %s", path)
	}

	return Parse(data)
}

// Parse unmarshals, defaults, and validates raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "failed to parse config", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
