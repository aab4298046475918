package partitioner

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/coarsening"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/community"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/initial"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/refinement"
)

// Preset names the built-in configuration profiles.
type Preset string

const (
	// Deterministic produces bit-identical partitions for a fixed seed
	// across runs and thread counts.
	Deterministic Preset = "DETERMINISTIC"
	// Speed is the default profile.
	Speed Preset = "SPEED"
	// HighQuality spends more work per level (unconstrained FM, larger
	// initial-partitioning pool, flow refinement slot).
	HighQuality Preset = "HIGH_QUALITY"
)

// SetParameter return codes, mirrored by the public API.
const (
	ParamOK           = 0 // success
	ParamUnknownKey   = 1 // no such parameter
	ParamIntError     = 2 // integer/float conversion error
	ParamInvalidValue = 3 // unrecognized enum value
)

// Config wraps a viper instance holding every tunable of the partitioner,
// with typed getters per concern.
type Config struct {
	v *viper.Viper
}

// NewConfig creates a configuration seeded with the SPEED defaults.
func NewConfig() *Config {
	v := viper.New()

	v.SetDefault("partition.k", 2)
	v.SetDefault("partition.epsilon", 0.03)
	v.SetDefault("partition.objective", "km1")
	v.SetDefault("partition.seed", int64(0))
	v.SetDefault("partition.num_vcycles", 0)
	v.SetDefault("partition.verbose", false)
	v.SetDefault("partition.deterministic", false)

	v.SetDefault("preprocessing.community_detection.enabled", true)
	v.SetDefault("preprocessing.community_detection.max_pass_iterations", 5)
	v.SetDefault("preprocessing.community_detection.min_vertex_move_fraction", 0.01)
	v.SetDefault("preprocessing.community_detection.max_levels", 10)
	v.SetDefault("preprocessing.community_detection.resolution", 1.0)
	v.SetDefault("preprocessing.community_detection.large_edge_threshold", 1000)
	v.SetDefault("preprocessing.community_detection.num_sub_rounds", 16)

	v.SetDefault("coarsening.algorithm", "clustering")
	v.SetDefault("coarsening.contraction_limit_multiplier", 160)
	v.SetDefault("coarsening.max_vertex_weight_fraction", 1.0)
	v.SetDefault("coarsening.min_shrink_factor", 0.01)
	v.SetDefault("coarsening.normalize_by_weight", false)

	v.SetDefault("initial_partitioning.runs_per_algorithm", 4)

	v.SetDefault("refinement.label_propagation.enabled", true)
	v.SetDefault("refinement.label_propagation.maximum_iterations", 5)
	v.SetDefault("refinement.label_propagation.allow_zero_gain_moves", false)

	v.SetDefault("refinement.fm.enabled", true)
	v.SetDefault("refinement.fm.strategy", "constrained")
	v.SetDefault("refinement.fm.max_rounds", 10)
	v.SetDefault("refinement.fm.adaptive_stop_moves", 350)
	v.SetDefault("refinement.fm.seeds_per_search", 25)
	v.SetDefault("refinement.fm.time_limit_factor", 0.25)
	v.SetDefault("refinement.fm.min_improvement_fraction", 0.0025)

	v.SetDefault("refinement.flow.enabled", false)

	v.SetDefault("logging.level", "info")

	return &Config{v: v}
}

// LoadFromFile merges configuration from a file.
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.MergeInConfig()
}

// Set overrides one key.
func (c *Config) Set(key string, value interface{}) { c.v.Set(key, value) }

func (c *Config) K() int                 { return c.v.GetInt("partition.k") }
func (c *Config) Epsilon() float64       { return c.v.GetFloat64("partition.epsilon") }
func (c *Config) Seed() int64            { return c.v.GetInt64("partition.seed") }
func (c *Config) NumVCycles() int        { return c.v.GetInt("partition.num_vcycles") }
func (c *Config) Verbose() bool          { return c.v.GetBool("partition.verbose") }
func (c *Config) IsDeterministic() bool  { return c.v.GetBool("partition.deterministic") }
func (c *Config) LogLevel() string       { return c.v.GetString("logging.level") }

func (c *Config) Objective() metrics.Objective {
	return metrics.Objective(c.v.GetString("partition.objective"))
}

func (c *Config) CommunityDetectionEnabled() bool {
	return c.v.GetBool("preprocessing.community_detection.enabled")
}

// CommunityConfig materializes the community-detection configuration.
func (c *Config) CommunityConfig() community.Config {
	return community.Config{
		MaxPassIterations:     c.v.GetInt("preprocessing.community_detection.max_pass_iterations"),
		MinVertexMoveFraction: c.v.GetFloat64("preprocessing.community_detection.min_vertex_move_fraction"),
		MaxLevels:             c.v.GetInt("preprocessing.community_detection.max_levels"),
		Resolution:            c.v.GetFloat64("preprocessing.community_detection.resolution"),
		LargeEdgeThreshold:    c.v.GetInt("preprocessing.community_detection.large_edge_threshold"),
		NumSubRounds:          c.v.GetInt("preprocessing.community_detection.num_sub_rounds"),
		Deterministic:         c.IsDeterministic(),
		Seed:                  c.Seed(),
	}
}

// CoarseningConfig materializes the coarsener configuration.
func (c *Config) CoarseningConfig() coarsening.Config {
	return coarsening.Config{
		Algorithm:                  coarsening.Algorithm(c.v.GetString("coarsening.algorithm")),
		ContractionLimitMultiplier: c.v.GetInt("coarsening.contraction_limit_multiplier"),
		MaxVertexWeightFraction:    c.v.GetFloat64("coarsening.max_vertex_weight_fraction"),
		MinShrinkFactor:            c.v.GetFloat64("coarsening.min_shrink_factor"),
		NormalizeByWeight:          c.v.GetBool("coarsening.normalize_by_weight"),
		Deterministic:              c.IsDeterministic(),
		Seed:                       c.Seed(),
	}
}

// InitialConfig materializes the initial-partitioning pool configuration.
func (c *Config) InitialConfig() initial.Config {
	return initial.Config{
		RunsPerAlgorithm: c.v.GetInt("initial_partitioning.runs_per_algorithm"),
		Objective:        c.Objective(),
		Epsilon:          c.Epsilon(),
		Deterministic:    c.IsDeterministic(),
		Seed:             c.Seed(),
	}
}

func (c *Config) LabelPropagationEnabled() bool {
	return c.v.GetBool("refinement.label_propagation.enabled")
}

// LabelPropagationConfig materializes the LP refiner configuration.
func (c *Config) LabelPropagationConfig() refinement.LabelPropagationConfig {
	return refinement.LabelPropagationConfig{
		MaxIterations:      c.v.GetInt("refinement.label_propagation.maximum_iterations"),
		AllowZeroGainMoves: c.v.GetBool("refinement.label_propagation.allow_zero_gain_moves"),
		Deterministic:      c.IsDeterministic(),
		Seed:               c.Seed(),
	}
}

func (c *Config) FMEnabled() bool { return c.v.GetBool("refinement.fm.enabled") }

// FMConfig materializes the FM refiner configuration.
func (c *Config) FMConfig() refinement.FMConfig {
	return refinement.FMConfig{
		Strategy:               refinement.FMStrategy(c.v.GetString("refinement.fm.strategy")),
		MaxRounds:              c.v.GetInt("refinement.fm.max_rounds"),
		AdaptiveStopMoves:      c.v.GetInt("refinement.fm.adaptive_stop_moves"),
		SeedsPerSearch:         c.v.GetInt("refinement.fm.seeds_per_search"),
		TimeLimitFactor:        c.v.GetFloat64("refinement.fm.time_limit_factor"),
		MinImprovementFraction: c.v.GetFloat64("refinement.fm.min_improvement_fraction"),
		Deterministic:          c.IsDeterministic(),
		Seed:                   c.Seed(),
	}
}

func (c *Config) FlowEnabled() bool { return c.v.GetBool("refinement.flow.enabled") }

// LoadPreset overwrites the profile-dependent keys.
func (c *Config) LoadPreset(preset Preset) {
	switch preset {
	case Deterministic:
		c.v.Set("partition.deterministic", true)
		c.v.Set("refinement.fm.strategy", "constrained")
		c.v.Set("refinement.flow.enabled", false)
		c.v.Set("initial_partitioning.runs_per_algorithm", 2)
	case HighQuality:
		c.v.Set("partition.deterministic", false)
		c.v.Set("refinement.fm.strategy", "unconstrained")
		c.v.Set("refinement.fm.max_rounds", 15)
		c.v.Set("refinement.flow.enabled", true)
		c.v.Set("initial_partitioning.runs_per_algorithm", 8)
	default: // Speed
		c.v.Set("partition.deterministic", false)
		c.v.Set("refinement.fm.strategy", "constrained")
		c.v.Set("refinement.flow.enabled", false)
		c.v.Set("initial_partitioning.runs_per_algorithm", 4)
	}
}

// SetParameter applies one externally supplied parameter. It returns
// ParamOK, ParamUnknownKey for an unrecognized key, ParamIntError when a
// numeric value does not parse, and ParamInvalidValue for a bad enum value.
func (c *Config) SetParameter(key, value string) int {
	switch key {
	case "k":
		k, err := strconv.Atoi(value)
		if err != nil || k <= 0 {
			return ParamIntError
		}
		c.v.Set("partition.k", k)
		return ParamOK
	case "epsilon":
		eps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return ParamIntError
		}
		c.v.Set("partition.epsilon", eps)
		return ParamOK
	case "objective":
		if !metrics.Objective(value).Valid() {
			return ParamInvalidValue
		}
		c.v.Set("partition.objective", value)
		return ParamOK
	case "seed":
		seed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return ParamIntError
		}
		c.v.Set("partition.seed", seed)
		return ParamOK
	case "num_vcycles":
		n, err := strconv.Atoi(value)
		if err != nil {
			return ParamIntError
		}
		c.v.Set("partition.num_vcycles", n)
		return ParamOK
	case "verbose":
		n, err := strconv.Atoi(value)
		if err != nil {
			return ParamIntError
		}
		c.v.Set("partition.verbose", n != 0)
		return ParamOK
	}
	return ParamUnknownKey
}

// CreateLogger builds the zerolog logger used by all phases.
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	if !c.Verbose() && level < zerolog.WarnLevel {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "partitioner").Logger()
}
