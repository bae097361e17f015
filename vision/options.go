// MODUL: options
// ZWECK: Functional Options Pattern fuer die Encoder-Konfiguration
// INPUT: Optionale Konfigurationsparameter (Variante, Gewichte, Pooling, Kollaborateure)
// OUTPUT: LoadOptions Struct mit validierter Konfiguration
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: go-playground/validator, envconfig
// HINWEISE: Config ist nach New() unveraenderlich

package vision

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/ollama/filmvision/envconfig"
)

// ============================================================================
// Konstanten
// ============================================================================

// ProjectionDim ist die feste Breite des Channel-Projektors und des Conditioners.
const ProjectionDim = 512

// WeightsPolicy waehlt zwischen vortrainierten und initialisierten Gewichten.
type WeightsPolicy string

const (
	WeightsDefault    WeightsPolicy = "DEFAULT"
	WeightsImageNet1K WeightsPolicy = "IMAGENET1K_V1"
	WeightsNone       WeightsPolicy = "NONE"
)

// Pretrained meldet ob die Policy eine Gewichtsdatei verlangt.
func (p WeightsPolicy) Pretrained() bool {
	return p == WeightsDefault || p == WeightsImageNet1K
}

// ============================================================================
// Config - Unveraenderliche Encoder-Konfiguration
// ============================================================================

// Config beschreibt einen Encoder. Sie wird einmal bei New() validiert.
type Config struct {
	Variant       string        `json:"variant" validate:"required"`
	Weights       WeightsPolicy `json:"weights" validate:"oneof=DEFAULT IMAGENET1K_V1 NONE"`
	WeightsPath   string        `json:"weights_path,omitempty"`
	IncludeTop    bool          `json:"include_top"`
	Pooling       bool          `json:"pooling"`
	ContextDim    int           `json:"context_dim" validate:"gt=0"`
	ProjectionDim int           `json:"projection_dim" validate:"eq=512"`
	Seed          uint64        `json:"seed"`
}

// DefaultConfig entspricht dem Standard-Encoder (b3, vortrainiert, ohne Pooling).
func DefaultConfig() Config {
	return Config{
		Variant:       "b3",
		Weights:       WeightsDefault,
		ContextDim:    512,
		ProjectionDim: ProjectionDim,
	}
}

// ConfigFromEnv liest die Konfiguration aus FILMVISION_* Variablen.
func ConfigFromEnv() Config {
	return Config{
		Variant:       envconfig.Variant(),
		Weights:       WeightsPolicy(envconfig.Weights()),
		Pooling:       envconfig.Pooling(),
		ContextDim:    int(envconfig.ContextDim()),
		ProjectionDim: ProjectionDim,
		Seed:          envconfig.Seed(),
	}
}

var validate = validator.New()

// Validate prueft die Struct-Tags. Jeder Fehler ist ein *ConfigError.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ConfigError{Field: fe.Field(), Value: fe.Value(), Err: errors.Join(ErrInvalidConfig, fe)}
		}
		return &ConfigError{Field: "Config", Value: c, Err: errors.Join(ErrInvalidConfig, err)}
	}
	return nil
}

// ============================================================================
// LoadOptions - Konfiguration plus Kollaborateure
// ============================================================================

// LoadOptions enthaelt die Config und die austauschbaren Kollaborateure.
type LoadOptions struct {
	Config

	ModelsDir       string             // Verzeichnis fuer <backbone>.gguf
	Preprocessor    Preprocessor       // nil = Transform des Backbones
	TransformConfig string             // Pfad zu preprocessor_config.json
	Conditioner     ConditionerFactory // nil = FiLMConditioner
	Registry        *Registry          // nil = DefaultRegistry
	Logger          *slog.Logger       // nil = slog.Default()
}

// Option ist eine funktionale Option fuer LoadOptions.
type Option func(*LoadOptions)

// DefaultLoadOptions gibt die Standard-Konfiguration zurueck.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Config:    DefaultConfig(),
		ModelsDir: envconfig.Models(),
	}
}

// Apply wendet alle Options auf LoadOptions an.
func (o *LoadOptions) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// Validate prueft die Konfiguration.
func (o *LoadOptions) Validate() error {
	return o.Config.Validate()
}

// ============================================================================
// Functional Options - Builder-Funktionen
// ============================================================================

// WithConfig ersetzt die gesamte Config.
func WithConfig(c Config) Option {
	return func(o *LoadOptions) {
		o.Config = c
	}
}

// WithVariant setzt die Backbone-Variante (z.B. "b0".."b7").
func WithVariant(variant string) Option {
	return func(o *LoadOptions) {
		o.Variant = variant
	}
}

// WithWeights setzt die Gewichts-Policy.
func WithWeights(p WeightsPolicy) Option {
	return func(o *LoadOptions) {
		o.Weights = p
	}
}

// WithWeightsPath setzt eine explizite Gewichtsdatei.
func WithWeightsPath(path string) Option {
	return func(o *LoadOptions) {
		o.WeightsPath = path
	}
}

// WithModelsDir setzt das Verzeichnis, in dem Gewichtsdateien gesucht werden.
func WithModelsDir(dir string) Option {
	return func(o *LoadOptions) {
		o.ModelsDir = dir
	}
}

// WithIncludeTop behaelt den Klassifikationskopf des Backbones.
func WithIncludeTop(enabled bool) Option {
	return func(o *LoadOptions) {
		o.IncludeTop = enabled
	}
}

// WithPooling aktiviert globales Average-Pooling vor dem Flatten.
func WithPooling(enabled bool) Option {
	return func(o *LoadOptions) {
		o.Pooling = enabled
	}
}

// WithContextDim setzt die Breite des Kontextvektors.
func WithContextDim(n int) Option {
	return func(o *LoadOptions) {
		o.ContextDim = n
	}
}

// WithSeed setzt den Seed fuer nicht geladene Gewichte.
func WithSeed(seed uint64) Option {
	return func(o *LoadOptions) {
		o.Seed = seed
	}
}

// WithPreprocessor ersetzt die Vorverarbeitung des Backbones.
func WithPreprocessor(p Preprocessor) Option {
	return func(o *LoadOptions) {
		o.Preprocessor = p
	}
}

// WithTransformConfig laedt die Vorverarbeitung aus einer preprocessor_config.json.
func WithTransformConfig(path string) Option {
	return func(o *LoadOptions) {
		o.TransformConfig = path
	}
}

// WithConditionerFactory ersetzt die FiLM-Konditionierung.
func WithConditionerFactory(f ConditionerFactory) Option {
	return func(o *LoadOptions) {
		o.Conditioner = f
	}
}

// WithRegistry verwendet eine eigene Backbone-Registry.
func WithRegistry(r *Registry) Option {
	return func(o *LoadOptions) {
		o.Registry = r
	}
}

// WithLogger setzt den Logger des Encoders.
func WithLogger(l *slog.Logger) Option {
	return func(o *LoadOptions) {
		o.Logger = l
	}
}
