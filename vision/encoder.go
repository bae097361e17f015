// MODUL: encoder
// ZWECK: Kontext-konditionierter Bild-Encoder (Backbone + Projektor + FiLM + Reduktion)
// INPUT: Image (Rang 3 oder 4, Layout- und Wertebereich-Tag), optionaler Kontext (B, D)
// OUTPUT: Feature-Vektor (B, C), C = 512 mit Kontext, sonst Breite des Backbones
// NEBENEFFEKTE: Dateisystem-Lesezugriff beim Laden vortrainierter Gewichte in New()
// ABHAENGIGKEITEN: ml, ml/nn, ml/nn/pooling, fs/gguf, model
// HINWEISE: Encode ist zustandslos und darf parallel aufgerufen werden

package vision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ollama/filmvision/fs/gguf"
	"github.com/ollama/filmvision/logutil"
	"github.com/ollama/filmvision/ml"
	"github.com/ollama/filmvision/ml/nn"
	"github.com/ollama/filmvision/ml/nn/pooling"
	"github.com/ollama/filmvision/model"
)

// Architecture ist der general.architecture Wert gespeicherter Gewichtsdateien.
const Architecture = "filmvision"

// encoderWeights sind die Parameter, die der Encoder selbst besitzt.
type encoderWeights struct {
	Projection  *nn.Conv2D  `gguf:"projection"`
	Conditioner Conditioner `gguf:"film"`
}

// Encoder ist nach New() unveraenderlich.
type Encoder struct {
	config       Config
	backbone     Backbone
	preprocessor Preprocessor
	weights      *encoderWeights
	logger       *slog.Logger
}

// New erstellt einen Encoder. Die Config wird hier einmal validiert; eine
// unbekannte Variante ist ein *ConfigError.
func New(opts ...Option) (*Encoder, error) {
	return NewContext(context.Background(), opts...)
}

// NewContext wie New, mit Context fuer das Laden der Gewichte.
func NewContext(ctx context.Context, opts ...Option) (*Encoder, error) {
	o := DefaultLoadOptions()
	o.Apply(opts...)
	if err := o.Validate(); err != nil {
		return nil, err
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := o.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	backbone, err := registry.Create(o.Variant, BackboneOptions{
		IncludeTop: o.IncludeTop,
		ContextDim: o.ContextDim,
		Seed:       o.Seed,
	})
	if errors.Is(err, ErrBackboneNotRegistered) {
		return nil, &ConfigError{Field: "Variant", Value: o.Variant, Err: errors.Join(ErrUnknownVariant, err)}
	} else if err != nil {
		return nil, err
	}

	projection := nn.NewConv2D(backbone.OutputDim(), o.ProjectionDim, 1, 1, 1, false)
	nn.KaimingNormal(projection.Weight, projection.FanIn(), nn.NewSource(o.Seed))

	factory := o.Conditioner
	if factory == nil {
		factory = FiLMConditioner
	}
	conditioner, err := factory(o.ProjectionDim, o.ContextDim)
	if err != nil {
		return nil, &ConfigError{Field: "Conditioner", Value: o.ProjectionDim, Err: err}
	}

	preprocessor, err := resolvePreprocessor(&o, backbone)
	if err != nil {
		return nil, err
	}

	e := &Encoder{
		config:       o.Config,
		backbone:     backbone,
		preprocessor: preprocessor,
		weights:      &encoderWeights{Projection: projection, Conditioner: conditioner},
		logger:       logger,
	}

	if o.Weights.Pretrained() {
		path := o.WeightsPath
		if path == "" {
			path = filepath.Join(o.ModelsDir, backbone.Name()+".gguf")
		}
		if err := e.loadWeights(ctx, path); err != nil {
			return nil, err
		}
	}

	logger.Debug("encoder created",
		"backbone", backbone.Name(),
		"weights", o.Weights,
		"native_dim", backbone.OutputDim(),
		"context_dim", o.ContextDim,
		"include_top", o.IncludeTop,
		"pooling", o.Pooling)
	return e, nil
}

// resolvePreprocessor: explizit > preprocessor_config.json > Preset des Backbones
func resolvePreprocessor(o *LoadOptions, backbone Backbone) (Preprocessor, error) {
	switch {
	case o.Preprocessor != nil:
		return o.Preprocessor, nil
	case o.TransformConfig != "":
		t, err := LoadTransformConfig(o.TransformConfig)
		if err != nil {
			return nil, &ConfigError{Field: "TransformConfig", Value: o.TransformConfig, Err: err}
		}
		return t, nil
	default:
		return backbone.Transform(), nil
	}
}

// loadWeights laedt Backbone-Parameter (Pflicht) und Encoder-Parameter (optional).
func (e *Encoder) loadWeights(ctx context.Context, path string) error {
	f, err := gguf.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ConfigError{Field: "WeightsPath", Value: path, Err: errors.Join(ErrMissingWeights, err)}
	} else if err != nil {
		return &ConfigError{Field: "WeightsPath", Value: path, Err: err}
	}
	defer f.Close()

	if f.KeyValue("general.architecture").String() == Architecture {
		if variant := f.KeyValue("variant").String(); variant != "" && variant != e.config.Variant {
			return &ConfigError{Field: "WeightsPath", Value: path, Err: fmt.Errorf("%w: file has variant %q", ErrInvalidConfig, variant)}
		}
	}

	if err := model.Load(ctx, f, e.backbone); err != nil {
		return &ConfigError{Field: "WeightsPath", Value: path, Err: err}
	}

	encoder := struct {
		Weights *encoderWeights `gguf:"encoder,optional"`
	}{e.weights}
	if err := model.Load(ctx, f, &encoder); err != nil {
		return &ConfigError{Field: "WeightsPath", Value: path, Err: err}
	}

	e.logger.Debug("loaded weights", "path", path, "tensors", f.NumTensors())
	return nil
}

// SaveWeights schreibt Backbone- und Encoder-Parameter in eine GGUF-Datei.
func (e *Encoder) SaveWeights(path string, dtype ml.DType) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	kv := map[string]any{
		"general.architecture":           Architecture,
		"general.name":                   e.backbone.Name(),
		Architecture + ".variant":        e.config.Variant,
		Architecture + ".context_dim":    uint32(e.config.ContextDim),
		Architecture + ".projection_dim": uint32(e.config.ProjectionDim),
		Architecture + ".include_top":    e.config.IncludeTop,
	}

	encoder := struct {
		Weights *encoderWeights `gguf:"encoder"`
	}{e.weights}
	return model.Save(path, kv, dtype, e.backbone, &encoder)
}

// Encode berechnet den Feature-Vektor fuer img. Mit context != nil laufen
// Projektor und Conditioner, sonst wird die Ausgabe des Backbones direkt reduziert.
func (e *Encoder) Encode(img Image, cond *ml.Tensor) (*ml.Tensor, error) {
	if cond != nil && e.config.IncludeTop {
		return nil, &UsageError{Op: "encode", Err: ErrContextWithTop}
	}

	x, err := Canonicalize(img)
	if err != nil {
		return nil, err
	}
	batch := x.Dim(0)

	if cond != nil {
		if err := e.checkContext(cond, batch); err != nil {
			return nil, err
		}
	}

	if x, err = e.preprocessor.Preprocess(x); err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	e.logger.Log(context.Background(), logutil.LevelTrace, "preprocessed", "shape", x.Shape())

	features, err := e.backbone.Forward(x, cond)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.backbone.Name(), err)
	}
	if features.Rank() != 2 || features.Dim(0) != batch || features.Dim(1) != e.backbone.OutputDim() {
		return nil, &ShapeError{
			Op:       "backbone",
			Expected: fmt.Sprintf("(%d, %d)", batch, e.backbone.OutputDim()),
			Actual:   features.Shape(),
			Err:      ErrBackboneContract,
		}
	}

	fm, err := features.Reshape(batch, features.Dim(1), 1, 1)
	if err != nil {
		return nil, err
	}

	if cond != nil {
		if fm, err = e.weights.Projection.Forward(fm); err != nil {
			return nil, fmt.Errorf("projection: %w", err)
		}
		if fm, err = e.weights.Conditioner.Forward(fm, cond); err != nil {
			return nil, fmt.Errorf("conditioner: %w", err)
		}
	}

	poolType := pooling.TypeNone
	if e.config.Pooling {
		poolType = pooling.TypeAvg
	}

	out, err := pooling.Apply(poolType, fm)
	if err != nil {
		return nil, err
	}
	e.logger.Log(context.Background(), logutil.LevelTrace, "encoded", "shape", out.Shape(), "conditioned", cond != nil)
	return out, nil
}

// EncodeTensor kodiert einen Tensor mit abgeleitetem Layout und Wertebereich.
func (e *Encoder) EncodeTensor(pixels, cond *ml.Tensor) (*ml.Tensor, error) {
	return e.Encode(Image{Pixels: pixels}, cond)
}

func (e *Encoder) checkContext(cond *ml.Tensor, batch int) error {
	if cond.Rank() != 2 || cond.Dim(0) != batch || cond.Dim(1) != e.config.ContextDim {
		return &ShapeError{
			Op:       "context",
			Expected: fmt.Sprintf("(%d, %d)", batch, e.config.ContextDim),
			Actual:   cond.Shape(),
			Err:      ErrInvalidContext,
		}
	}
	return nil
}

// OutputDim ist die Laenge des Feature-Vektors mit (conditioned) oder ohne Kontext.
func (e *Encoder) OutputDim(conditioned bool) int {
	if conditioned {
		return e.config.ProjectionDim
	}
	return e.backbone.OutputDim()
}

// Config gibt die validierte Konfiguration zurueck.
func (e *Encoder) Config() Config {
	return e.config
}

// Backbone gibt das Backbone zurueck.
func (e *Encoder) Backbone() Backbone {
	return e.backbone
}

// Projector gibt den 1x1 Channel-Projektor zurueck.
func (e *Encoder) Projector() *nn.Conv2D {
	return e.weights.Projection
}

// Conditioner gibt den Conditioner zurueck.
func (e *Encoder) Conditioner() Conditioner {
	return e.weights.Conditioner
}
