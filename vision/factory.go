// MODUL: factory
// ZWECK: Kollaborateur-Interfaces des Encoders (Backbone, Conditioner, Preprocessor)
// INPUT: Backbone-Optionen, Kanal- und Kontextbreiten
// OUTPUT: Backbone-, Conditioner- und Preprocessor-Instanzen
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: ml, ml/nn
// HINWEISE: Backbone-Factories werden in registry.go verwaltet

package vision

import (
	"github.com/ollama/filmvision/ml"
	"github.com/ollama/filmvision/ml/nn"
)

// ============================================================================
// Backbone
// ============================================================================

// Backbone extrahiert pro Bild einen Feature-Vektor fester Breite.
type Backbone interface {
	// Forward erhaelt ein vorverarbeitetes Bild (B, 3, H, W) und optional
	// einen Kontext (B, D) und liefert (B, OutputDim()).
	Forward(image, context *ml.Tensor) (*ml.Tensor, error)

	// OutputDim ist die Breite des Feature-Vektors.
	OutputDim() int

	// Name identifiziert Architektur und Variante (z.B. "efficientnet_b3").
	Name() string

	// Transform ist die zu den vortrainierten Gewichten passende Vorverarbeitung.
	Transform() Transform
}

// BackboneOptions wird an eine BackboneFactory uebergeben.
type BackboneOptions struct {
	IncludeTop bool
	ContextDim int
	Seed       uint64
}

// BackboneFactory erstellt ein Backbone mit default-initialisierten Gewichten.
// Wird von Registry.Register() verwendet.
type BackboneFactory func(opts BackboneOptions) (Backbone, error)

// ============================================================================
// Conditioner
// ============================================================================

// Conditioner moduliert eine Feature-Map kanalweise mit einem Kontextvektor.
type Conditioner interface {
	Forward(features, context *ml.Tensor) (*ml.Tensor, error)
}

// ConditionerFactory erstellt einen Conditioner fuer channels Kanaele.
type ConditionerFactory func(channels, contextDim int) (Conditioner, error)

// FiLMConditioner ist die Standard-ConditionerFactory (identitaets-initialisiertes FiLM).
func FiLMConditioner(channels, contextDim int) (Conditioner, error) {
	return nn.NewFiLM(contextDim, channels), nil
}

// ============================================================================
// Preprocessor
// ============================================================================

// Preprocessor ist der letzte Kanonisierungsschritt vor dem Backbone.
type Preprocessor interface {
	Preprocess(image *ml.Tensor) (*ml.Tensor, error)
}

// PreprocessorFunc adaptiert eine Funktion an das Preprocessor Interface.
type PreprocessorFunc func(image *ml.Tensor) (*ml.Tensor, error)

// Preprocess ruft f(image) auf.
func (f PreprocessorFunc) Preprocess(image *ml.Tensor) (*ml.Tensor, error) {
	return f(image)
}

// Identity ist ein Preprocessor, der das Bild unveraendert weitergibt.
var Identity = PreprocessorFunc(func(image *ml.Tensor) (*ml.Tensor, error) {
	return image, nil
})
