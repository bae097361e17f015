// MODUL: options
// ZWECK: EfficientNet-Varianten b0..b7 (Skalierung, Stufen-Tabelle, Vorverarbeitung)
// INPUT: Variantenname
// OUTPUT: Variant Struct mit abgeleiteten Kanal- und Tiefenwerten
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: vision (Transform)
// HINWEISE: Skalierung und Presets entsprechen den torchvision V1 Gewichten

package efficientnet

import (
	"fmt"
	"math"
	"slices"

	"github.com/ollama/filmvision/vision"
)

// ============================================================================
// Konstanten
// ============================================================================

const (
	// NamePrefix ist der Praefix von Backbone.Name() (z.B. "efficientnet_b3")
	NamePrefix = "efficientnet_"

	// NumClasses ist die Breite des ImageNet-Klassifikators
	NumClasses = 1000

	stemChannels = 32
	headChannels = 1280
)

// ============================================================================
// Stufen-Tabelle
// ============================================================================

// stage beschreibt eine MBConv-Stufe von EfficientNet-B0.
type stage struct {
	expand  int
	kernel  int
	stride  int
	in, out int
	layers  int
}

var baseStages = []stage{
	{1, 3, 1, 32, 16, 1},
	{6, 3, 2, 16, 24, 2},
	{6, 5, 2, 24, 40, 2},
	{6, 3, 2, 40, 80, 3},
	{6, 5, 1, 80, 112, 3},
	{6, 5, 2, 112, 192, 4},
	{6, 3, 1, 192, 320, 1},
}

// ============================================================================
// Variant
// ============================================================================

// Variant enthaelt die Skalierungsfaktoren einer EfficientNet-Variante.
type Variant struct {
	Name    string
	Width   float64
	Depth   float64
	Dropout float32
	Resize  int
	Crop    int
	Eps     float32
}

var variants = []Variant{
	{"b0", 1.0, 1.0, 0.2, 256, 224, 1e-5},
	{"b1", 1.0, 1.1, 0.2, 256, 240, 1e-5},
	{"b2", 1.1, 1.2, 0.3, 288, 288, 1e-5},
	{"b3", 1.2, 1.4, 0.3, 320, 300, 1e-5},
	{"b4", 1.4, 1.8, 0.4, 384, 380, 1e-5},
	{"b5", 1.6, 2.2, 0.4, 456, 456, 1e-3},
	{"b6", 1.8, 2.6, 0.5, 528, 528, 1e-3},
	{"b7", 2.0, 3.1, 0.5, 600, 600, 1e-3},
}

// Variants gibt alle unterstuetzten Varianten zurueck.
func Variants() []Variant {
	return slices.Clone(variants)
}

// Lookup sucht eine Variante nach Name ("b0".."b7").
func Lookup(name string) (Variant, error) {
	if i := slices.IndexFunc(variants, func(v Variant) bool { return v.Name == name }); i >= 0 {
		return variants[i], nil
	}
	return Variant{}, fmt.Errorf("%w: %q", vision.ErrUnknownVariant, name)
}

// Channels skaliert eine Kanalzahl mit Width und rundet auf ein Vielfaches von 8.
func (v Variant) Channels(c int) int {
	return makeDivisible(float64(c)*v.Width, 8)
}

// Layers skaliert die Blockanzahl einer Stufe mit Depth.
func (v Variant) Layers(n int) int {
	return int(math.Ceil(float64(n) * v.Depth))
}

// OutputDim ist die Breite des Feature-Vektors nach dem Head.
func (v Variant) OutputDim() int {
	return v.Channels(headChannels)
}

// Transform ist die Vorverarbeitung der vortrainierten Gewichte.
func (v Variant) Transform() vision.Transform {
	return vision.ImageNetTransform(v.Resize, v.Crop)
}

func makeDivisible(v float64, divisor int) int {
	n := max(divisor, int(v+float64(divisor)/2)/divisor*divisor)
	if float64(n) < 0.9*v {
		n += divisor
	}
	return n
}
