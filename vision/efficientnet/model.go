// MODUL: model
// ZWECK: FiLM-konditioniertes EfficientNet Backbone (Stem, MBConv-Bloecke, Head)
// INPUT: Vorverarbeitetes Bild (B, 3, H, W), optionaler Kontext (B, D)
// OUTPUT: Feature-Vektor (B, OutputDim) oder Logits (B, 1000) mit IncludeTop
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: ml, ml/nn, ml/nn/pooling, vision
// HINWEISE: Nach jedem MBConv-Block moduliert ein FiLM-Layer die Features,
//           aber nur wenn ein Kontext uebergeben wird. Dropout ist bei der
//           Inferenz ein No-op.

package efficientnet

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/ollama/filmvision/logutil"
	"github.com/ollama/filmvision/ml"
	"github.com/ollama/filmvision/ml/nn"
	"github.com/ollama/filmvision/ml/nn/pooling"
	"github.com/ollama/filmvision/vision"
)

// ============================================================================
// ConvNormActivation
// ============================================================================

// ConvNormActivation ist Conv2D + BatchNorm, optional gefolgt von SiLU.
type ConvNormActivation struct {
	Conv *nn.Conv2D      `gguf:"conv"`
	BN   *nn.BatchNorm2D `gguf:"bn"`

	activation bool
}

func newConvNormActivation(in, out, kernel, stride, groups int, eps float32, activation bool) *ConvNormActivation {
	return &ConvNormActivation{
		Conv:       nn.NewConv2D(in, out, kernel, stride, groups, false),
		BN:         nn.NewBatchNorm2D(out, eps),
		activation: activation,
	}
}

func (c *ConvNormActivation) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	x, err := c.Conv.Forward(x)
	if err != nil {
		return nil, err
	}
	if x, err = c.BN.Forward(x); err != nil {
		return nil, err
	}
	if c.activation {
		x = nn.SiLU(x)
	}
	return x, nil
}

// ============================================================================
// MBConv
// ============================================================================

// MBConv ist ein Inverted-Residual-Block mit Squeeze-Excitation und FiLM.
type MBConv struct {
	Expand    *ConvNormActivation   `gguf:"expand"`
	Depthwise *ConvNormActivation   `gguf:"dw"`
	SE        *nn.SqueezeExcitation `gguf:"se"`
	Project   *ConvNormActivation   `gguf:"project"`
	FiLM      *nn.FiLM              `gguf:"film"`

	residual bool
}

func newMBConv(s stage, in, out, stride, contextDim int, eps float32) *MBConv {
	expanded := makeDivisible(float64(in*s.expand), 8)

	b := &MBConv{
		Depthwise: newConvNormActivation(expanded, expanded, s.kernel, stride, expanded, eps, true),
		SE:        nn.NewSqueezeExcitation(expanded, max(1, in/4)),
		Project:   newConvNormActivation(expanded, out, 1, 1, 1, eps, false),
		FiLM:      nn.NewFiLM(contextDim, out),
		residual:  stride == 1 && in == out,
	}
	if expanded != in {
		b.Expand = newConvNormActivation(in, expanded, 1, 1, 1, eps, true)
	}
	return b
}

// Forward wendet den Block an. Mit ctx != nil folgt die FiLM-Modulation.
func (b *MBConv) Forward(x, ctx *ml.Tensor) (*ml.Tensor, error) {
	h := x
	var err error
	if b.Expand != nil {
		if h, err = b.Expand.Forward(h); err != nil {
			return nil, err
		}
	}
	if h, err = b.Depthwise.Forward(h); err != nil {
		return nil, err
	}
	if h, err = b.SE.Forward(h); err != nil {
		return nil, err
	}
	if h, err = b.Project.Forward(h); err != nil {
		return nil, err
	}
	if b.residual {
		if h, err = h.Add(x); err != nil {
			return nil, err
		}
	}
	if ctx != nil {
		if h, err = b.FiLM.Forward(h, ctx); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// ============================================================================
// Model
// ============================================================================

// Model implementiert vision.Backbone.
type Model struct {
	Stem       *ConvNormActivation `gguf:"stem"`
	Blocks     []*MBConv           `gguf:"blocks"`
	Head       *ConvNormActivation `gguf:"head"`
	Classifier *nn.Linear          `gguf:"classifier"`

	variant    Variant
	contextDim int
}

// New baut das Netz einer Variante mit initialisierten Gewichten.
func New(v Variant, opts vision.BackboneOptions) (*Model, error) {
	if opts.ContextDim <= 0 {
		return nil, fmt.Errorf("%w: context dim %d", vision.ErrInvalidConfig, opts.ContextDim)
	}

	m := &Model{variant: v, contextDim: opts.ContextDim}

	in := v.Channels(stemChannels)
	m.Stem = newConvNormActivation(3, in, 3, 2, 1, v.Eps, true)

	for _, s := range baseStages {
		out := v.Channels(s.out)
		for i := range v.Layers(s.layers) {
			stride := s.stride
			if i > 0 {
				stride = 1
			}
			m.Blocks = append(m.Blocks, newMBConv(s, in, out, stride, opts.ContextDim, v.Eps))
			in = out
		}
	}

	m.Head = newConvNormActivation(in, v.OutputDim(), 1, 1, 1, v.Eps, true)

	if opts.IncludeTop {
		m.Classifier = nn.NewLinear(v.OutputDim(), NumClasses, true)
	}

	m.initWeights(nn.NewSource(opts.Seed))
	return m, nil
}

// initWeights: Faltungen Kaiming-normal (fan-out), BatchNorm Identitaet,
// Klassifikator U(-1/sqrt(out), 1/sqrt(out)), FiLM bleibt null.
func (m *Model) initWeights(src rand.Source) {
	convs := []*nn.Conv2D{m.Stem.Conv}
	for _, b := range m.Blocks {
		if b.Expand != nil {
			convs = append(convs, b.Expand.Conv)
		}
		convs = append(convs, b.Depthwise.Conv, b.SE.FC1, b.SE.FC2, b.Project.Conv)
	}
	convs = append(convs, m.Head.Conv)

	for _, c := range convs {
		nn.KaimingNormal(c.Weight, c.FanOut(), src)
	}

	if m.Classifier != nil {
		nn.Uniform(m.Classifier.Weight, 1/math.Sqrt(float64(m.Classifier.OutDim())), src)
	}
}

// Name implementiert vision.Backbone.
func (m *Model) Name() string {
	return NamePrefix + m.variant.Name
}

// Variant gibt die Variante zurueck.
func (m *Model) Variant() Variant {
	return m.variant
}

// OutputDim implementiert vision.Backbone.
func (m *Model) OutputDim() int {
	if m.Classifier != nil {
		return m.Classifier.OutDim()
	}
	return m.variant.OutputDim()
}

// Transform implementiert vision.Backbone.
func (m *Model) Transform() vision.Transform {
	return m.variant.Transform()
}

// Forward implementiert vision.Backbone.
func (m *Model) Forward(image, ctx *ml.Tensor) (*ml.Tensor, error) {
	if image.Rank() != 4 || image.Dim(1) != 3 {
		return nil, fmt.Errorf("%w: %s expects (B, 3, H, W), got %v", ml.ErrShape, m.Name(), image.Shape())
	}
	if ctx != nil && (ctx.Rank() != 2 || ctx.Dim(0) != image.Dim(0) || ctx.Dim(1) != m.contextDim) {
		return nil, fmt.Errorf("%w: %s expects context (%d, %d), got %v", ml.ErrShape, m.Name(), image.Dim(0), m.contextDim, ctx.Shape())
	}

	x, err := m.Stem.Forward(image)
	if err != nil {
		return nil, fmt.Errorf("stem: %w", err)
	}

	for i, b := range m.Blocks {
		if x, err = b.Forward(x, ctx); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		logutil.Trace("efficientnet block", "index", i, "shape", x.Shape())
	}

	if x, err = m.Head.Forward(x); err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}

	if x, err = pooling.GlobalAvgPool2D(x); err != nil {
		return nil, err
	}
	if x, err = pooling.Flatten(x); err != nil {
		return nil, err
	}

	if m.Classifier != nil {
		return m.Classifier.Forward(x)
	}
	return x, nil
}
