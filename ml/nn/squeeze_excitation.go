// squeeze_excitation.go - Kanal-Attention (Squeeze-and-Excitation)
package nn

import (
	"fmt"

	"github.com/ollama/filmvision/ml"
)

// SqueezeExcitation skaliert jeden Kanal mit einem aus dem globalen Mittel
// gelernten Gate: x * sigmoid(fc2(silu(fc1(avgpool(x))))).
type SqueezeExcitation struct {
	FC1 *Conv2D `gguf:"fc1"`
	FC2 *Conv2D `gguf:"fc2"`
}

// NewSqueezeExcitation erzeugt einen SE-Block mit squeeze Zwischenkanaelen.
func NewSqueezeExcitation(channels, squeeze int) *SqueezeExcitation {
	return &SqueezeExcitation{
		FC1: NewConv2D(channels, squeeze, 1, 1, 1, true),
		FC2: NewConv2D(squeeze, channels, 1, 1, 1, true),
	}
}

// Forward erwartet NCHW.
func (se *SqueezeExcitation) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	if x.Rank() != 4 {
		return nil, fmt.Errorf("%w: squeeze-excitation expects rank 4, got %v", ml.ErrShape, x.Shape())
	}
	batch, channels, plane := x.Dim(0), x.Dim(1), x.Dim(2)*x.Dim(3)

	pooled := ml.New(batch, channels, 1, 1)
	src, dst := x.Floats(), pooled.Floats()
	for i := range dst {
		var sum float32
		for _, v := range src[i*plane : (i+1)*plane] {
			sum += v
		}
		dst[i] = sum / float32(plane)
	}

	s, err := se.FC1.Forward(pooled)
	if err != nil {
		return nil, err
	}
	s, err = se.FC2.Forward(SiLU(s))
	if err != nil {
		return nil, err
	}
	gate := Sigmoid(s).Floats()

	y := x.Clone()
	data := y.Floats()
	for i, g := range gate {
		row := data[i*plane : (i+1)*plane]
		for j := range row {
			row[j] *= g
		}
	}
	return y, nil
}
