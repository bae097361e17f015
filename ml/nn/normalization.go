// normalization.go - Batch-Normalisierung im Inferenz-Modus
package nn

import (
	"fmt"
	"math"

	"github.com/ollama/filmvision/ml"
)

// BatchNorm2D normalisiert NCHW-Tensoren mit gespeicherten Laufstatistiken.
type BatchNorm2D struct {
	Weight      *ml.Tensor `gguf:"weight"`
	Bias        *ml.Tensor `gguf:"bias"`
	RunningMean *ml.Tensor `gguf:"running_mean"`
	RunningVar  *ml.Tensor `gguf:"running_var"`

	Eps float32
}

// NewBatchNorm2D erzeugt eine Identitaets-Normalisierung (gamma=1, beta=0,
// mean=0, var=1).
func NewBatchNorm2D(channels int, eps float32) *BatchNorm2D {
	return &BatchNorm2D{
		Weight:      ml.Full(1, channels),
		Bias:        ml.New(channels),
		RunningMean: ml.New(channels),
		RunningVar:  ml.Full(1, channels),
		Eps:         eps,
	}
}

// Forward wendet (x - mean) / sqrt(var + eps) * gamma + beta pro Kanal an.
func (bn *BatchNorm2D) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	channels := bn.Weight.Dim(0)
	if x.Rank() != 4 || x.Dim(1) != channels {
		return nil, fmt.Errorf("%w: batchnorm expects (batch, %d, h, w), got %v", ml.ErrShape, channels, x.Shape())
	}

	gamma, beta := bn.Weight.Floats(), bn.Bias.Floats()
	mean, variance := bn.RunningMean.Floats(), bn.RunningVar.Floats()

	scale := make([]float32, channels)
	shift := make([]float32, channels)
	for c := range channels {
		scale[c] = gamma[c] / float32(math.Sqrt(float64(variance[c]+bn.Eps)))
		shift[c] = beta[c] - mean[c]*scale[c]
	}

	y := x.Clone()
	data := y.Floats()
	plane := x.Dim(2) * x.Dim(3)
	for b := range x.Dim(0) {
		for c := range channels {
			row := data[(b*channels+c)*plane : (b*channels+c+1)*plane]
			for i := range row {
				row[i] = row[i]*scale[c] + shift[c]
			}
		}
	}
	return y, nil
}
