// linear.go - Voll verbundener Layer
package nn

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ollama/filmvision/ml"
)

// Linear berechnet y = x W^T + b.
type Linear struct {
	Weight *ml.Tensor `gguf:"weight"` // (out, in)
	Bias   *ml.Tensor `gguf:"bias"`   // (out), optional
}

// NewLinear allokiert einen Linear-Layer mit Null-Gewichten.
func NewLinear(in, out int, bias bool) *Linear {
	l := &Linear{Weight: ml.New(out, in)}
	if bias {
		l.Bias = ml.New(out)
	}
	return l
}

// InDim gibt die Eingabebreite zurueck.
func (l *Linear) InDim() int { return l.Weight.Dim(1) }

// OutDim gibt die Ausgabebreite zurueck.
func (l *Linear) OutDim() int { return l.Weight.Dim(0) }

// Forward erwartet x mit Shape (batch, in) und liefert (batch, out).
func (l *Linear) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	in, out := l.InDim(), l.OutDim()
	if x.Rank() != 2 || x.Dim(1) != in {
		return nil, fmt.Errorf("%w: linear expects (batch, %d), got %v", ml.ErrShape, in, x.Shape())
	}

	batch := x.Dim(0)
	y := ml.New(batch, out)
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		blas32.General{Rows: batch, Cols: in, Stride: in, Data: x.Floats()},
		blas32.General{Rows: out, Cols: in, Stride: in, Data: l.Weight.Floats()},
		0,
		blas32.General{Rows: batch, Cols: out, Stride: out, Data: y.Floats()},
	)

	if l.Bias != nil {
		dst, bias := y.Floats(), l.Bias.Floats()
		for b := range batch {
			row := dst[b*out : (b+1)*out]
			for j := range row {
				row[j] += bias[j]
			}
		}
	}
	return y, nil
}
