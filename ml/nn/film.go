// film.go - Feature-wise Linear Modulation
package nn

import (
	"fmt"

	"github.com/ollama/filmvision/ml"
)

// FiLM moduliert Feature-Maps kanalweise mit einem Kontextvektor:
//
//	y = (1 + Mult(ctx)) * x + Add(ctx)
//
// Add und Mult starten mit Null-Gewichten, ein frisch erzeugter FiLM-Layer ist
// damit die Identitaet.
type FiLM struct {
	Add  *Linear `gguf:"add"`
	Mult *Linear `gguf:"mult"`
}

// NewFiLM erzeugt einen FiLM-Layer fuer contextDim -> channels.
func NewFiLM(contextDim, channels int) *FiLM {
	return &FiLM{
		Add:  NewLinear(contextDim, channels, true),
		Mult: NewLinear(contextDim, channels, true),
	}
}

// Channels gibt die Anzahl der modulierten Kanaele zurueck.
func (f *FiLM) Channels() int { return f.Add.OutDim() }

// ContextDim gibt die erwartete Kontextbreite zurueck.
func (f *FiLM) ContextDim() int { return f.Add.InDim() }

// Forward akzeptiert x als (batch, channels, h, w) oder (batch, channels)
// und ctx als (batch, contextDim).
func (f *FiLM) Forward(x, ctx *ml.Tensor) (*ml.Tensor, error) {
	channels := f.Channels()
	if (x.Rank() != 4 && x.Rank() != 2) || x.Dim(1) != channels {
		return nil, fmt.Errorf("%w: film expects (batch, %d, ...), got %v", ml.ErrShape, channels, x.Shape())
	}
	if ctx.Rank() != 2 || ctx.Dim(0) != x.Dim(0) {
		return nil, fmt.Errorf("%w: film context %v does not match batch of %v", ml.ErrShape, ctx.Shape(), x.Shape())
	}

	add, err := f.Add.Forward(ctx)
	if err != nil {
		return nil, err
	}
	mult, err := f.Mult.Forward(ctx)
	if err != nil {
		return nil, err
	}

	plane := 1
	if x.Rank() == 4 {
		plane = x.Dim(2) * x.Dim(3)
	}

	y := x.Clone()
	data, a, m := y.Floats(), add.Floats(), mult.Floats()
	for bc := range x.Dim(0) * channels {
		row := data[bc*plane : (bc+1)*plane]
		for i := range row {
			row[i] = (1+m[bc])*row[i] + a[bc]
		}
	}
	return y, nil
}
