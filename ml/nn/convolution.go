// convolution.go - 2D-Faltung (NCHW) mit Gruppen, Stride und Padding
package nn

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ollama/filmvision/ml"
)

// Conv2D ist eine 2D-Faltung ueber NCHW-Tensoren.
// Weight hat die Shape (out, in/groups, kh, kw).
type Conv2D struct {
	Weight *ml.Tensor `gguf:"weight"`
	Bias   *ml.Tensor `gguf:"bias"`

	Stride  int
	Padding int
	Groups  int
}

// NewConv2D allokiert eine quadratische Faltung mit symmetrischem Padding (k-1)/2.
func NewConv2D(in, out, kernel, stride, groups int, bias bool) *Conv2D {
	if groups <= 0 {
		groups = 1
	}
	c := &Conv2D{
		Weight:  ml.New(out, in/groups, kernel, kernel),
		Stride:  stride,
		Padding: (kernel - 1) / 2,
		Groups:  groups,
	}
	if bias {
		c.Bias = ml.New(out)
	}
	return c
}

// InChannels gibt die Anzahl der Eingabekanaele zurueck.
func (c *Conv2D) InChannels() int { return c.Weight.Dim(1) * c.groups() }

// OutChannels gibt die Anzahl der Ausgabekanaele zurueck.
func (c *Conv2D) OutChannels() int { return c.Weight.Dim(0) }

// FanIn ist die Anzahl der Eingaben pro Ausgabewert.
func (c *Conv2D) FanIn() int { return c.Weight.Dim(1) * c.Weight.Dim(2) * c.Weight.Dim(3) }

// FanOut ist die Anzahl der Ausgabewerte pro Eingabe.
func (c *Conv2D) FanOut() int {
	return c.Weight.Dim(0) / c.groups() * c.Weight.Dim(2) * c.Weight.Dim(3)
}

func (c *Conv2D) groups() int {
	if c.Groups <= 0 {
		return 1
	}
	return c.Groups
}

func (c *Conv2D) stride() int {
	if c.Stride <= 0 {
		return 1
	}
	return c.Stride
}

// Forward erwartet x mit Shape (batch, in, h, w).
func (c *Conv2D) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	inC := c.InChannels()
	if x.Rank() != 4 || x.Dim(1) != inC {
		return nil, fmt.Errorf("%w: conv2d expects (batch, %d, h, w), got %v", ml.ErrShape, inC, x.Shape())
	}

	batch, h, w := x.Dim(0), x.Dim(2), x.Dim(3)
	kh, kw := c.Weight.Dim(2), c.Weight.Dim(3)
	s, p := c.stride(), c.Padding
	outH := (h+2*p-kh)/s + 1
	outW := (w+2*p-kw)/s + 1
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("%w: conv2d kernel %dx%d larger than input %dx%d", ml.ErrShape, kh, kw, h, w)
	}

	outC := c.OutChannels()
	y := ml.New(batch, outC, outH, outW)
	src, dst := x.Floats(), y.Floats()

	if kh == 1 && kw == 1 && s == 1 && p == 0 && c.groups() == 1 {
		// 1x1: reine Kanal-Projektion an jeder Position
		for b := range batch {
			hw := h * w
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: outC, Cols: inC, Stride: inC, Data: c.Weight.Floats()},
				blas32.General{Rows: inC, Cols: hw, Stride: hw, Data: src[b*inC*hw : (b+1)*inC*hw]},
				0,
				blas32.General{Rows: outC, Cols: hw, Stride: hw, Data: dst[b*outC*hw : (b+1)*outC*hw]},
			)
		}
	} else {
		c.im2colForward(src, dst, batch, h, w, outH, outW)
	}

	if c.Bias != nil {
		bias := c.Bias.Floats()
		plane := outH * outW
		for b := range batch {
			for o := range outC {
				row := dst[(b*outC+o)*plane : (b*outC+o+1)*plane]
				for i := range row {
					row[i] += bias[o]
				}
			}
		}
	}
	return y, nil
}

// im2colForward entfaltet jede Gruppe in eine Spaltenmatrix und multipliziert
// sie mit den Gruppen-Gewichten.
func (c *Conv2D) im2colForward(src, dst []float32, batch, h, w, outH, outW int) {
	groups := c.groups()
	inC, outC := c.InChannels(), c.OutChannels()
	inG, outG := inC/groups, outC/groups
	kh, kw := c.Weight.Dim(2), c.Weight.Dim(3)
	s, p := c.stride(), c.Padding
	plane := outH * outW
	k := inG * kh * kw

	cols := make([]float32, k*plane)
	weight := c.Weight.Floats()
	for b := range batch {
		for g := range groups {
			clear(cols)
			for ci := range inG {
				channel := src[((b*inC)+g*inG+ci)*h*w:]
				for ky := range kh {
					for kx := range kw {
						row := cols[((ci*kh+ky)*kw+kx)*plane:]
						for oy := range outH {
							iy := oy*s - p + ky
							if iy < 0 || iy >= h {
								continue
							}
							for ox := range outW {
								ix := ox*s - p + kx
								if ix < 0 || ix >= w {
									continue
								}
								row[oy*outW+ox] = channel[iy*w+ix]
							}
						}
					}
				}
			}

			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: outG, Cols: k, Stride: k, Data: weight[g*outG*k : (g+1)*outG*k]},
				blas32.General{Rows: k, Cols: plane, Stride: plane, Data: cols},
				0,
				blas32.General{Rows: outG, Cols: plane, Stride: plane, Data: dst[(b*outC+g*outG)*plane : (b*outC+(g+1)*outG)*plane]},
			)
		}
	}
}
