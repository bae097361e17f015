// Package pooling stellt raeumliche Reduktionen fuer NCHW-Tensoren bereit.
package pooling

import (
	"fmt"

	"github.com/ollama/filmvision/ml"
)

// Type beschreibt die raeumliche Reduktion am Ende des Encoders.
type Type string

const (
	TypeNone Type = ""
	TypeAvg  Type = "avg"
)

// ParseType akzeptiert "", "none" und "avg".
func ParseType(s string) (Type, error) {
	switch s {
	case "", "none":
		return TypeNone, nil
	case "avg":
		return TypeAvg, nil
	default:
		return TypeNone, fmt.Errorf("pooling: unknown type %q", s)
	}
}

// GlobalAvgPool2D mittelt jede Feature-Map: (B,C,H,W) -> (B,C,1,1).
func GlobalAvgPool2D(x *ml.Tensor) (*ml.Tensor, error) {
	if x.Rank() != 4 {
		return nil, fmt.Errorf("%w: global average pool expects rank 4, got %v", ml.ErrShape, x.Shape())
	}
	batch, channels := x.Dim(0), x.Dim(1)
	plane := x.Dim(2) * x.Dim(3)

	y := ml.New(batch, channels, 1, 1)
	src, dst := x.Floats(), y.Floats()
	for i := range dst {
		var sum float64
		for _, v := range src[i*plane : (i+1)*plane] {
			sum += float64(v)
		}
		dst[i] = float32(sum / float64(plane))
	}
	return y, nil
}

// Flatten fasst alle Achsen nach der Batch-Achse zusammen: (B, ...) -> (B, N).
func Flatten(x *ml.Tensor) (*ml.Tensor, error) {
	if x.Rank() < 1 {
		return nil, fmt.Errorf("%w: flatten of scalar", ml.ErrShape)
	}
	if x.Rank() == 1 {
		return x.Unsqueeze(1)
	}
	return x.Flatten(1)
}

// Apply wendet die gewaehlte Reduktion an und flacht danach immer ab.
func Apply(t Type, x *ml.Tensor) (*ml.Tensor, error) {
	if t == TypeAvg && x.Rank() == 4 {
		var err error
		if x, err = GlobalAvgPool2D(x); err != nil {
			return nil, err
		}
	}
	return Flatten(x)
}
