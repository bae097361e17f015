// activation.go - Elementweise Aktivierungsfunktionen
package nn

import (
	"math"

	"github.com/ollama/filmvision/ml"
)

// SiLU berechnet x * sigmoid(x).
func SiLU(x *ml.Tensor) *ml.Tensor {
	return x.Map(func(v float32) float32 { return v * sigmoid(v) })
}

// Sigmoid berechnet 1 / (1 + exp(-x)).
func Sigmoid(x *ml.Tensor) *ml.Tensor {
	return x.Map(sigmoid)
}

// ReLU berechnet max(0, x).
func ReLU(x *ml.Tensor) *ml.Tensor {
	return x.Map(func(v float32) float32 { return max(v, 0) })
}

func sigmoid(v float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(v))))
}
