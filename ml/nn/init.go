// init.go - Gewichts-Initialisierung fuer Layer-Parameter
// Kaiming (He) Initialisierung fuer ReLU/SiLU-Netze, Null- und Konstant-Initialisierung.
package nn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ollama/filmvision/ml"
)

// NewSource erzeugt eine deterministische Zufallsquelle fuer die Initialisierung.
func NewSource(seed uint64) rand.Source {
	return rand.NewSource(seed)
}

// KaimingNormal fuellt t mit N(0, 2/fanIn), dem fan-in Modus fuer nachfolgende ReLU.
func KaimingNormal(t *ml.Tensor, fanIn int, src rand.Source) {
	dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2 / float64(fanIn)), Src: src}
	fill(t, dist.Rand)
}

// KaimingUniform fuellt t mit U(-b, b), b = sqrt(6/fanIn).
func KaimingUniform(t *ml.Tensor, fanIn int, src rand.Source) {
	bound := math.Sqrt(6 / float64(fanIn))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	fill(t, dist.Rand)
}

// Uniform fuellt t mit U(-bound, bound). Entspricht der Default-Initialisierung
// von Linear-Bias-Termen mit bound = 1/sqrt(fanIn).
func Uniform(t *ml.Tensor, bound float64, src rand.Source) {
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	fill(t, dist.Rand)
}

// Constant setzt alle Elemente auf v.
func Constant(t *ml.Tensor, v float32) {
	data := t.Floats()
	for i := range data {
		data[i] = v
	}
}

// Zeros setzt alle Elemente auf 0.
func Zeros(t *ml.Tensor) { Constant(t, 0) }

// Ones setzt alle Elemente auf 1.
func Ones(t *ml.Tensor) { Constant(t, 1) }

func fill(t *ml.Tensor, sample func() float64) {
	data := t.Floats()
	for i := range data {
		data[i] = float32(sample())
	}
}
