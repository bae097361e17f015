// tensor.go - Dichter float32-Tensor fuer CPU-Berechnungen
// Dieses Modul definiert den Tensor-Typ (row-major) und die Shape-Operationen,
// die Encoder, Layer und Gewichts-Loader gemeinsam nutzen.
package ml

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrShape wird bei inkompatiblen Shapes zurueckgegeben.
var ErrShape = errors.New("ml: shape mismatch")

// Tensor is a dense, row-major float32 array. Operations return new tensors
// and never mutate the receiver, so a Tensor can be shared by concurrent readers.
type Tensor struct {
	shape []int
	data  []float32
}

// New erzeugt einen mit Nullen gefuellten Tensor.
func New(shape ...int) *Tensor {
	return &Tensor{shape: slices.Clone(shape), data: make([]float32, numel(shape))}
}

// FromFloats erzeugt einen Tensor aus vorhandenen Daten.
// Die Daten werden kopiert.
func FromFloats(data []float32, shape ...int) (*Tensor, error) {
	if n := numel(shape); n != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v (want %d)", ErrShape, len(data), shape, n)
	}
	return &Tensor{shape: slices.Clone(shape), data: slices.Clone(data)}, nil
}

// Full erzeugt einen Tensor, dessen Elemente alle den Wert v haben.
func Full(v float32, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Shape gibt eine Kopie der Dimensionen zurueck.
func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

// Rank gibt die Anzahl der Dimensionen zurueck.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim gibt die Groesse der Dimension n zurueck. Negative Werte zaehlen vom Ende.
func (t *Tensor) Dim(n int) int {
	if n < 0 {
		n += len(t.shape)
	}
	return t.shape[n]
}

// Len gibt die Anzahl der Elemente zurueck.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Floats gibt die Rohdaten zurueck (kein Kopie). Geschrieben wird nur in
// frisch allokierte Tensoren oder beim Initialisieren von Parametern.
func (t *Tensor) Floats() []float32 {
	return t.data
}

// Clone erzeugt eine tiefe Kopie.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: slices.Clone(t.shape), data: slices.Clone(t.data)}
}

// CopyFrom ueberschreibt die Daten mit denen von src. Nur fuer Parameter-Tensoren
// waehrend des Ladens gedacht, nie waehrend eines Forward-Passes.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !slices.Equal(t.shape, src.shape) {
		return fmt.Errorf("%w: copy %v into %v", ErrShape, src.shape, t.shape)
	}
	copy(t.data, src.data)
	return nil
}

// Reshape liefert einen Tensor mit neuer Shape. Eine Dimension darf -1 sein.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	shape = slices.Clone(shape)
	infer := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d <= 0:
			return nil, fmt.Errorf("%w: invalid reshape %v", ErrShape, shape)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			return nil, fmt.Errorf("%w: cannot reshape %v to %v", ErrShape, t.shape, shape)
		}
		shape[infer] = len(t.data) / known
	}
	if numel(shape) != len(t.data) {
		return nil, fmt.Errorf("%w: cannot reshape %v to %v", ErrShape, t.shape, shape)
	}
	return &Tensor{shape: shape, data: slices.Clone(t.data)}, nil
}

// Unsqueeze fuegt an Position dim eine Dimension der Groesse 1 ein.
func (t *Tensor) Unsqueeze(dim int) (*Tensor, error) {
	if dim < 0 {
		dim += len(t.shape) + 1
	}
	if dim < 0 || dim > len(t.shape) {
		return nil, fmt.Errorf("%w: unsqueeze dim %d for rank %d", ErrShape, dim, len(t.shape))
	}
	return t.Reshape(slices.Insert(slices.Clone(t.shape), dim, 1)...)
}

// Squeeze entfernt die angegebenen Dimensionen, die Groesse 1 haben muessen.
// Ohne Argumente werden alle Dimensionen der Groesse 1 entfernt.
func (t *Tensor) Squeeze(dims ...int) (*Tensor, error) {
	drop := make([]bool, len(t.shape))
	if len(dims) == 0 {
		for i, d := range t.shape {
			drop[i] = d == 1
		}
	}
	for _, d := range dims {
		if d < 0 {
			d += len(t.shape)
		}
		if d < 0 || d >= len(t.shape) || t.shape[d] != 1 {
			return nil, fmt.Errorf("%w: cannot squeeze dim %d of %v", ErrShape, d, t.shape)
		}
		drop[d] = true
	}

	shape := make([]int, 0, len(t.shape))
	for i, d := range t.shape {
		if !drop[i] {
			shape = append(shape, d)
		}
	}
	return &Tensor{shape: shape, data: slices.Clone(t.data)}, nil
}

// Flatten fasst alle Dimensionen ab startDim zu einer zusammen.
func (t *Tensor) Flatten(startDim int) (*Tensor, error) {
	if startDim < 0 || startDim >= len(t.shape) {
		return nil, fmt.Errorf("%w: flatten from %d for rank %d", ErrShape, startDim, len(t.shape))
	}
	shape := append(slices.Clone(t.shape[:startDim]), numel(t.shape[startDim:]))
	return &Tensor{shape: shape, data: slices.Clone(t.data)}, nil
}

// Permute ordnet die Achsen um. order[i] ist die Quell-Achse der Ziel-Achse i.
func (t *Tensor) Permute(order ...int) (*Tensor, error) {
	rank := len(t.shape)
	if len(order) != rank {
		return nil, fmt.Errorf("%w: permute %v for rank %d", ErrShape, order, rank)
	}
	seen := make([]bool, rank)
	for _, o := range order {
		if o < 0 || o >= rank || seen[o] {
			return nil, fmt.Errorf("%w: invalid permutation %v", ErrShape, order)
		}
		seen[o] = true
	}

	srcStrides := strides(t.shape)
	shape := make([]int, rank)
	permStrides := make([]int, rank)
	for i, o := range order {
		shape[i] = t.shape[o]
		permStrides[i] = srcStrides[o]
	}

	out := make([]float32, len(t.data))
	index := make([]int, rank)
	for i := range out {
		offset := 0
		for d := range rank {
			offset += index[d] * permStrides[d]
		}
		out[i] = t.data[offset]

		for d := rank - 1; d >= 0; d-- {
			index[d]++
			if index[d] < shape[d] {
				break
			}
			index[d] = 0
		}
	}

	return &Tensor{shape: shape, data: out}, nil
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// Max gibt das globale Maximum zurueck (-Inf fuer leere Tensoren).
func (t *Tensor) Max() float32 {
	m := float32(math.Inf(-1))
	for _, v := range t.data {
		if v > m {
			m = v
		}
	}
	return m
}

// Min gibt das globale Minimum zurueck (+Inf fuer leere Tensoren).
func (t *Tensor) Min() float32 {
	m := float32(math.Inf(1))
	for _, v := range t.data {
		if v < m {
			m = v
		}
	}
	return m
}

// HasNaN prueft ob mindestens ein Element NaN ist.
func (t *Tensor) HasNaN() bool {
	return slices.ContainsFunc(t.data, func(v float32) bool { return v != v })
}

// Scale multipliziert jedes Element mit s.
func (t *Tensor) Scale(s float32) *Tensor {
	return t.Map(func(v float32) float32 { return v * s })
}

// Map wendet f elementweise an.
func (t *Tensor) Map(f func(float32) float32) *Tensor {
	out := &Tensor{shape: slices.Clone(t.shape), data: make([]float32, len(t.data))}
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return out
}

// Add addiert zwei Tensoren gleicher Shape elementweise.
func (t *Tensor) Add(t2 *Tensor) (*Tensor, error) {
	if !slices.Equal(t.shape, t2.shape) {
		return nil, fmt.Errorf("%w: add %v and %v", ErrShape, t.shape, t2.shape)
	}
	out := t.Clone()
	for i, v := range t2.data {
		out.data[i] += v
	}
	return out, nil
}

// Stack stapelt Tensoren gleicher Shape entlang einer neuen fuehrenden Achse.
func Stack(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: stack of zero tensors", ErrShape)
	}
	shape := ts[0].shape
	data := make([]float32, 0, len(ts)*len(ts[0].data))
	for _, t := range ts {
		if !slices.Equal(t.shape, shape) {
			return nil, fmt.Errorf("%w: stack %v with %v", ErrShape, shape, t.shape)
		}
		data = append(data, t.data...)
	}
	return &Tensor{shape: append([]int{len(ts)}, shape...), data: data}, nil
}

// Index gibt den i-ten Eintrag entlang der ersten Achse zurueck.
func (t *Tensor) Index(i int) (*Tensor, error) {
	if len(t.shape) == 0 || i < 0 || i >= t.shape[0] {
		return nil, fmt.Errorf("%w: index %d of %v", ErrShape, i, t.shape)
	}
	size := len(t.data) / t.shape[0]
	return &Tensor{shape: slices.Clone(t.shape[1:]), data: slices.Clone(t.data[i*size : (i+1)*size])}, nil
}

// AllClose prueft elementweise Gleichheit mit Toleranz tol.
func (t *Tensor) AllClose(t2 *Tensor, tol float32) bool {
	if !slices.Equal(t.shape, t2.shape) {
		return false
	}
	for i, v := range t.data {
		if d := v - t2.data[i]; d > tol || d < -tol {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
