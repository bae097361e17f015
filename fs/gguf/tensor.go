// Package gguf - Tensor-Metadaten und Element-Kodierung
package gguf

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/x448/float16"

	"github.com/ollama/filmvision/ml"
)

// TensorType ist der GGML-Elementtyp eines gespeicherten Tensors
type TensorType uint32

const (
	TensorTypeF32 TensorType = 0
	TensorTypeF16 TensorType = 1
)

func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "F32"
	case TensorTypeF16:
		return "F16"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// TensorTypeOf bildet einen ml.DType auf den GGML-Typ ab
func TensorTypeOf(d ml.DType) (TensorType, error) {
	switch d {
	case ml.DTypeF32:
		return TensorTypeF32, nil
	case ml.DTypeF16:
		return TensorTypeF16, nil
	default:
		return 0, fmt.Errorf("%w dtype %v", ErrUnsupported, d)
	}
}

func (t TensorType) size() int64 {
	switch t {
	case TensorTypeF32:
		return 4
	case TensorTypeF16:
		return 2
	default:
		return 0
	}
}

func (t TensorType) decode(bts []byte) ([]float32, error) {
	switch t {
	case TensorTypeF32:
		out := make([]float32, len(bts)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(bts[i*4:]))
		}
		return out, nil
	case TensorTypeF16:
		out := make([]float32, len(bts)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(bts[i*2:])).Float32()
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w tensor type %v", ErrUnsupported, t)
	}
}

func (t TensorType) encode(values []float32) ([]byte, error) {
	switch t {
	case TensorTypeF32:
		bts := make([]byte, len(values)*4)
		for i, v := range values {
			binary.LittleEndian.PutUint32(bts[i*4:], math.Float32bits(v))
		}
		return bts, nil
	case TensorTypeF16:
		bts := make([]byte, len(values)*2)
		for i, v := range values {
			binary.LittleEndian.PutUint16(bts[i*2:], float16.Fromfloat32(v).Bits())
		}
		return bts, nil
	default:
		return nil, fmt.Errorf("%w tensor type %v", ErrUnsupported, t)
	}
}

// TensorInfo beschreibt einen Tensor im Header
type TensorInfo struct {
	Name   string
	Offset uint64
	Shape  []uint64
	Type   TensorType
}

// Valid meldet ob die Info einen existierenden Tensor beschreibt
func (ti TensorInfo) Valid() bool {
	return ti.Name != "" && ti.Type.size() > 0
}

// NumValues gibt die Anzahl der Elemente zurueck
func (ti TensorInfo) NumValues() int64 {
	var numItems int64 = 1
	for _, dim := range ti.Shape {
		numItems *= int64(dim)
	}
	return numItems
}

// NumBytes gibt die Groesse der Tensor-Daten zurueck
func (ti TensorInfo) NumBytes() int64 {
	return ti.NumValues() * ti.Type.size()
}

// Dims liefert die Shape in row-major Reihenfolge (aeusserste Dimension zuerst)
func (ti TensorInfo) Dims() []int {
	dims := make([]int, len(ti.Shape))
	for i, d := range ti.Shape {
		dims[i] = int(d)
	}
	slices.Reverse(dims)
	return dims
}
