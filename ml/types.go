// types.go - Datentypen und Konstanten fuer ML-Operationen
// Dieses Modul definiert grundlegende Typen wie DType und SamplingMode.
package ml

import "fmt"

// DType is the on-disk element type of a stored tensor. In memory every
// tensor is float32.
type DType int

const (
	DTypeOther DType = iota
	DTypeF32
	DTypeF16
)

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	default:
		return "other"
	}
}

// ParseDType wandelt "f32"/"f16" in einen DType um.
func ParseDType(s string) (DType, error) {
	switch s {
	case "f32", "F32":
		return DTypeF32, nil
	case "f16", "F16":
		return DTypeF16, nil
	default:
		return DTypeOther, fmt.Errorf("ml: unsupported dtype %q", s)
	}
}

// SamplingMode specifies the interpolation method for image resizing.
type SamplingMode int

const (
	SamplingModeNearest SamplingMode = iota
	SamplingModeBilinear
	SamplingModeBicubic
)

func (m SamplingMode) String() string {
	switch m {
	case SamplingModeNearest:
		return "nearest"
	case SamplingModeBilinear:
		return "bilinear"
	case SamplingModeBicubic:
		return "bicubic"
	default:
		return "unknown"
	}
}
