// MODUL: canonicalize
// ZWECK: Bring Bild-Tensoren in die kanonische Form (B, 3, H, W) mit Werten in [0, 1]
// INPUT: Image (Pixel-Tensor plus Layout- und Wertebereich-Tag)
// OUTPUT: Rank-4 Channel-First Tensor
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: ml
// HINWEISE: Die Null-Werte der Tags aktivieren die Heuristiken (letzte Achse == 3,
//           globales Maximum >= 1.0)

package vision

import (
	"fmt"

	"github.com/ollama/filmvision/ml"
)

// Layout beschreibt die Achsenreihenfolge eines Bild-Tensors.
type Layout int

const (
	// LayoutInfer erkennt Channel-Last an einer letzten Achse der Groesse 3.
	LayoutInfer Layout = iota
	LayoutChannelsFirst
	LayoutChannelsLast
)

func (l Layout) String() string {
	switch l {
	case LayoutChannelsFirst:
		return "channels_first"
	case LayoutChannelsLast:
		return "channels_last"
	default:
		return "infer"
	}
}

// ValueRange beschreibt den Wertebereich der Pixel.
type ValueRange int

const (
	// RangeInfer teilt durch 255, wenn das globale Maximum >= 1.0 ist.
	RangeInfer ValueRange = iota
	// RangeUnit: Werte liegen bereits in [0, 1].
	RangeUnit
	// RangeRawByte: Werte liegen in [0, 255] und werden immer durch 255 geteilt.
	RangeRawByte
)

func (r ValueRange) String() string {
	switch r {
	case RangeUnit:
		return "unit"
	case RangeRawByte:
		return "raw_byte"
	default:
		return "infer"
	}
}

// Image ist die Encoder-Eingabe: Rank 3 (ein Bild) oder Rank 4 (Batch).
type Image struct {
	Pixels *ml.Tensor
	Layout Layout
	Range  ValueRange
}

// Canonicalize liefert (B, 3, H, W) mit Werten in [0, 1]. Die Vorverarbeitung
// des Backbones ist nicht Teil dieses Schritts.
func Canonicalize(img Image) (*ml.Tensor, error) {
	const op = "canonicalize"

	x := img.Pixels
	if x == nil {
		return nil, &ShapeError{Op: op, Expected: "rank 3 or 4", Err: ErrInvalidRank}
	}

	if x.Rank() == 3 {
		var err error
		if x, err = x.Unsqueeze(0); err != nil {
			return nil, err
		}
	}

	if x.Rank() != 4 {
		return nil, &ShapeError{Op: op, Expected: "rank 3 or 4", Actual: img.Pixels.Shape(), Err: ErrInvalidRank}
	}

	channelsLast := false
	switch img.Layout {
	case LayoutInfer:
		channelsLast = x.Dim(3) == 3
	case LayoutChannelsLast:
		if x.Dim(3) != 3 {
			return nil, &ShapeError{Op: op, Expected: "(B, H, W, 3)", Actual: x.Shape(), Err: ErrInvalidChannels}
		}
		channelsLast = true
	case LayoutChannelsFirst:
	default:
		return nil, &ShapeError{Op: op, Expected: "known layout", Actual: x.Shape(), Err: fmt.Errorf("layout %d", img.Layout)}
	}

	if channelsLast {
		var err error
		if x, err = x.Permute(0, 3, 1, 2); err != nil {
			return nil, err
		}
	}

	if x.Dim(1) != 3 {
		return nil, &ShapeError{Op: op, Expected: "(B, 3, H, W)", Actual: x.Shape(), Err: ErrInvalidChannels}
	}

	if x.HasNaN() {
		return nil, &RangeError{Op: op, Min: x.Min(), Max: x.Max(), Err: ErrValueRange}
	}

	switch img.Range {
	case RangeInfer:
		// globale Entscheidung fuer den ganzen Batch
		if x.Max() >= 1.0 {
			x = x.Map(fromByte)
		}
	case RangeRawByte:
		x = x.Map(fromByte)
	}

	if lo, hi := x.Min(), x.Max(); lo < 0 || hi > 1 {
		return nil, &RangeError{Op: op, Min: lo, Max: hi, Err: ErrValueRange}
	}

	return x, nil
}

// fromByte teilt durch 255 statt mit dem gerundeten Kehrwert zu multiplizieren.
func fromByte(v float32) float32 {
	return v / 255
}
