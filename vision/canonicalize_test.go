package vision

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/ollama/filmvision/ml"
)

// drawImage erzeugt einen (B, H, W, 3) oder (B, 3, H, W) Tensor mit Werten in [lo, hi].
func drawImage(t *rapid.T, channelsLast bool, lo, hi float32) *ml.Tensor {
	b := rapid.IntRange(1, 3).Draw(t, "batch")
	h := rapid.IntRange(4, 9).Draw(t, "height")
	w := rapid.IntRange(4, 9).Draw(t, "width")
	n := b * h * w * 3
	data := rapid.SliceOfN(rapid.Float32Range(lo, hi), n, n).Draw(t, "pixels")

	shape := []int{b, 3, h, w}
	if channelsLast {
		shape = []int{b, h, w, 3}
	}
	x, err := ml.FromFloats(data, shape...)
	if err != nil {
		t.Fatal(err)
	}
	return x
}

func TestCanonicalizeRank3EqualsRank4(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := drawImage(t, rapid.Bool().Draw(t, "last"), 0, 255)
		single, _ := x.Index(0)

		a, err := Canonicalize(Image{Pixels: single})
		if err != nil {
			t.Fatal(err)
		}
		batched, _ := single.Unsqueeze(0)
		b, err := Canonicalize(Image{Pixels: batched})
		if err != nil {
			t.Fatal(err)
		}
		if !a.AllClose(b, 0) {
			t.Fatalf("rang 3 und rang 4 unterscheiden sich: %v vs %v", a, b)
		}
	})
}

func TestCanonicalizeChannelsFirstUnchanged(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := drawImage(t, false, 0, 0.999)
		y, err := Canonicalize(Image{Pixels: x})
		if err != nil {
			t.Fatal(err)
		}
		if !x.AllClose(y, 0) {
			t.Fatalf("channel-first Eingabe wurde veraendert: %v -> %v", x.Shape(), y.Shape())
		}
	})
}

func TestCanonicalizeIdempotentOnUnitInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := drawImage(t, true, 0, 0.999)
		once, err := Canonicalize(Image{Pixels: x})
		if err != nil {
			t.Fatal(err)
		}
		twice, err := Canonicalize(Image{Pixels: once})
		if err != nil {
			t.Fatal(err)
		}
		if !once.AllClose(twice, 0) {
			t.Fatal("zweite Kanonisierung hat die Werte veraendert")
		}
		if once.Max() != x.Max() {
			t.Fatalf("max = %v, erwartet %v (kein Rescale)", once.Max(), x.Max())
		}
	})
}

func TestCanonicalizeRawInputInUnitRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := drawImage(t, true, 0, 255)
		// mindestens ein Pixel >= 1.0
		data := x.Floats()
		data[rapid.IntRange(0, len(data)-1).Draw(t, "hot")] = rapid.Float32Range(1, 255).Draw(t, "value")

		y, err := Canonicalize(Image{Pixels: x})
		if err != nil {
			t.Fatal(err)
		}
		if y.Min() < 0 || y.Max() > 1 {
			t.Fatalf("werte in [%v, %v], erwartet [0, 1]", y.Min(), y.Max())
		}
	})
}

func TestCanonicalizeDeclaredTags(t *testing.T) {
	// Breite 3: die Heuristik haelt das fuer Channel-Last
	x := ml.Full(0.5, 1, 3, 4, 3)

	y, err := Canonicalize(Image{Pixels: x, Layout: LayoutChannelsFirst})
	if err != nil {
		t.Fatal(err)
	}
	if got := y.Shape(); got[1] != 3 || got[2] != 4 || got[3] != 3 {
		t.Errorf("deklariertes channel-first wurde permutiert: %v", got)
	}

	inferred, err := Canonicalize(Image{Pixels: x})
	if err != nil {
		t.Fatal(err)
	}
	if got := inferred.Shape(); got[2] != 3 || got[3] != 4 {
		t.Errorf("heuristik: shape = %v, erwartet [1 3 3 4]", got)
	}

	white := ml.Full(1, 1, 3, 2, 2)
	unit, err := Canonicalize(Image{Pixels: white, Range: RangeUnit})
	if err != nil {
		t.Fatal(err)
	}
	if unit.Max() != 1 {
		t.Errorf("RangeUnit: max = %v, erwartet 1", unit.Max())
	}

	scaled, err := Canonicalize(Image{Pixels: white})
	if err != nil {
		t.Fatal(err)
	}
	if scaled.Max() >= 0.01 {
		t.Errorf("RangeInfer: weisses Bild sollte durch 255 geteilt werden, max = %v", scaled.Max())
	}

	dark := ml.Full(0.5, 1, 3, 2, 2)
	raw, err := Canonicalize(Image{Pixels: dark, Range: RangeRawByte})
	if err != nil {
		t.Fatal(err)
	}
	if want := float32(0.5) / 255; raw.Max() != want {
		t.Errorf("RangeRawByte: max = %v, erwartet %v", raw.Max(), want)
	}
}

func TestCanonicalizeByteValuesExact(t *testing.T) {
	x := ml.New(1, 3, 16, 16)
	for i := range x.Floats() {
		x.Floats()[i] = float32(i % 256)
	}

	for _, r := range []ValueRange{RangeRawByte, RangeInfer} {
		y, err := Canonicalize(Image{Pixels: x, Layout: LayoutChannelsFirst, Range: r})
		if err != nil {
			t.Fatalf("range %v: %v", r, err)
		}
		for i, v := range y.Floats() {
			if want := float32(i%256) / 255; v != want {
				t.Fatalf("range %v: byte %d -> %v, erwartet %v", r, i%256, v, want)
			}
		}
		if y.Max() != 1 {
			t.Errorf("range %v: byte 255 -> %v, erwartet genau 1", r, y.Max())
		}
	}
}

func TestCanonicalizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		img   Image
		shape bool
		want  error
	}{
		{"nil", Image{}, true, ErrInvalidRank},
		{"rang 2", Image{Pixels: ml.New(4, 4)}, true, ErrInvalidRank},
		{"rang 5", Image{Pixels: ml.New(1, 1, 3, 4, 4)}, true, ErrInvalidRank},
		{"4 kanaele", Image{Pixels: ml.New(1, 4, 5, 5)}, true, ErrInvalidChannels},
		{"deklariert channel-last", Image{Pixels: ml.New(1, 5, 5, 4), Layout: LayoutChannelsLast}, true, ErrInvalidChannels},
		{"negativ", Image{Pixels: ml.Full(-0.5, 1, 3, 2, 2)}, false, ErrValueRange},
		{"unit ueber 1", Image{Pixels: ml.Full(2, 1, 3, 2, 2), Range: RangeUnit}, false, ErrValueRange},
		{"ueber 255", Image{Pixels: ml.Full(300, 1, 3, 2, 2)}, false, ErrValueRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.img)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Fehler = %v, erwartet %v", err, tt.want)
			}

			var shapeErr *ShapeError
			var rangeErr *RangeError
			if tt.shape && !errors.As(err, &shapeErr) {
				t.Errorf("erwartet *ShapeError, bekommen %T", err)
			}
			if !tt.shape && !errors.As(err, &rangeErr) {
				t.Errorf("erwartet *RangeError, bekommen %T", err)
			}
		})
	}
}

func TestCanonicalizeNaN(t *testing.T) {
	x := ml.Full(0.5, 1, 3, 2, 2)
	x.Floats()[3] = float32(math.NaN())

	var rangeErr *RangeError
	if _, err := Canonicalize(Image{Pixels: x}); !errors.As(err, &rangeErr) {
		t.Fatalf("Fehler = %v, erwartet *RangeError", err)
	}
}
