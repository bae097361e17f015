package ml

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromFloatsLength(t *testing.T) {
	if _, err := FromFloats([]float32{1, 2, 3}, 2, 2); !errors.Is(err, ErrShape) {
		t.Fatalf("Fehler = %v, erwartet ErrShape", err)
	}

	src := []float32{1, 2, 3, 4}
	tt, err := FromFloats(src, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	src[0] = 99
	if tt.Floats()[0] != 1 {
		t.Error("FromFloats muss die Daten kopieren")
	}
}

func TestReshapeInfer(t *testing.T) {
	tt := New(2, 3, 4)
	r, err := tt.Reshape(2, -1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 12}, r.Shape()); diff != "" {
		t.Errorf("Shape falsch (-want +got):\n%s", diff)
	}

	if _, err := tt.Reshape(5, -1); !errors.Is(err, ErrShape) {
		t.Errorf("Fehler = %v, erwartet ErrShape", err)
	}
	if _, err := tt.Reshape(-1, -1); !errors.Is(err, ErrShape) {
		t.Errorf("zwei -1: Fehler = %v, erwartet ErrShape", err)
	}
}

func TestUnsqueezeSqueeze(t *testing.T) {
	tt := New(2, 5)
	u, err := tt.Unsqueeze(-1)
	if err != nil {
		t.Fatal(err)
	}
	u, err = u.Unsqueeze(-1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 5, 1, 1}, u.Shape()); diff != "" {
		t.Errorf("Unsqueeze (-want +got):\n%s", diff)
	}

	s, err := u.Squeeze()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 5}, s.Shape()); diff != "" {
		t.Errorf("Squeeze (-want +got):\n%s", diff)
	}

	if _, err := u.Squeeze(1); !errors.Is(err, ErrShape) {
		t.Errorf("Squeeze(1) auf Groesse 5: Fehler = %v", err)
	}
}

func TestPermuteChannelsLastToFirst(t *testing.T) {
	// (1, 2, 2, 3) HWC mit Kanalwert = c*10 + Position
	data := make([]float32, 12)
	for p := range 4 {
		for c := range 3 {
			data[p*3+c] = float32(c*10 + p)
		}
	}
	tt, err := FromFloats(data, 1, 2, 2, 3)
	if err != nil {
		t.Fatal(err)
	}

	p, err := tt.Permute(0, 3, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 3, 2, 2}, p.Shape()); diff != "" {
		t.Errorf("Shape (-want +got):\n%s", diff)
	}
	want := []float32{0, 1, 2, 3, 10, 11, 12, 13, 20, 21, 22, 23}
	if diff := cmp.Diff(want, p.Floats()); diff != "" {
		t.Errorf("Daten (-want +got):\n%s", diff)
	}

	if _, err := tt.Permute(0, 0, 1, 2); !errors.Is(err, ErrShape) {
		t.Errorf("ungueltige Permutation: Fehler = %v", err)
	}
}

func TestMinMaxNaN(t *testing.T) {
	tt, _ := FromFloats([]float32{0.5, -2, 7}, 3)
	if tt.Max() != 7 || tt.Min() != -2 {
		t.Errorf("Max/Min = %v/%v", tt.Max(), tt.Min())
	}
	if tt.HasNaN() {
		t.Error("HasNaN ohne NaN")
	}
	n, _ := FromFloats([]float32{1, float32(math.NaN())}, 2)
	if !n.HasNaN() {
		t.Error("NaN nicht erkannt")
	}
}

func TestStackAndIndex(t *testing.T) {
	a, _ := FromFloats([]float32{1, 2}, 2)
	b, _ := FromFloats([]float32{3, 4}, 2)
	s, err := Stack(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 2}, s.Shape()); diff != "" {
		t.Errorf("Shape (-want +got):\n%s", diff)
	}
	second, err := s.Index(1)
	if err != nil {
		t.Fatal(err)
	}
	if !second.AllClose(b, 0) {
		t.Errorf("Index(1) = %v", second.Floats())
	}

	if _, err := Stack(a, New(3)); !errors.Is(err, ErrShape) {
		t.Errorf("Stack mit ungleichen Shapes: Fehler = %v", err)
	}
}

func TestScaleDoesNotMutate(t *testing.T) {
	a := Full(255, 2, 2)
	b := a.Scale(1.0 / 255)
	if a.Floats()[0] != 255 {
		t.Error("Scale hat den Empfaenger veraendert")
	}
	if b.Floats()[3] != 1 {
		t.Errorf("Scale = %v", b.Floats())
	}
}

func TestDump(t *testing.T) {
	tt, _ := FromFloats([]float32{1, -2, 3, 4}, 2, 2)
	got := Dump(tt, DumpWithPrecision(1))
	if !strings.Contains(got, "-2.0") || !strings.HasPrefix(got, "[[") {
		t.Errorf("Dump = %q", got)
	}

	big := New(100)
	if got := Dump(big, DumpWithThreshold(10), DumpWithEdgeItems(2)); !strings.Contains(got, "...") {
		t.Errorf("Dump ohne Kuerzung: %q", got)
	}
}

func TestStats(t *testing.T) {
	tt, _ := FromFloats([]float32{1, 2, 3, 6}, 4)
	s := tt.Stats()
	if diff := cmp.Diff(Stats{Min: 1, Max: 6, Mean: 3}, s); diff != "" {
		t.Errorf("Stats (-want +got):\n%s", diff)
	}
}

func TestParseDType(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want DType
	}{{"f32", DTypeF32}, {"F16", DTypeF16}} {
		got, err := ParseDType(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseDType(%q) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := ParseDType("q4_0"); err == nil {
		t.Error("q4_0 sollte nicht unterstuetzt sein")
	}
}
