package envconfig

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"0":     slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"2":     slog.Level(-8),
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("FILMVISION_DEBUG", k)
			if i := LogLevel(); i != v {
				t.Errorf("%s: expected %d, got %d", k, v, i)
			}
		})
	}
}

func TestVariantAndWeights(t *testing.T) {
	t.Setenv("FILMVISION_VARIANT", "")
	t.Setenv("FILMVISION_WEIGHTS", "")
	if got := Variant(); got != "b3" {
		t.Errorf("Variant() = %q, erwartet b3", got)
	}
	if got := Weights(); got != "DEFAULT" {
		t.Errorf("Weights() = %q, erwartet DEFAULT", got)
	}

	t.Setenv("FILMVISION_VARIANT", " 'B0' ")
	t.Setenv("FILMVISION_WEIGHTS", "none")
	if got := Variant(); got != "b0" {
		t.Errorf("Variant() = %q, erwartet b0", got)
	}
	if got := Weights(); got != "NONE" {
		t.Errorf("Weights() = %q, erwartet NONE", got)
	}
}

func TestNumericGetters(t *testing.T) {
	t.Setenv("FILMVISION_CONTEXT_DIM", "")
	t.Setenv("FILMVISION_SEED", "")
	if got := ContextDim(); got != 512 {
		t.Errorf("ContextDim() = %d", got)
	}

	t.Setenv("FILMVISION_CONTEXT_DIM", "768")
	t.Setenv("FILMVISION_SEED", "42")
	if got := ContextDim(); got != 768 {
		t.Errorf("ContextDim() = %d", got)
	}
	if got := Seed(); got != 42 {
		t.Errorf("Seed() = %d", got)
	}

	t.Setenv("FILMVISION_CONTEXT_DIM", "abc")
	if got := ContextDim(); got != 512 {
		t.Errorf("ungueltiger Wert: ContextDim() = %d, erwartet Default", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{
		"":       false,
		"true":   true,
		"false":  false,
		"1":      true,
		"0":      false,
		"random": true,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("FILMVISION_POOLING", k)
			if b := Pooling(); b != v {
				t.Errorf("%s: expected %t, got %t", k, v, b)
			}
		})
	}
}

func TestModels(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "weights")
	t.Setenv("FILMVISION_MODELS", dir)
	if got := Models(); got != dir {
		t.Errorf("Models() = %q", got)
	}
	if got := String("FILMVISION_MODELS")(); got != dir {
		t.Errorf("String() = %q", got)
	}
}

func TestAsMapDocumentsAllVariables(t *testing.T) {
	var got []string
	for k, v := range Values() {
		if v == "" && k != "FILMVISION_MODELS" {
			continue
		}
		got = append(got, k)
	}

	want := []string{
		"FILMVISION_CONTEXT_DIM",
		"FILMVISION_DEBUG",
		"FILMVISION_MODELS",
		"FILMVISION_POOLING",
		"FILMVISION_SEED",
		"FILMVISION_VARIANT",
		"FILMVISION_WEIGHTS",
	}
	if diff := cmp.Diff(want, got, cmpSorted); diff != "" {
		t.Errorf("AsMap (-want +got):\n%s", diff)
	}
}

var cmpSorted = cmpopts.SortSlices(func(a, b string) bool { return a < b })
