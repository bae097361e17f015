// Package model - Laden und Speichern von Modell-Parametern
//
// Hauptkomponenten:
// - Source: Quelle fuer benannte Tensoren (z.B. eine GGUF-Datei)
// - Load: Befuellt alle Parameter eines Modells aus einer Source
// - LoadFile: Oeffnet eine GGUF-Datei und ruft Load auf
// - Save: Schreibt alle Parameter eines Modells als GGUF-Datei

package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ollama/filmvision/fs/gguf"
	"github.com/ollama/filmvision/logutil"
	"github.com/ollama/filmvision/ml"
)

// Fehler-Definitionen
var (
	ErrMissingTensor = errors.New("model: missing tensor")
	ErrTensorShape   = errors.New("model: tensor shape mismatch")
)

// Source liefert benannte Tensoren
type Source interface {
	HasTensor(name string) bool
	ReadTensors(ctx context.Context, names []string) (map[string]*ml.Tensor, error)
}

// Load kopiert fuer jeden Parameter von v den passenden Tensor aus src.
// Der erste vorhandene Name (Primaer vor Alternativen) gewinnt. Fehlende
// optionale Parameter behalten ihre Initialisierung.
func Load(ctx context.Context, src Source, v any) error {
	params := Collect(v)

	resolved := make([]string, len(params))
	var names []string
	for i, p := range params {
		if idx := slices.IndexFunc(p.Names, src.HasTensor); idx >= 0 {
			resolved[i] = p.Names[idx]
			names = append(names, p.Names[idx])
		} else if !p.Optional {
			return fmt.Errorf("%w: %s", ErrMissingTensor, p.Name())
		} else {
			slog.Debug("optional tensor not found", "name", p.Name())
		}
	}

	tensors, err := src.ReadTensors(ctx, names)
	if err != nil {
		return err
	}

	for i, p := range params {
		if resolved[i] == "" {
			continue
		}

		t := tensors[resolved[i]]
		if err := p.Tensor.CopyFrom(t); err != nil {
			return fmt.Errorf("%w: %s has %v, want %v", ErrTensorShape, resolved[i], t.Shape(), p.Tensor.Shape())
		}
		logutil.Trace("loaded tensor", "name", resolved[i], "shape", t.Shape())
	}

	slog.Debug("loaded parameters", "count", len(names))
	return nil
}

// LoadFile oeffnet eine GGUF-Datei und laedt alle Parameter von v
func LoadFile(ctx context.Context, path string, v any) error {
	f, err := gguf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Load(ctx, f, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Save schreibt alle Parameter von vs unter ihrem Primaernamen nach path.
// Doppelte Namen sind ein Fehler.
func Save(path string, kv map[string]any, dtype ml.DType, vs ...any) error {
	tt, err := gguf.TensorTypeOf(dtype)
	if err != nil {
		return err
	}

	var ts []gguf.Tensor
	seen := make(map[string]bool)
	for _, v := range vs {
		for _, p := range Collect(v) {
			if seen[p.Name()] {
				return fmt.Errorf("model: duplicate tensor name %q", p.Name())
			}
			seen[p.Name()] = true
			ts = append(ts, gguf.Tensor{Name: p.Name(), Type: tt, Data: p.Tensor})
		}
	}

	slog.Debug("saving parameters", "path", path, "count", len(ts), "dtype", dtype)
	return gguf.WriteFile(path, kv, ts)
}
