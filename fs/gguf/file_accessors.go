// Package gguf - GGUF File Accessor Methoden
//
// Dieses Modul enthaelt die Zugriffs-Methoden fuer GGUF-Dateien:
// - KeyValue: Sucht ein Key-Value Paar nach Name
// - KeyValues: Iterator ueber alle KV-Paare
// - TensorInfo: Sucht Tensor-Info nach Name
// - TensorInfos: Iterator ueber alle Tensor-Infos
// - TensorReader: Liefert einen Reader fuer Tensor-Daten
// - ReadTensor/ReadTensors: Dekodiert Tensoren nach float32
package gguf

import (
	"context"
	"fmt"
	"io"
	"iter"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ollama/filmvision/ml"
)

// KeyValue sucht ein Key-Value Paar nach Name
// Wenn der Key nicht mit "general." beginnt, wird der
// Architecture-Prefix automatisch hinzugefuegt
func (f *File) KeyValue(key string) KeyValue {
	if !strings.HasPrefix(key, "general.") {
		key = f.KeyValue("general.architecture").String() + "." + key
	}

	if index := slices.IndexFunc(f.keyValues, func(kv KeyValue) bool {
		return kv.Key == key
	}); index >= 0 {
		return f.keyValues[index]
	}

	return KeyValue{}
}

// NumKeyValues gibt die Anzahl der Key-Value Paare zurueck
func (f *File) NumKeyValues() int {
	return len(f.keyValues)
}

// KeyValues gibt einen Iterator ueber alle Key-Value Paare zurueck
func (f *File) KeyValues() iter.Seq2[int, KeyValue] {
	return slices.All(f.keyValues)
}

// TensorInfo sucht Tensor-Info nach Name
func (f *File) TensorInfo(name string) TensorInfo {
	if index := slices.IndexFunc(f.tensors, func(t TensorInfo) bool {
		return t.Name == name
	}); index >= 0 {
		return f.tensors[index]
	}

	return TensorInfo{}
}

// NumTensors gibt die Anzahl der Tensors zurueck
func (f *File) NumTensors() int {
	return len(f.tensors)
}

// TensorInfos gibt einen Iterator ueber alle Tensor-Infos zurueck
func (f *File) TensorInfos() iter.Seq2[int, TensorInfo] {
	return slices.All(f.tensors)
}

// TensorReader liefert Tensor-Info und einen Reader fuer die Tensor-Daten
func (f *File) TensorReader(name string) (TensorInfo, io.Reader, error) {
	t := f.TensorInfo(name)
	if !t.Valid() {
		return TensorInfo{}, nil, fmt.Errorf("tensor %s not found", name)
	}

	return t, io.NewSectionReader(f.file, f.offset+int64(t.Offset), t.NumBytes()), nil
}

// ReadTensor dekodiert einen Tensor in einen float32-Tensor. Die Shape wird
// von innerster-zuerst (GGUF) in row-major Reihenfolge umgedreht.
func (f *File) ReadTensor(name string) (*ml.Tensor, error) {
	info, r, err := f.TensorReader(name)
	if err != nil {
		return nil, err
	}

	bts := make([]byte, info.NumBytes())
	if _, err := io.ReadFull(r, bts); err != nil {
		return nil, fmt.Errorf("reading tensor %s: %w", name, err)
	}

	values, err := info.Type.decode(bts)
	if err != nil {
		return nil, fmt.Errorf("decoding tensor %s: %w", name, err)
	}

	return ml.FromFloats(values, info.Dims()...)
}

// ReadTensors dekodiert mehrere Tensoren parallel. Das Ergebnis ist nach Name
// indiziert; der erste Fehler bricht alle Leser ab.
func (f *File) ReadTensors(ctx context.Context, names []string) (map[string]*ml.Tensor, error) {
	out := make([]*ml.Tensor, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := f.ReadTensor(name)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	tensors := make(map[string]*ml.Tensor, len(names))
	for i, name := range names {
		tensors[name] = out[i]
	}
	return tensors, nil
}

// HasTensor meldet ob ein Tensor mit diesem Namen existiert
func (f *File) HasTensor(name string) bool {
	return f.TensorInfo(name).Valid()
}
