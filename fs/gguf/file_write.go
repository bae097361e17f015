// Package gguf - GGUF Write Operations
//
// Dieses Modul enthaelt Funktionen zum Schreiben von GGUF-Dateien (V3):
// - WriteFile/Write: Schreibt KV-Paare und Tensoren
// - writeKeyValue: Key-Value Paar Serialisierung
// - writeTensorInfo: Tensor-Metadaten Serialisierung
package gguf

import (
	"bufio"
	"cmp"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"os"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ollama/filmvision/ml"
)

// Tensor ist ein zu schreibender Tensor
type Tensor struct {
	Name string
	Type TensorType
	Data *ml.Tensor
}

// WriteFile schreibt eine GGUF-Datei nach path
func WriteFile(path string, kv map[string]any, ts []Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(f, 1<<20)
	if err := Write(w, kv, ts); err != nil {
		f.Close()
		return err
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// countingWriter zaehlt geschriebene Bytes fuer das Alignment
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Write serialisiert KV-Paare und Tensoren. Tensoren werden nach Name sortiert
// und parallel kodiert.
func Write(w io.Writer, kv map[string]any, ts []Tensor) error {
	cw := &countingWriter{w: w}

	ts = slices.Clone(ts)
	slices.SortStableFunc(ts, func(a, b Tensor) int {
		return cmp.Compare(a.Name, b.Name)
	})

	encoded := make([][]byte, len(ts))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, t := range ts {
		g.Go(func() error {
			bts, err := t.Type.encode(t.Data.Floats())
			if err != nil {
				return fmt.Errorf("encoding tensor %s: %w", t.Name, err)
			}
			encoded[i] = bts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, v := range []any{magic, uint32(3), uint64(len(ts)), uint64(len(kv))} {
		if err := binary.Write(cw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, key := range slices.Sorted(maps.Keys(kv)) {
		if err := writeKeyValue(cw, key, kv[key]); err != nil {
			return err
		}
	}

	alignment := int64(DefaultAlignment)
	if a, ok := kv["general.alignment"].(uint32); ok && a > 0 {
		alignment = int64(a)
	}

	var offset int64
	for i, t := range ts {
		if err := writeTensorInfo(cw, t, uint64(offset)); err != nil {
			return err
		}
		offset += int64(len(encoded[i]))
		offset += padding(offset, alignment)
	}

	if err := writePadding(cw, alignment); err != nil {
		return err
	}

	for _, bts := range encoded {
		if _, err := cw.Write(bts); err != nil {
			return err
		}
		if err := writePadding(cw, alignment); err != nil {
			return err
		}
	}

	return nil
}

func padding(offset, alignment int64) int64 {
	return (alignment - offset%alignment) % alignment
}

func writePadding(cw *countingWriter, alignment int64) error {
	if n := padding(cw.n, alignment); n > 0 {
		_, err := cw.Write(make([]byte, n))
		return err
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeTyped(w io.Writer, t uint32, v any) error {
	if err := binary.Write(w, binary.LittleEndian, t); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, v)
}

func writeArray[T any](w io.Writer, t uint32, s []T) error {
	if err := binary.Write(w, binary.LittleEndian, typeArray); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, t); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, s)
}

// writeKeyValue schreibt ein Key-Value Paar
func writeKeyValue(w io.Writer, key string, v any) error {
	if err := writeString(w, key); err != nil {
		return err
	}

	switch v := v.(type) {
	case uint32:
		return writeTyped(w, typeUint32, v)
	case int32:
		return writeTyped(w, typeInt32, v)
	case uint64:
		return writeTyped(w, typeUint64, v)
	case int64:
		return writeTyped(w, typeInt64, v)
	case float32:
		return writeTyped(w, typeFloat32, v)
	case float64:
		return writeTyped(w, typeFloat64, v)
	case bool:
		return writeTyped(w, typeBool, v)
	case string:
		if err := binary.Write(w, binary.LittleEndian, typeString); err != nil {
			return err
		}
		return writeString(w, v)
	case []int32:
		return writeArray(w, typeInt32, v)
	case []uint32:
		return writeArray(w, typeUint32, v)
	case []float32:
		return writeArray(w, typeFloat32, v)
	case []string:
		for _, header := range []any{typeArray, typeString, uint64(len(v))} {
			if err := binary.Write(w, binary.LittleEndian, header); err != nil {
				return err
			}
		}
		for _, s := range v {
			if err := writeString(w, s); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w key value %s of type %T", ErrUnsupported, key, v)
	}
}

// writeTensorInfo schreibt die Metadaten eines Tensors (Dims innerste zuerst)
func writeTensorInfo(w io.Writer, t Tensor, offset uint64) error {
	if err := writeString(w, t.Name); err != nil {
		return err
	}

	shape := t.Data.Shape()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(shape))); err != nil {
		return err
	}
	for i := len(shape) - 1; i >= 0; i-- {
		if err := binary.Write(w, binary.LittleEndian, uint64(shape[i])); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(t.Type)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, offset)
}
