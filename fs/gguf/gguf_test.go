package gguf

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ollama/filmvision/ml"
)

func writeTestFile(t *testing.T, kv map[string]any, ts []Tensor) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.gguf")
	if err := WriteFile(path, kv, ts); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestWriteOpenRoundtrip(t *testing.T) {
	w, _ := ml.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b, _ := ml.FromFloats([]float32{0.5, -0.25}, 2)

	path := writeTestFile(t, map[string]any{
		"general.architecture": "efficientnet",
		"efficientnet.variant": "b0",
		"efficientnet.width":   uint32(1280),
		"efficientnet.labels":  []string{"a", "b"},
	}, []Tensor{
		{Name: "proj.weight", Type: TensorTypeF32, Data: w},
		{Name: "proj.bias", Type: TensorTypeF16, Data: b},
	})

	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if f.Version != 3 {
		t.Errorf("Version = %d, erwartet 3", f.Version)
	}
	if got := f.KeyValue("variant").String(); got != "b0" {
		t.Errorf("variant = %q", got)
	}
	if got := f.KeyValue("width").Int(); got != 1280 {
		t.Errorf("width = %d", got)
	}
	if diff := cmp.Diff([]string{"a", "b"}, f.KeyValue("labels").Strings()); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if f.KeyValue("missing").Valid() {
		t.Error("fehlender Key ist gueltig")
	}

	info := f.TensorInfo("proj.weight")
	if diff := cmp.Diff([]uint64{3, 2}, info.Shape); diff != "" {
		t.Errorf("GGUF-Shape muss innerste Dimension zuerst haben (-want +got):\n%s", diff)
	}

	got, err := f.ReadTensor("proj.weight")
	if err != nil {
		t.Fatal(err)
	}
	if !got.AllClose(w, 0) {
		t.Errorf("proj.weight = %v %v", got.Shape(), got.Floats())
	}

	got, err = f.ReadTensor("proj.bias")
	if err != nil {
		t.Fatal(err)
	}
	if !got.AllClose(b, 1e-3) {
		t.Errorf("proj.bias = %v", got.Floats())
	}
}

func TestReadTensors(t *testing.T) {
	var ts []Tensor
	var names []string
	for _, name := range []string{"a", "b", "c", "d"} {
		ts = append(ts, Tensor{Name: name, Type: TensorTypeF32, Data: ml.Full(float32(len(names)+1), 3, 5)})
		names = append(names, name)
	}
	path := writeTestFile(t, map[string]any{"general.architecture": "test"}, ts)

	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tensors, err := f.ReadTensors(context.Background(), names)
	if err != nil {
		t.Fatal(err)
	}
	for i, name := range names {
		if v := tensors[name].Floats()[0]; v != float32(i+1) {
			t.Errorf("%s = %v, erwartet %d", name, v, i+1)
		}
	}

	if _, err := f.ReadTensors(context.Background(), []string{"a", "missing"}); err == nil {
		t.Error("fehlender Tensor muss einen Fehler liefern")
	}
}

func TestOpenRejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gguf")
	if err := os.WriteFile(path, []byte("GGML\x03\x00\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Fehler = %v, erwartet ErrUnsupported", err)
	}
}

// rawHeader kodiert Header-Felder; Strings erhalten ihr 8-Byte-Laengenfeld.
func rawHeader(t *testing.T, parts ...any) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, p := range parts {
		if s, ok := p.(string); ok {
			p = append(binary.LittleEndian.AppendUint64(nil, uint64(len(s))), s...)
		}
		if err := binary.Write(&buf, binary.LittleEndian, p); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestOpenRejectsCorruptHeaders(t *testing.T) {
	pad := make([]byte, 32)
	cases := []struct {
		name    string
		data    []byte
		corrupt bool
	}{
		{"abgeschnitten", []byte("GGUF\x03\x00"), true},
		{"version", rawHeader(t, magic, uint32(7), uint64(0), uint64(0)), false},
		{"kv-anzahl", rawHeader(t, magic, uint32(3), uint64(0), uint64(1)<<62), true},
		{"tensor-anzahl", rawHeader(t, magic, uint32(3), uint64(1)<<60, uint64(0)), true},
		{"string-laenge", rawHeader(t, magic, uint32(3), uint64(0), uint64(1), uint64(1)<<40, pad), true},
		{"array-laenge", rawHeader(t, magic, uint32(3), uint64(0), uint64(1), "k", typeArray, typeUint32, uint64(1)<<50, pad), true},
		{"kv-typ", rawHeader(t, magic, uint32(3), uint64(0), uint64(1), "k", uint32(99), pad), false},
		{"tensor-rang", rawHeader(t, magic, uint32(3), uint64(1), uint64(0), "w", uint32(9), pad), true},
		{"tensor-typ", rawHeader(t, magic, uint32(3), uint64(1), uint64(0), "w", uint32(1), uint64(4), uint32(2), uint64(0), pad), false},
		{"tensor-shape", rawHeader(t, magic, uint32(3), uint64(1), uint64(0), "w", uint32(2), uint64(1)<<40, uint64(1)<<40, uint32(0), uint64(0)), true},
		{"tensor-daten", rawHeader(t, magic, uint32(3), uint64(1), uint64(0), "w", uint32(1), uint64(1000), uint32(0), uint64(0)), true},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.gguf")
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}

			f, err := Open(path)
			if err == nil {
				f.Close()
				t.Fatal("Open muss einen Fehler liefern")
			}
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("Fehler = %v, erwartet ErrUnsupported", err)
			}
			if got := errors.Is(err, ErrCorrupt); got != tt.corrupt {
				t.Errorf("errors.Is(ErrCorrupt) = %v, erwartet %v (%v)", got, tt.corrupt, err)
			}
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.gguf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Fehler = %v, erwartet os.ErrNotExist", err)
	}
}

func TestWriteAlignment(t *testing.T) {
	var buf bytes.Buffer
	x := ml.Full(1, 3)
	if err := Write(&buf, map[string]any{"general.architecture": "x"}, []Tensor{
		{Name: "a", Type: TensorTypeF16, Data: x},
		{Name: "b", Type: TensorTypeF32, Data: x},
	}); err != nil {
		t.Fatal(err)
	}
	if buf.Len()%DefaultAlignment != 0 {
		t.Errorf("Dateilaenge %d nicht auf %d ausgerichtet", buf.Len(), DefaultAlignment)
	}
}

func TestWriteRejectsUnsupportedValue(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, map[string]any{"general.bad": struct{}{}}, nil)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Fehler = %v, erwartet ErrUnsupported", err)
	}
}
