// Package gguf - GGUF File Struktur und Open/Close
//
// Dieses Modul enthaelt die File-Hauptstruktur fuer GGUF-Dateien:
// - File: Repraesentiert eine geoeffnete GGUF-Datei (Header eager geparst)
// - Open: Oeffnet die Datei, parst den Header und prueft die Tensor-Bereiche
// - Close: Schliesst die Datei
// - Type-Konstanten fuer die Metadaten-Datentypen
package gguf

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"os"
)

// Type-Konstanten fuer GGUF-Datentypen
const (
	typeUint8 uint32 = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeFloat32
	typeBool
	typeString
	typeArray
	typeUint64
	typeInt64
	typeFloat64
)

// DefaultAlignment ist die Ausrichtung des Tensor-Datenblocks ohne general.alignment.
const DefaultAlignment = 32

// maxDims entspricht GGML_MAX_DIMS.
const maxDims = 4

var magic = [4]byte{'G', 'G', 'U', 'F'}

var (
	// ErrUnsupported wird bei nicht unterstuetzten Formaten oder Versionen zurueckgegeben
	ErrUnsupported = errors.New("unsupported")

	// ErrCorrupt: abgeschnittene Datei oder Laengenangaben jenseits der Dateigroesse.
	ErrCorrupt = fmt.Errorf("%w: corrupt file", ErrUnsupported)
)

// File repraesentiert eine geoeffnete GGUF-Datei
type File struct {
	Magic   [4]byte
	Version uint32

	keyValues []KeyValue
	tensors   []TensorInfo
	offset    int64

	file *os.File
}

// Open oeffnet eine GGUF-Datei und parst den Header. Bei jedem Fehler wird
// die Datei wieder geschlossen.
func Open(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	f, err := parse(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func parse(file *os.File) (*File, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	d := &decoder{r: bufio.NewReaderSize(file, 32<<10), size: stat.Size()}
	f := &File{file: file}

	if f.Magic, err = decode[[4]byte](d); err != nil {
		return nil, err
	}
	if f.Magic != magic {
		return nil, fmt.Errorf("%w file type %q", ErrUnsupported, f.Magic[:])
	}

	if f.Version, err = decode[uint32](d); err != nil {
		return nil, err
	}
	if f.Version < 2 || f.Version > 3 {
		return nil, fmt.Errorf("%w version %d", ErrUnsupported, f.Version)
	}

	numTensors, err := decode[uint64](d)
	if err != nil {
		return nil, err
	}
	numKeyValues, err := decode[uint64](d)
	if err != nil {
		return nil, err
	}

	// kleinste Eintraege: KV = Laenge + Typ + 1 Byte, Tensor = Laenge + Rang + Typ + Offset
	if err := d.fits(numKeyValues, 13, "key/value count"); err != nil {
		return nil, err
	}
	f.keyValues = make([]KeyValue, 0, numKeyValues)
	for range numKeyValues {
		kv, err := d.keyValue()
		if err != nil {
			return nil, err
		}
		f.keyValues = append(f.keyValues, kv)
	}

	if err := d.fits(numTensors, 24, "tensor count"); err != nil {
		return nil, err
	}
	f.tensors = make([]TensorInfo, 0, numTensors)
	for range numTensors {
		t, err := d.tensorInfo()
		if err != nil {
			return nil, err
		}
		f.tensors = append(f.tensors, t)
	}

	alignment := cmp.Or(f.KeyValue("general.alignment").Int(), DefaultAlignment)
	if alignment <= 0 {
		return nil, fmt.Errorf("%w: alignment %d", ErrCorrupt, alignment)
	}
	f.offset = d.offset + (alignment-d.offset%alignment)%alignment

	// jeder Tensor muss vollstaendig im Datenblock liegen
	for _, t := range f.tensors {
		if end := f.offset + int64(t.Offset) + t.NumBytes(); t.Offset > uint64(d.size) || end > d.size {
			return nil, fmt.Errorf("%w: tensor %s ends at byte %d of %d", ErrCorrupt, t.Name, end, d.size)
		}
	}

	return f, nil
}

// Close schliesst die Datei
func (f *File) Close() error {
	return f.file.Close()
}
