// Package gguf - Header-Decoder
//
// Dieses Modul enthaelt den Decoder fuer den GGUF-Header:
// - decoder: zaehlt gelesene Bytes und kennt die Dateigroesse
// - fits: prueft Laengenfelder gegen die verbleibenden Bytes vor jeder Allokation
// - keyValue/tensorInfo: ein Metadaten-Eintrag bzw. eine Tensor-Beschreibung
// - decode/decodeSlice: typisierte Werte und Arrays (little endian)
package gguf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// decoder liest den Header sequentiell.
type decoder struct {
	r      *bufio.Reader
	offset int64
	size   int64
}

func (d *decoder) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	d.offset += int64(n)
	return n, err
}

func (d *decoder) remaining() int64 {
	return d.size - d.offset
}

// fits meldet ErrCorrupt, wenn n Elemente zu je elem Bytes nicht mehr in die Datei passen.
func (d *decoder) fits(n uint64, elem int64, what string) error {
	if n > uint64(max(d.remaining(), 0)/elem) {
		return fmt.Errorf("%w: %s %d exceeds %d remaining bytes at offset %d", ErrCorrupt, what, n, d.remaining(), d.offset)
	}
	return nil
}

func (d *decoder) truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated at offset %d", ErrCorrupt, d.offset)
	}
	return err
}

// decode liest einen Wert fester Groesse.
func decode[T any](d *decoder) (T, error) {
	var v T
	if err := binary.Read(d, binary.LittleEndian, &v); err != nil {
		return v, d.truncated(err)
	}
	return v, nil
}

// decodeAny adaptiert decode an die Tabelle der Skalar-Typen.
func decodeAny[T any](d *decoder) (any, error) {
	return decode[T](d)
}

// decodeSlice liest n Werte fester Groesse in einem Schritt.
func decodeSlice[T any](d *decoder, n uint64) (any, error) {
	var zero T
	if err := d.fits(n, int64(binary.Size(zero)), "array length"); err != nil {
		return nil, err
	}
	s := make([]T, n)
	if err := binary.Read(d, binary.LittleEndian, s); err != nil {
		return nil, d.truncated(err)
	}
	return s, nil
}

func (d *decoder) text() (string, error) {
	n, err := decode[uint64](d)
	if err != nil {
		return "", err
	}
	if err := d.fits(n, 1, "string length"); err != nil {
		return "", err
	}

	bts := make([]byte, n)
	if _, err := io.ReadFull(d, bts); err != nil {
		return "", d.truncated(err)
	}
	return string(bts), nil
}

func (d *decoder) texts(n uint64) (any, error) {
	// jeder String hat mindestens sein 8-Byte-Laengenfeld
	if err := d.fits(n, 8, "array length"); err != nil {
		return nil, err
	}
	s := make([]string, n)
	for i := range s {
		var err error
		if s[i], err = d.text(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var scalars = map[uint32]func(*decoder) (any, error){
	typeUint8:   decodeAny[uint8],
	typeInt8:    decodeAny[int8],
	typeUint16:  decodeAny[uint16],
	typeInt16:   decodeAny[int16],
	typeUint32:  decodeAny[uint32],
	typeInt32:   decodeAny[int32],
	typeUint64:  decodeAny[uint64],
	typeInt64:   decodeAny[int64],
	typeFloat32: decodeAny[float32],
	typeFloat64: decodeAny[float64],
	typeBool:    decodeAny[bool],
}

var arrays = map[uint32]func(*decoder, uint64) (any, error){
	typeUint8:   decodeSlice[uint8],
	typeInt8:    decodeSlice[int8],
	typeUint16:  decodeSlice[uint16],
	typeInt16:   decodeSlice[int16],
	typeUint32:  decodeSlice[uint32],
	typeInt32:   decodeSlice[int32],
	typeUint64:  decodeSlice[uint64],
	typeInt64:   decodeSlice[int64],
	typeFloat32: decodeSlice[float32],
	typeFloat64: decodeSlice[float64],
	typeBool:    decodeSlice[bool],
}

// value liest einen Metadaten-Wert vom Typ t.
func (d *decoder) value(t uint32) (any, error) {
	switch t {
	case typeString:
		return d.text()
	case typeArray:
		elem, err := decode[uint32](d)
		if err != nil {
			return nil, err
		}
		n, err := decode[uint64](d)
		if err != nil {
			return nil, err
		}
		if elem == typeString {
			return d.texts(n)
		}
		if read, ok := arrays[elem]; ok {
			return read(d, n)
		}
		return nil, fmt.Errorf("%w array type %d", ErrUnsupported, elem)
	}

	if read, ok := scalars[t]; ok {
		return read(d)
	}
	return nil, fmt.Errorf("%w type %d", ErrUnsupported, t)
}

func (d *decoder) keyValue() (KeyValue, error) {
	key, err := d.text()
	if err != nil {
		return KeyValue{}, err
	}

	t, err := decode[uint32](d)
	if err != nil {
		return KeyValue{}, err
	}

	v, err := d.value(t)
	if err != nil {
		return KeyValue{}, fmt.Errorf("key %q: %w", key, err)
	}
	return KeyValue{Key: key, Value: Value{v}}, nil
}

// tensorInfo liest eine Tensor-Beschreibung. Nur F32 und F16 sind erlaubt;
// die Elementanzahl darf die Dateigroesse nicht uebersteigen.
func (d *decoder) tensorInfo() (TensorInfo, error) {
	name, err := d.text()
	if err != nil {
		return TensorInfo{}, err
	}

	dims, err := decode[uint32](d)
	if err != nil {
		return TensorInfo{}, err
	}
	if dims == 0 || dims > maxDims {
		return TensorInfo{}, fmt.Errorf("%w: tensor %s has %d dims", ErrCorrupt, name, dims)
	}

	shape, err := decodeSlice[uint64](d, uint64(dims))
	if err != nil {
		return TensorInfo{}, err
	}

	elements := uint64(1)
	for _, n := range shape.([]uint64) {
		if n != 0 && elements > uint64(d.size)/n {
			return TensorInfo{}, fmt.Errorf("%w: tensor %s shape %v exceeds file size", ErrCorrupt, name, shape)
		}
		elements *= n
	}

	t, err := decode[TensorType](d)
	if err != nil {
		return TensorInfo{}, err
	}
	if t != TensorTypeF32 && t != TensorTypeF16 {
		return TensorInfo{}, fmt.Errorf("%w tensor type %v for %s", ErrUnsupported, t, name)
	}

	offset, err := decode[uint64](d)
	if err != nil {
		return TensorInfo{}, err
	}

	return TensorInfo{Name: name, Offset: offset, Shape: shape.([]uint64), Type: t}, nil
}
