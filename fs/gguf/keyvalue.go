// Package gguf - Key-Value Typen
package gguf

import "reflect"

// KeyValue ist ein Metadaten-Eintrag einer GGUF-Datei
type KeyValue struct {
	Key string
	Value
}

// Valid meldet ob der Eintrag existiert
func (kv KeyValue) Valid() bool {
	return kv.Key != "" && kv.Value.value != nil
}

// Value kapselt einen beliebig typisierten Metadaten-Wert
type Value struct {
	value any
}

// Int liefert ganzzahlige Werte als int64, sonst 0
func (v Value) Int() int64 {
	rv := reflect.ValueOf(v.value)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	default:
		return 0
	}
}

// Uint liefert ganzzahlige Werte als uint64, sonst 0
func (v Value) Uint() uint64 {
	return uint64(v.Int())
}

// Float liefert Gleitkommawerte als float64, sonst 0
func (v Value) Float() float64 {
	switch f := v.value.(type) {
	case float32:
		return float64(f)
	case float64:
		return f
	default:
		return 0
	}
}

// Bool liefert Wahrheitswerte, sonst false
func (v Value) Bool() bool {
	b, _ := v.value.(bool)
	return b
}

// String liefert Strings, sonst ""
func (v Value) String() string {
	s, _ := v.value.(string)
	return s
}

// Strings liefert String-Arrays, sonst nil
func (v Value) Strings() []string {
	s, _ := v.value.([]string)
	return s
}

// Floats liefert float32-Arrays, sonst nil
func (v Value) Floats() []float32 {
	f, _ := v.value.([]float32)
	return f
}

// Any liefert den rohen Wert
func (v Value) Any() any {
	return v.value
}
