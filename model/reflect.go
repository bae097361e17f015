// Package model - Reflection-basierte Parameter-Sammlung
//
// Dieses Modul enthaelt die Reflection-Logik, die einen Layer-Baum nach
// Parameter-Tensoren durchsucht und ihnen GGUF-Namen zuordnet.
//
// Hauptkomponenten:
// - Collect: Sammelt alle Parameter eines Modells mit vollstaendigem Namen
// - Tag: GGUF-Tag-Struktur fuer Tensor-Namen
// - parseTag: Parst GGUF-Tags aus Struct-Tags

package model

import (
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/ollama/filmvision/ml"
)

// Tag repraesentiert einen geparseten GGUF-Tag
type Tag struct {
	name,
	// prefix und suffix werden auf Kind-Tags angewendet
	prefix,
	suffix string
	alternatives []string
	optional     bool
}

// parseTag parst einen GGUF-Tag-String in eine Tag-Struktur
func parseTag(s string) (tag Tag) {
	parts := strings.Split(s, ",")
	if len(parts) > 0 {
		tag.name = parts[0]

		for _, part := range parts[1:] {
			if value, ok := strings.CutPrefix(part, "alt:"); ok && tag.name == "" {
				// Alternative zum Primaernamen erheben wenn kein Primaername
				tag.name = value
				slog.Warn("gguf tag has alt: but no primary name", "tag", s)
			} else if ok {
				tag.alternatives = append(tag.alternatives, value)
			}
			if value, ok := strings.CutPrefix(part, "pre:"); ok {
				tag.prefix = value
			}
			if value, ok := strings.CutPrefix(part, "suf:"); ok {
				tag.suffix = value
			}
			if part == "optional" {
				tag.optional = true
			}
		}
	}

	return
}

// Param ist ein benannter Parameter-Tensor eines Modells
type Param struct {
	// Names enthaelt den Primaernamen gefolgt von Alternativen
	Names    []string
	Tensor   *ml.Tensor
	Optional bool
}

// Name gibt den Primaernamen zurueck
func (p Param) Name() string {
	return p.Names[0]
}

var tensorType = reflect.TypeOf((*ml.Tensor)(nil))

// Collect durchsucht v (Pointer auf Struct) nach *ml.Tensor-Feldern mit
// gguf-Tags. Nil-Pointer werden uebersprungen, Slices erhalten den Index als
// Namensbestandteil.
func Collect(v any) []Param {
	var params []Param
	collectFields(reflect.ValueOf(v), nil, false, &params)
	return params
}

func collectFields(v reflect.Value, tags []Tag, optional bool, params *[]Param) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}
		if v.Type() == tensorType {
			names := buildTensorNames(tags, "", "")
			if len(names) == 0 {
				return
			}
			joined := make([]string, len(names))
			for i, name := range names {
				joined[i] = strings.Join(name, ".")
			}
			*params = append(*params, Param{Names: joined, Tensor: v.Interface().(*ml.Tensor), Optional: optional})
			return
		}
		collectFields(v.Elem(), tags, optional, params)
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}

			tag := t.Field(i).Tag.Get("gguf")
			if tag == "" || tag == "-" {
				continue
			}

			// Kopie erstellen
			parsed := parseTag(tag)
			tagsCopy := append(tags[:len(tags):len(tags)], parsed)
			collectFields(v.Field(i), tagsCopy, optional || parsed.optional, params)
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			collectFields(v.Index(i), append(tags[:len(tags):len(tags)], Tag{name: strconv.Itoa(i)}), optional, params)
		}
	}
}

// buildTensorNames baut die vollstaendigen Tensor-Namen aus Tags
func buildTensorNames(tags []Tag, prefix, suffix string) (fullNames [][]string) {
	if len(tags) > 0 {
		var names []string
		if tags[0].name != "" {
			for _, n := range append([]string{tags[0].name}, tags[0].alternatives...) {
				names = append(names, prefix+n+suffix)
			}
		}
		childNames := buildTensorNames(tags[1:], tags[0].prefix, tags[0].suffix)
		if len(names) == 0 {
			// Aktueller Tag hat keinen Namen, nur Kind-Namen verwenden
			fullNames = append(fullNames, childNames...)
		} else if len(childNames) == 0 {
			// Aktueller Tag hat Namen aber keine Kinder, Branches fuer jeden Namen erstellen
			for _, name := range names {
				fullNames = append(fullNames, []string{name})
			}
		} else {
			// Jeden Namen mit jedem Kind zusammenfuehren
			for _, name := range names {
				for _, childName := range childNames {
					fullNames = append(fullNames, append([]string{name}, childName...))
				}
			}
		}
	}

	return fullNames
}
