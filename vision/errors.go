// MODUL: errors
// ZWECK: Fehler-Taxonomie des Encoders (Konfiguration, Nutzung, Shape, Wertebereich)
// INPUT: Operation, erwartete und tatsaechliche Werte
// OUTPUT: Typisierte Fehler mit errors.Is/As Unterstuetzung
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: Jeder Fehlertyp wrappt einen Sentinel fuer errors.Is

package vision

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinels
// ============================================================================

var (
	ErrUnknownVariant   = errors.New("vision: unknown backbone variant")
	ErrInvalidConfig    = errors.New("vision: invalid configuration")
	ErrMissingWeights   = errors.New("vision: pretrained weights not found")
	ErrContextWithTop   = errors.New("vision: context cannot be used with include_top")
	ErrInvalidRank      = errors.New("vision: image rank must be 3 or 4")
	ErrInvalidChannels  = errors.New("vision: image must have 3 channels")
	ErrImageTooSmall    = errors.New("vision: image smaller than crop size")
	ErrInvalidContext   = errors.New("vision: invalid context")
	ErrValueRange       = errors.New("vision: image values outside [0, 1]")
	ErrBackboneContract = errors.New("vision: backbone output violates contract")
)

// ============================================================================
// ConfigError - Fehler bei der Konstruktion
// ============================================================================

// ConfigError meldet eine ungueltige Konstruktions-Konfiguration.
type ConfigError struct {
	Field string // Konfigurationsfeld (z.B. "Variant")
	Value any    // Abgelehnter Wert
	Err   error  // Urspruenglicher Fehler
}

// Error implementiert das error Interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("vision: config %s=%v: %v", e.Field, e.Value, e.Err)
}

// Unwrap gibt den urspruenglichen Fehler zurueck.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ============================================================================
// UsageError - Vertragsverletzung beim Aufruf
// ============================================================================

// UsageError meldet einen Aufruf, den die Konfiguration nicht erlaubt.
type UsageError struct {
	Op  string
	Err error
}

// Error implementiert das error Interface.
func (e *UsageError) Error() string {
	return "vision: " + e.Op + ": " + e.Err.Error()
}

// Unwrap gibt den urspruenglichen Fehler zurueck.
func (e *UsageError) Unwrap() error {
	return e.Err
}

// ============================================================================
// ShapeError - Ungueltige Tensor-Shape
// ============================================================================

// ShapeError meldet eine Eingabe mit unerwarteter Shape.
type ShapeError struct {
	Op       string // Operation (z.B. "canonicalize")
	Expected string // Beschreibung der erwarteten Shape
	Actual   []int  // Tatsaechliche Shape
	Err      error
}

// Error implementiert das error Interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("vision: %s: expected %s, got shape %v: %v", e.Op, e.Expected, e.Actual, e.Err)
}

// Unwrap gibt den urspruenglichen Fehler zurueck.
func (e *ShapeError) Unwrap() error {
	return e.Err
}

// ============================================================================
// RangeError - Werte ausserhalb [0, 1]
// ============================================================================

// RangeError meldet ein kanonisiertes Bild mit Werten ausserhalb [0, 1].
type RangeError struct {
	Op       string
	Min, Max float32 // Beobachteter Wertebereich
	Err      error
}

// Error implementiert das error Interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("vision: %s: values in [%g, %g], expected [0, 1]: %v", e.Op, e.Min, e.Max, e.Err)
}

// Unwrap gibt den urspruenglichen Fehler zurueck.
func (e *RangeError) Unwrap() error {
	return e.Err
}
