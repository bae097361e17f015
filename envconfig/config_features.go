// config_features.go - Encoder-Defaults aus der Umgebung
//
// Dieses Modul enthaelt:
// - Backbone-Variante und Gewichts-Policy
// - Pooling, Kontextbreite und Seed fuer die Initialisierung
package envconfig

import "strings"

// =============================================================================
// Backbone
// =============================================================================

// Variant gibt die Backbone-Variante zurueck
// Konfigurierbar via FILMVISION_VARIANT
// Default: b3
func Variant() string {
	if s := strings.ToLower(Var("FILMVISION_VARIANT")); s != "" {
		return s
	}
	return "b3"
}

// Weights gibt die Gewichts-Policy zurueck
// Konfigurierbar via FILMVISION_WEIGHTS (DEFAULT, IMAGENET1K_V1, NONE)
// Default: DEFAULT
func Weights() string {
	if s := strings.ToUpper(Var("FILMVISION_WEIGHTS")); s != "" {
		return s
	}
	return "DEFAULT"
}

// =============================================================================
// Encoder-Einstellungen
// =============================================================================

var (
	// Pooling aktiviert globales Average-Pooling vor dem Flatten
	Pooling = Bool("FILMVISION_POOLING")

	// ContextDim ist die Breite des Kontextvektors
	// Konfigurierbar via FILMVISION_CONTEXT_DIM
	ContextDim = Uint("FILMVISION_CONTEXT_DIM", 512)

	// Seed initialisiert die Zufallsquelle fuer nicht geladene Gewichte
	// Konfigurierbar via FILMVISION_SEED
	Seed = Uint64("FILMVISION_SEED", 0)
)
