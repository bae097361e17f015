// Package vision - Globale Registry-Instanz und Package-Level Funktionen.
//
// MODUL: registry_global
// ZWECK: Stellt eine globale DefaultRegistry bereit und Package-Funktionen als Convenience-Wrapper
// INPUT: Varianten-Name, BackboneFactory, BackboneOptions
// OUTPUT: Registrierte Backbone-Instanzen
// NEBENEFFEKTE: Aendert globale DefaultRegistry
// ABHAENGIGKEITEN: registry.go (Registry), factory.go (BackboneFactory)
// HINWEISE: Backbones registrieren sich via init() in ihren Packages (z.B. vision/efficientnet)
package vision

import "errors"

// ============================================================================
// Registry Errors - Fehlercodes fuer Registry-Operationen
// ============================================================================

// ErrBackboneNotRegistered wird zurueckgegeben wenn eine Variante nicht registriert ist.
var ErrBackboneNotRegistered = errors.New("vision: backbone not registered")

// RegistryError repraesentiert einen Registry-spezifischen Fehler.
type RegistryError struct {
	Op   string // Operation (z.B. "create")
	Name string // Varianten-Name
	Err  error  // Urspruenglicher Fehler
}

// Error implementiert das error Interface.
func (e *RegistryError) Error() string {
	return "vision: " + e.Op + " backbone '" + e.Name + "': " + e.Err.Error()
}

// Unwrap gibt den urspruenglichen Fehler zurueck.
func (e *RegistryError) Unwrap() error {
	return e.Err
}

// ============================================================================
// Globale Registry-Instanz
// ============================================================================

// DefaultRegistry ist die globale Registry fuer Backbone-Varianten.
var DefaultRegistry = NewRegistry()

// RegisterToDefault registriert eine BackboneFactory in der DefaultRegistry.
func RegisterToDefault(name string, factory BackboneFactory) {
	DefaultRegistry.Register(name, factory)
}

// UnregisterFromDefault entfernt eine Variante aus der DefaultRegistry.
func UnregisterFromDefault(name string) bool {
	return DefaultRegistry.Unregister(name)
}

// HasInDefault prueft ob eine Variante in der DefaultRegistry registriert ist.
func HasInDefault(name string) bool {
	return DefaultRegistry.Has(name)
}

// ListFromDefault gibt alle registrierten Varianten sortiert zurueck.
func ListFromDefault() []string {
	return DefaultRegistry.List()
}

// CreateFromDefault erstellt ein Backbone mit der DefaultRegistry.
func CreateFromDefault(name string, opts BackboneOptions) (Backbone, error) {
	return DefaultRegistry.Create(name, opts)
}

// MustRegisterToDefault registriert eine Factory und panict bei nil-Factory.
// Nuetzlich fuer init()-Funktionen wo Fehler fatal sein sollten.
func MustRegisterToDefault(name string, factory BackboneFactory) {
	if factory == nil {
		panic("vision: nil factory for backbone '" + name + "'")
	}
	RegisterToDefault(name, factory)
}
