// Package vision - Backbone Registry fuer dynamische Varianten-Registrierung.
//
// MODUL: registry
// ZWECK: Zentrale Registry fuer Backbone-Factories mit Thread-sicherer Verwaltung
// INPUT: Varianten-Name, BackboneFactory-Funktionen, BackboneOptions
// OUTPUT: Registrierte Backbone-Instanzen
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: sync (stdlib), factory.go (BackboneFactory, Backbone)
// HINWEISE: Thread-sicher durch RWMutex
package vision

import (
	"slices"
	"sync"
)

// ============================================================================
// Registry - Zentrale Backbone-Verwaltung
// ============================================================================

// Registry verwaltet registrierte Backbone-Factories nach Variante.
// Thread-sicher durch RWMutex.
type Registry struct {
	backbones map[string]BackboneFactory
	mu        sync.RWMutex
}

// NewRegistry erstellt eine neue leere Registry.
func NewRegistry() *Registry {
	return &Registry{
		backbones: make(map[string]BackboneFactory),
	}
}

// ============================================================================
// Registry Methoden - Registrierung
// ============================================================================

// Register registriert eine BackboneFactory unter dem angegebenen Namen.
// Ueberschreibt existierende Eintraege ohne Warnung.
func (r *Registry) Register(name string, factory BackboneFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backbones[name] = factory
}

// Unregister entfernt eine Variante aus der Registry.
// Gibt true zurueck wenn die Variante existierte, sonst false.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.backbones[name]
	if exists {
		delete(r.backbones, name)
	}
	return exists
}

// ============================================================================
// Registry Methoden - Abfrage
// ============================================================================

// Get gibt die Factory fuer den angegebenen Namen zurueck.
// Gibt (factory, true) wenn gefunden, sonst (nil, false).
func (r *Registry) Get(name string) (BackboneFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.backbones[name]
	return factory, exists
}

// Has prueft ob eine Variante unter dem Namen registriert ist.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.backbones[name]
	return exists
}

// List gibt die sortierten Namen aller registrierten Varianten zurueck.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backbones))
	for name := range r.backbones {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count gibt die Anzahl registrierter Varianten zurueck.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.backbones)
}

// ============================================================================
// Registry Methoden - Backbone-Erstellung
// ============================================================================

// Create erstellt ein Backbone mit der registrierten Factory.
// Gibt ErrBackboneNotRegistered zurueck wenn der Name nicht gefunden wurde.
func (r *Registry) Create(name string, opts BackboneOptions) (Backbone, error) {
	factory, exists := r.Get(name)
	if !exists {
		return nil, &RegistryError{
			Op:   "create",
			Name: name,
			Err:  ErrBackboneNotRegistered,
		}
	}

	return factory(opts)
}
