// MODUL: register
// ZWECK: Registriert alle EfficientNet-Varianten in der vision.DefaultRegistry
// INPUT: Keine (init()-Funktion)
// OUTPUT: Keine
// NEBENEFFEKTE: Modifiziert vision.DefaultRegistry beim Package-Import
// ABHAENGIGKEITEN: vision (DefaultRegistry, BackboneFactory), model.go
// HINWEISE: Import des Packages registriert automatisch b0..b7
//           Beispiel: import _ "github.com/ollama/filmvision/vision/efficientnet"

package efficientnet

import (
	"github.com/ollama/filmvision/vision"
)

func init() {
	for _, v := range variants {
		vision.MustRegisterToDefault(v.Name, Factory(v))
	}
}

// Factory erstellt die vision.BackboneFactory einer Variante.
func Factory(v Variant) vision.BackboneFactory {
	return func(opts vision.BackboneOptions) (vision.Backbone, error) {
		m, err := New(v, opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}
