// MODUL: preprocess_config
// ZWECK: Parser fuer HuggingFace preprocessor_config.json
// INPUT: JSON-Datei oder Bytes
// OUTPUT: Transform (Resize, Crop, Mean/Std, Resampling)
// NEBENEFFEKTE: Dateisystem-Lesezugriff bei LoadTransformConfig
// ABHAENGIGKEITEN: encoding/json, ml
// HINWEISE: size/crop_size duerfen Zahl oder Objekt sein

package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ollama/filmvision/ml"
)

// Resampling-Konstanten (PIL/Pillow Werte)
const (
	ResampleNearest  = 0
	ResampleLanczos  = 1
	ResampleBilinear = 2
	ResampleBicubic  = 3
)

// ErrInvalidPreprocessor wird bei unbrauchbarer preprocessor_config.json zurueckgegeben.
var ErrInvalidPreprocessor = errors.New("vision: invalid preprocessor_config.json")

// PreprocessorConfig sind die relevanten Felder einer preprocessor_config.json.
type PreprocessorConfig struct {
	ImageProcessorType string `json:"image_processor_type,omitempty"`

	Size     *ImageSizeConfig `json:"size,omitempty"`
	CropSize *ImageSizeConfig `json:"crop_size,omitempty"`

	ImageMean []float32 `json:"image_mean,omitempty"`
	ImageStd  []float32 `json:"image_std,omitempty"`

	Resample     *int  `json:"resample,omitempty"`
	DoResize     *bool `json:"do_resize,omitempty"`
	DoCenterCrop *bool `json:"do_center_crop,omitempty"`
	DoNormalize  *bool `json:"do_normalize,omitempty"`
}

// ImageSizeConfig repraesentiert die Bildgroesse in verschiedenen Formaten
type ImageSizeConfig struct {
	Height       int `json:"height,omitempty"`
	Width        int `json:"width,omitempty"`
	ShortestEdge int `json:"shortest_edge,omitempty"`
}

// UnmarshalJSON akzeptiert eine Zahl oder ein Objekt.
func (s *ImageSizeConfig) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = ImageSizeConfig{ShortestEdge: n}
		return nil
	}

	type plain ImageSizeConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = ImageSizeConfig(p)
	return nil
}

// edge gibt die massgebliche Kantenlaenge zurueck.
func (s *ImageSizeConfig) edge() int {
	switch {
	case s == nil:
		return 0
	case s.ShortestEdge > 0:
		return s.ShortestEdge
	default:
		return min(s.Height, s.Width)
	}
}

// ParseTransformConfig parst JSON-Bytes einer preprocessor_config.json.
// Fehlende Felder uebernehmen die ImageNet-Defaults.
func ParseTransformConfig(data []byte) (Transform, error) {
	var config PreprocessorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return Transform{}, fmt.Errorf("%w: %v", ErrInvalidPreprocessor, err)
	}

	t := Transform{
		ResizeSize: config.Size.edge(),
		CropSize:   config.CropSize.edge(),
		Mean:       ImageNetMean,
		Std:        ImageNetStd,
		Resample:   ml.SamplingModeBilinear,
	}

	if config.DoResize != nil && !*config.DoResize {
		t.ResizeSize = 0
	}
	if config.DoCenterCrop != nil && !*config.DoCenterCrop {
		t.CropSize = 0
	}

	if config.Resample != nil {
		switch *config.Resample {
		case ResampleNearest:
			t.Resample = ml.SamplingModeNearest
		case ResampleBilinear:
			t.Resample = ml.SamplingModeBilinear
		case ResampleBicubic, ResampleLanczos:
			t.Resample = ml.SamplingModeBicubic
		default:
			return Transform{}, fmt.Errorf("%w: resample %d", ErrInvalidPreprocessor, *config.Resample)
		}
	}

	if config.DoNormalize != nil && !*config.DoNormalize {
		t.Mean, t.Std = NoNormMean, NoNormStd
	} else {
		if n := len(config.ImageMean); n > 0 && n != 3 {
			return Transform{}, fmt.Errorf("%w: image_mean has %d values", ErrInvalidPreprocessor, n)
		}
		if n := len(config.ImageStd); n > 0 && n != 3 {
			return Transform{}, fmt.Errorf("%w: image_std has %d values", ErrInvalidPreprocessor, n)
		}
		if len(config.ImageMean) == 3 {
			t.Mean = [3]float32(config.ImageMean)
		}
		if len(config.ImageStd) == 3 {
			t.Std = [3]float32(config.ImageStd)
		}
		for _, s := range t.Std {
			if s == 0 {
				return Transform{}, fmt.Errorf("%w: image_std contains 0", ErrInvalidPreprocessor)
			}
		}
	}

	return t, nil
}

// LoadTransformConfig laedt und parst eine preprocessor_config.json.
func LoadTransformConfig(path string) (Transform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transform{}, err
	}
	return ParseTransformConfig(data)
}
