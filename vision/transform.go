// MODUL: transform
// ZWECK: Vorverarbeitung kanonisierter Bilder (Resize, Center-Crop, Normalisierung)
// INPUT: Tensor (B, 3, H, W) mit Werten in [0, 1]
// OUTPUT: Tensor (B, 3, Crop, Crop) normalisiert mit mean/std
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern), ml
// HINWEISE: Resize skaliert die kuerzere Kante (mit Antialiasing beim Verkleinern)

package vision

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/ollama/filmvision/ml"
)

// Standard-Normalisierungswerte
var (
	// ImageNet Default (ResNet, EfficientNet, etc.)
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}

	// Keine Normalisierung
	NoNormMean = [3]float32{0.0, 0.0, 0.0}
	NoNormStd  = [3]float32{1.0, 1.0, 1.0}
)

// Transform ist die versionierte Vorverarbeitung eines vortrainierten Backbones.
type Transform struct {
	ResizeSize int // kuerzere Kante nach dem Resize, 0 = kein Resize
	CropSize   int // Kantenlaenge des Center-Crops, 0 = kein Crop
	Mean       [3]float32
	Std        [3]float32
	Resample   ml.SamplingMode
}

// ImageNetTransform erzeugt die ImageNet-Vorverarbeitung mit bikubischem Resize.
func ImageNetTransform(resize, crop int) Transform {
	return Transform{
		ResizeSize: resize,
		CropSize:   crop,
		Mean:       ImageNetMean,
		Std:        ImageNetStd,
		Resample:   ml.SamplingModeBicubic,
	}
}

func (t Transform) String() string {
	return fmt.Sprintf("resize=%d crop=%d %s", t.ResizeSize, t.CropSize, t.Resample)
}

// Preprocess implementiert Preprocessor.
func (t Transform) Preprocess(x *ml.Tensor) (*ml.Tensor, error) {
	if x.Rank() != 4 || x.Dim(1) != 3 {
		return nil, &ShapeError{Op: "preprocess", Expected: "(B, 3, H, W)", Actual: x.Shape(), Err: ErrInvalidChannels}
	}

	images := make([]*ml.Tensor, x.Dim(0))
	for i := range images {
		img, err := x.Index(i)
		if err != nil {
			return nil, err
		}

		if t.ResizeSize > 0 {
			h, w := resizedShape(img.Dim(1), img.Dim(2), t.ResizeSize)
			img = resizeCHW(img, h, w, t.Resample)
		}

		if t.CropSize > 0 {
			if img, err = centerCropCHW(img, t.CropSize); err != nil {
				return nil, err
			}
		}

		images[i] = normalizeCHW(img, t.Mean, t.Std)
	}

	return ml.Stack(images...)
}

// resizedShape skaliert die kuerzere Kante auf size und behaelt das Seitenverhaeltnis.
func resizedShape(h, w, size int) (int, int) {
	if h <= w {
		return size, max(1, int(float64(size)*float64(w)/float64(h)))
	}
	return max(1, int(float64(size)*float64(h)/float64(w))), size
}

func scaler(mode ml.SamplingMode) draw.Scaler {
	switch mode {
	case ml.SamplingModeNearest:
		return draw.NearestNeighbor
	case ml.SamplingModeBilinear:
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// resizeCHW skaliert ein (3, H, W) Bild ueber ein 16-bit RGBA-Zwischenbild.
func resizeCHW(img *ml.Tensor, h, w int, mode ml.SamplingMode) *ml.Tensor {
	srcH, srcW := img.Dim(1), img.Dim(2)
	if srcH == h && srcW == w {
		return img
	}

	data := img.Floats()
	plane := srcH * srcW
	src := image.NewRGBA64(image.Rect(0, 0, srcW, srcH))
	for p := range plane {
		o := p * 8
		for c := range 3 {
			v := uint16(math.Round(float64(clamp01(data[c*plane+p])) * 0xffff))
			src.Pix[o+2*c] = uint8(v >> 8)
			src.Pix[o+2*c+1] = uint8(v)
		}
		src.Pix[o+6], src.Pix[o+7] = 0xff, 0xff
	}

	dst := image.NewRGBA64(image.Rect(0, 0, w, h))
	scaler(mode).Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := ml.New(3, h, w)
	outData := out.Floats()
	for p := range h * w {
		o := p * 8
		for c := range 3 {
			v := uint16(dst.Pix[o+2*c])<<8 | uint16(dst.Pix[o+2*c+1])
			outData[c*h*w+p] = float32(v) / 0xffff
		}
	}
	return out
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

// centerCropCHW schneidet einen zentrierten size x size Bereich aus.
func centerCropCHW(img *ml.Tensor, size int) (*ml.Tensor, error) {
	h, w := img.Dim(1), img.Dim(2)
	if size > h || size > w {
		return nil, &ShapeError{Op: "center crop", Expected: fmt.Sprintf("at least %dx%d", size, size), Actual: img.Shape(), Err: ErrImageTooSmall}
	}

	top := int(math.RoundToEven(float64(h-size) / 2))
	left := int(math.RoundToEven(float64(w-size) / 2))

	src := img.Floats()
	out := ml.New(3, size, size)
	dst := out.Floats()
	for c := range 3 {
		for y := range size {
			row := src[(c*h+top+y)*w+left:]
			copy(dst[(c*size+y)*size:(c*size+y+1)*size], row[:size])
		}
	}
	return out, nil
}

// normalizeCHW wendet (x - mean) / std pro Kanal an.
func normalizeCHW(img *ml.Tensor, mean, std [3]float32) *ml.Tensor {
	out := img.Clone()
	data := out.Floats()
	plane := img.Dim(1) * img.Dim(2)
	for c := range 3 {
		row := data[c*plane : (c+1)*plane]
		for i := range row {
			row[i] = (row[i] - mean[c]) / std[c]
		}
	}
	return out
}
