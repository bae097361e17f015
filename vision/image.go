// MODUL: image
// ZWECK: Bild-Lade- und Konvertierungsfunktionen fuer den Encoder
// INPUT: Dateipfad, Bytes oder io.Reader
// OUTPUT: ImageInput mit dekodiertem Bild, Tensoren im HWC Layout
// NEBENEFFEKTE: Dateisystem-Lesezugriff bei LoadImage
// ABHAENGIGKEITEN: golang.org/x/image (extern), image/jpeg, image/png, ml
// HINWEISE: Alle Bilder werden als RGBA konvertiert, Tensoren haben Rohwerte 0..255

package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	// Standard-Decoder registrieren
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ollama/filmvision/ml"
)

// ImageInput enthaelt ein dekodiertes Bild mit Metadaten
type ImageInput struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format ImageFormat
}

// LoadImage laedt ein Bild von einem Dateipfad
func LoadImage(path string) (*ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("datei lesen fehlgeschlagen: %w", err)
	}
	return LoadImageFromBytes(data)
}

// LoadImageFromBytes dekodiert ein Bild aus Byte-Daten
func LoadImageFromBytes(data []byte) (*ImageInput, error) {
	format := DetectFormat(data)
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bild dekodieren fehlgeschlagen: %w", err)
	}

	rgba := toRGBA(img)
	bounds := rgba.Bounds()
	return &ImageInput{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

// DecodeImage dekodiert ein Bild aus einem io.Reader
func DecodeImage(reader io.Reader) (*ImageInput, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("daten lesen fehlgeschlagen: %w", err)
	}
	return LoadImageFromBytes(data)
}

// toRGBA konvertiert ein beliebiges image.Image zu *image.RGBA mit Ursprung (0, 0)
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// ResizeImage skaliert ein Bild auf die angegebene Groesse
func ResizeImage(img *ImageInput, width, height int) (*ImageInput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ungueltige Groesse: %dx%d", width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img.Image, img.Image.Bounds(), draw.Src, nil)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
		Format: img.Format,
	}, nil
}

// Composite entfernt Alpha-Kanal durch weissen Hintergrund
func Composite(img *ImageInput) *ImageInput {
	return CompositeWithColor(img, color.White)
}

// CompositeWithColor entfernt Alpha-Kanal mit gegebener Hintergrundfarbe
func CompositeWithColor(img *ImageInput, bgColor color.Color) *ImageInput {
	bounds := img.Image.Bounds()
	dst := image.NewRGBA(bounds)

	draw.Draw(dst, bounds, &image.Uniform{bgColor}, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img.Image, bounds.Min, draw.Over)

	return &ImageInput{
		Image:  dst,
		Width:  img.Width,
		Height: img.Height,
		Format: img.Format,
	}
}

// ImageToTensor konvertiert ein Bild zu einem (H, W, 3) Tensor mit Rohwerten 0..255.
func ImageToTensor(img *ImageInput) *ml.Tensor {
	t := ml.New(img.Height, img.Width, 3)
	data := t.Floats()
	pix := img.Image.Pix
	stride := img.Image.Stride
	for y := range img.Height {
		for x := range img.Width {
			src := y*stride + x*4
			dst := (y*img.Width + x) * 3
			data[dst] = float32(pix[src])
			data[dst+1] = float32(pix[src+1])
			data[dst+2] = float32(pix[src+2])
		}
	}
	return t
}

// StackImages konvertiert gleich grosse Bilder zu einem (B, H, W, 3) Tensor.
func StackImages(imgs ...*ImageInput) (*ml.Tensor, error) {
	ts := make([]*ml.Tensor, len(imgs))
	for i, img := range imgs {
		ts[i] = ImageToTensor(img)
	}
	return ml.Stack(ts...)
}
