// MODUL: testdata
// ZWECK: Generierung von synthetischen Testbildern und Kontextvektoren fuer Benchmarks
// INPUT: Bildgroesse (width, height), Batch-Anzahl, Kontextbreite
// OUTPUT: JPEG-Bytes oder dekodierte Batches als (B, H, W, 3) Tensor
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: image/jpeg, x/exp/rand, vision, ml/nn
// HINWEISE: Gradienten-Muster fuer realistische Kompressionsraten; die Bilder
//           laufen durch denselben Decoder wie in der CLI

package benchmark

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/exp/rand"

	"github.com/ollama/filmvision/ml"
	"github.com/ollama/filmvision/ml/nn"
	"github.com/ollama/filmvision/vision"
)

// GenerateTestImage generiert ein JPEG-kodiertes Testbild mit festem Seed.
func GenerateTestImage(width, height int, seed uint64) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, createGradientImage(width, height, seed), &jpeg.Options{Quality: 85})
	return buf.Bytes()
}

// GenerateTestBatch dekodiert count Testbilder zu einem (B, H, W, 3) Tensor mit Rohwerten.
func GenerateTestBatch(width, height, count int) (*ml.Tensor, error) {
	imgs := make([]*vision.ImageInput, count)
	for i := range imgs {
		img, err := vision.LoadImageFromBytes(GenerateTestImage(width, height, uint64(i*1000)))
		if err != nil {
			return nil, err
		}
		imgs[i] = img
	}
	return vision.StackImages(imgs...)
}

// GenerateContext erzeugt einen (B, D) Kontext mit Werten in [-1, 1].
func GenerateContext(batch, dim int, seed uint64) *ml.Tensor {
	ctx := ml.New(batch, dim)
	nn.Uniform(ctx, 1, nn.NewSource(seed))
	return ctx
}

// createGradientImage erstellt ein Bild mit Farbgradient und Rauschen.
func createGradientImage(width, height int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := range height {
		for x := range width {
			nx := float64(x) / float64(width)
			ny := float64(y) / float64(height)

			noise := int(rng.Float64()*20 - 10)
			img.SetRGBA(x, y, color.RGBA{
				R: clampUint8(int(nx*255) + noise),
				G: clampUint8(int(ny*255) + noise),
				B: clampUint8(int((nx+ny)/2*255) + noise),
				A: 255,
			})
		}
	}

	return img
}

// clampUint8 begrenzt einen int-Wert auf den uint8-Bereich.
func clampUint8(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}
