package vision

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"

	"github.com/ollama/filmvision/fs/gguf"
	"github.com/ollama/filmvision/logutil"
	"github.com/ollama/filmvision/ml"
)

// fakeBackbone mittelt jedes Bild und skaliert den Mittelwert pro Ausgabekanal.
type fakeBackbone struct {
	dim int

	calls       atomic.Int32
	withContext atomic.Int32
	lastShape   atomic.Pointer[[]int]

	// wrongShape verletzt den (B, OutputDim) Vertrag
	wrongShape bool
}

func (b *fakeBackbone) Forward(image, context *ml.Tensor) (*ml.Tensor, error) {
	b.calls.Add(1)
	if context != nil {
		b.withContext.Add(1)
	}
	shape := image.Shape()
	b.lastShape.Store(&shape)

	if b.wrongShape {
		return ml.New(image.Dim(0), b.dim, 2), nil
	}

	batch := image.Dim(0)
	size := image.Len() / batch
	out := ml.New(batch, b.dim)
	src, dst := image.Floats(), out.Floats()
	for i := range batch {
		var sum float32
		for _, v := range src[i*size : (i+1)*size] {
			sum += v
		}
		for c := range b.dim {
			dst[i*b.dim+c] = sum / float32(size) * float32(c+1)
		}
	}
	return out, nil
}

func (b *fakeBackbone) OutputDim() int       { return b.dim }
func (b *fakeBackbone) Name() string         { return "fake" }
func (b *fakeBackbone) Transform() Transform { return Transform{Mean: NoNormMean, Std: NoNormStd} }

// countingConditioner zaehlt Aufrufe, merkt sich die letzte Eingabe und prueft die Kanalzahl.
type countingConditioner struct {
	channels int
	calls    atomic.Int32
	last     atomic.Pointer[ml.Tensor]
}

func (c *countingConditioner) Forward(features, context *ml.Tensor) (*ml.Tensor, error) {
	c.calls.Add(1)
	c.last.Store(features)
	if features.Dim(1) != c.channels {
		return nil, errors.New("conditioner: projector output has wrong width")
	}
	return features.Scale(2), nil
}

type fixture struct {
	backbone    *fakeBackbone
	conditioner *countingConditioner
}

const (
	testNativeDim  = 24
	testContextDim = 6
)

func newTestEncoder(t testing.TB, opts ...Option) (*Encoder, *fixture) {
	t.Helper()

	fx := &fixture{backbone: &fakeBackbone{dim: testNativeDim}}
	r := NewRegistry()
	r.Register("fake", func(BackboneOptions) (Backbone, error) { return fx.backbone, nil })

	base := []Option{
		WithRegistry(r),
		WithVariant("fake"),
		WithWeights(WeightsNone),
		WithContextDim(testContextDim),
		WithPreprocessor(Identity),
		WithConditionerFactory(func(channels, contextDim int) (Conditioner, error) {
			fx.conditioner = &countingConditioner{channels: channels}
			return fx.conditioner, nil
		}),
	}

	enc, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return enc, fx
}

func rawImage(b, h, w int) *ml.Tensor {
	x := ml.New(b, h, w, 3)
	for i := range x.Floats() {
		x.Floats()[i] = float32(i % 256)
	}
	return x
}

func TestEncodeUnconditioned(t *testing.T) {
	enc, fx := newTestEncoder(t)

	out, err := enc.Encode(Image{Pixels: rawImage(1, 300, 300)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Shape(); len(got) != 2 || got[0] != 1 || got[1] != testNativeDim {
		t.Errorf("shape = %v, erwartet [1 %d]", got, testNativeDim)
	}
	if fx.conditioner.calls.Load() != 0 || fx.backbone.withContext.Load() != 0 {
		t.Error("ohne Kontext duerfen keine Konditionierungs-Stufen laufen")
	}
	if got := *fx.backbone.lastShape.Load(); got[1] != 3 || got[2] != 300 || got[3] != 300 {
		t.Errorf("backbone bekam %v, erwartet channel-first", got)
	}
	if enc.OutputDim(false) != testNativeDim {
		t.Errorf("OutputDim(false) = %d", enc.OutputDim(false))
	}
}

func TestEncodeConditioned(t *testing.T) {
	enc, fx := newTestEncoder(t)

	out, err := enc.Encode(Image{Pixels: rawImage(1, 300, 300)}, ml.Full(0.1, 1, testContextDim))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Shape(); len(got) != 2 || got[0] != 1 || got[1] != ProjectionDim {
		t.Errorf("shape = %v, erwartet [1 %d]", got, ProjectionDim)
	}
	if n := fx.conditioner.calls.Load(); n != 1 {
		t.Errorf("conditioner %d mal aufgerufen, erwartet 1", n)
	}
	if n := fx.backbone.withContext.Load(); n != 1 {
		t.Errorf("backbone %d mal mit Kontext aufgerufen, erwartet 1", n)
	}
	if enc.OutputDim(true) != ProjectionDim || enc.Projector().InChannels() != testNativeDim {
		t.Errorf("projector %d -> %d", enc.Projector().InChannels(), enc.Projector().OutChannels())
	}
}

func TestEncodeProjectsOnce(t *testing.T) {
	enc, fx := newTestEncoder(t)
	img := Image{Pixels: rawImage(2, 12, 12)}

	if _, err := enc.Encode(img, ml.Full(0.5, 2, testContextDim)); err != nil {
		t.Fatal(err)
	}

	// Referenz: Backbone-Map (B, C, 1, 1) genau einmal durch den Projektor
	x, err := Canonicalize(img)
	if err != nil {
		t.Fatal(err)
	}
	features, err := fx.backbone.Forward(x, nil)
	if err != nil {
		t.Fatal(err)
	}
	fm, err := features.Reshape(2, testNativeDim, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	want, err := enc.Projector().Forward(fm)
	if err != nil {
		t.Fatal(err)
	}

	got := fx.conditioner.last.Load()
	if got == nil {
		t.Fatal("conditioner wurde nicht aufgerufen")
	}
	if !want.AllClose(got, 1e-5) {
		t.Errorf("conditioner-Eingabe %v weicht von einmal projizierter Backbone-Map %v ab", got.Shape(), want.Shape())
	}
}

func TestEncodeTraceUsesEncoderLogger(t *testing.T) {
	var buf bytes.Buffer
	enc, _ := newTestEncoder(t, WithLogger(logutil.NewLogger(&buf, logutil.LevelTrace)))

	if _, err := enc.Encode(Image{Pixels: rawImage(1, 8, 8)}, nil); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, msg := range []string{"msg=preprocessed", "msg=encoded", "level=TRACE"} {
		if !strings.Contains(out, msg) {
			t.Errorf("%q fehlt im Encoder-Log: %q", msg, out)
		}
	}
}

func TestEncodeProjectorHasNoBias(t *testing.T) {
	enc, _ := newTestEncoder(t)
	if enc.Projector().Bias != nil {
		t.Error("projector darf keinen Bias haben")
	}
	if enc.Projector().Weight.Max() == 0 && enc.Projector().Weight.Min() == 0 {
		t.Error("projector ist nicht initialisiert")
	}
}

func TestNewUnknownVariant(t *testing.T) {
	_, err := New(WithRegistry(NewRegistry()), WithVariant("b42"), WithWeights(WeightsNone))

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("Fehler = %v, erwartet *ConfigError mit ErrUnknownVariant", err)
	}
	if cfgErr.Field != "Variant" || cfgErr.Value != "b42" {
		t.Errorf("ConfigError = %+v", cfgErr)
	}
}

func TestNewMissingWeights(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", fakeFactory(4))

	_, err := New(WithRegistry(r), WithVariant("fake"), WithModelsDir(t.TempDir()))
	if !errors.Is(err, ErrMissingWeights) {
		t.Fatalf("Fehler = %v, erwartet ErrMissingWeights", err)
	}
}

func TestNewCorruptWeights(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", fakeFactory(4))

	path := filepath.Join(t.TempDir(), "fake.gguf")
	if err := os.WriteFile(path, []byte("GGUF\x03\x00"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(WithRegistry(r), WithVariant("fake"), WithWeights(WeightsDefault), WithWeightsPath(path))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, gguf.ErrUnsupported) {
		t.Fatalf("Fehler = %v, erwartet *ConfigError mit gguf.ErrUnsupported", err)
	}
	if cfgErr.Field != "WeightsPath" || errors.Is(err, ErrMissingWeights) {
		t.Errorf("ConfigError = %+v", cfgErr)
	}
}

func TestEncodeUsageErrorWithTop(t *testing.T) {
	enc, fx := newTestEncoder(t, WithIncludeTop(true))

	rapid.Check(t, func(t *rapid.T) {
		b := rapid.IntRange(1, 3).Draw(t, "batch")
		d := rapid.IntRange(1, 8).Draw(t, "dim")
		img := ml.Full(rapid.Float32Range(0, 255).Draw(t, "value"), b, 3, 4, 4)

		_, err := enc.Encode(Image{Pixels: img}, ml.New(b, d))
		var usageErr *UsageError
		if !errors.As(err, &usageErr) || !errors.Is(err, ErrContextWithTop) {
			t.Fatalf("Fehler = %v, erwartet *UsageError", err)
		}
	})

	if fx.backbone.calls.Load() != 0 {
		t.Error("backbone darf bei UsageError nicht laufen")
	}

	if _, err := enc.Encode(Image{Pixels: rawImage(1, 8, 8)}, nil); err != nil {
		t.Errorf("ohne Kontext erlaubt: %v", err)
	}
}

func TestEncodeRank3EqualsRank4(t *testing.T) {
	enc, _ := newTestEncoder(t)

	rapid.Check(t, func(t *rapid.T) {
		h := rapid.IntRange(4, 12).Draw(t, "h")
		w := rapid.IntRange(4, 12).Draw(t, "w")
		data := rapid.SliceOfN(rapid.Float32Range(0, 255), h*w*3, h*w*3).Draw(t, "pixels")
		single, _ := ml.FromFloats(data, h, w, 3)
		batched, _ := ml.FromFloats(data, 1, h, w, 3)

		var cond *ml.Tensor
		if rapid.Bool().Draw(t, "conditioned") {
			cond = ml.Full(rapid.Float32Range(-1, 1).Draw(t, "ctx"), 1, testContextDim)
		}

		a, err := enc.Encode(Image{Pixels: single}, cond)
		if err != nil {
			t.Fatal(err)
		}
		b, err := enc.Encode(Image{Pixels: batched}, cond)
		if err != nil {
			t.Fatal(err)
		}
		if !a.AllClose(b, 0) {
			t.Fatal("rang 3 und rang 4 liefern verschiedene Vektoren")
		}
	})
}

func TestEncodePoolingEquivalence(t *testing.T) {
	plain, _ := newTestEncoder(t)
	pooled, _ := newTestEncoder(t, WithPooling(true))

	rapid.Check(t, func(t *rapid.T) {
		b := rapid.IntRange(1, 3).Draw(t, "batch")
		img := Image{Pixels: rawImage(b, 6, 5)}

		var cond *ml.Tensor
		if rapid.Bool().Draw(t, "conditioned") {
			cond = ml.Full(0.5, b, testContextDim)
		}

		x, err := plain.Encode(img, cond)
		if err != nil {
			t.Fatal(err)
		}
		y, err := pooled.Encode(img, cond)
		if err != nil {
			t.Fatal(err)
		}
		if !x.AllClose(y, 0) {
			t.Fatal("pooling auf 1x1 muss numerisch identisch sein")
		}
	})
}

func TestEncodeInvalidContext(t *testing.T) {
	enc, _ := newTestEncoder(t)
	img := Image{Pixels: rawImage(2, 4, 4)}

	for _, ctx := range []*ml.Tensor{
		ml.New(testContextDim),
		ml.New(1, testContextDim),
		ml.New(2, testContextDim+1),
		ml.New(2, testContextDim, 1),
	} {
		_, err := enc.Encode(img, ctx)
		var shapeErr *ShapeError
		if !errors.As(err, &shapeErr) || !errors.Is(err, ErrInvalidContext) {
			t.Errorf("kontext %v: Fehler = %v, erwartet ErrInvalidContext", ctx.Shape(), err)
		}
	}
}

func TestEncodeBackboneContract(t *testing.T) {
	enc, fx := newTestEncoder(t)
	fx.backbone.wrongShape = true

	if _, err := enc.Encode(Image{Pixels: rawImage(1, 4, 4)}, nil); !errors.Is(err, ErrBackboneContract) {
		t.Errorf("Fehler = %v, erwartet ErrBackboneContract", err)
	}
}

func TestEncodeCanonicalizeErrors(t *testing.T) {
	enc, fx := newTestEncoder(t)

	var shapeErr *ShapeError
	if _, err := enc.EncodeTensor(ml.New(4, 4), nil); !errors.As(err, &shapeErr) {
		t.Errorf("rang 2: %v", err)
	}

	var rangeErr *RangeError
	if _, err := enc.EncodeTensor(ml.Full(-1, 1, 3, 4, 4), nil); !errors.As(err, &rangeErr) {
		t.Errorf("negativ: %v", err)
	}

	if fx.backbone.calls.Load() != 0 {
		t.Error("backbone darf bei Eingabefehlern nicht laufen")
	}
}

func TestEncodeTransformConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preprocessor_config.json")
	if err := os.WriteFile(path, []byte(`{"size": 16, "crop_size": 8}`), 0o644); err != nil {
		t.Fatal(err)
	}

	enc, fx := newTestEncoder(t, WithPreprocessor(nil), WithTransformConfig(path))
	if _, err := enc.Encode(Image{Pixels: rawImage(1, 20, 30)}, nil); err != nil {
		t.Fatal(err)
	}
	if got := *fx.backbone.lastShape.Load(); got[2] != 8 || got[3] != 8 {
		t.Errorf("backbone bekam %v, erwartet 8x8 nach dem Crop", got)
	}

	_, err := New(WithTransformConfig(filepath.Join(t.TempDir(), "fehlt.json")), WithWeights(WeightsNone),
		WithRegistry(func() *Registry {
			r := NewRegistry()
			r.Register("b3", fakeFactory(4))
			return r
		}()))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "TransformConfig" {
		t.Errorf("Fehler = %v, erwartet ConfigError fuer TransformConfig", err)
	}
}

func TestEncodeConcurrent(t *testing.T) {
	enc, _ := newTestEncoder(t)
	img := Image{Pixels: rawImage(2, 16, 16)}
	ctx := ml.Full(0.25, 2, testContextDim)

	want, err := enc.Encode(img, ctx)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			got, err := enc.Encode(img, ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if !want.AllClose(got, 0) {
				return errors.New("paralleles Encode lieferte ein anderes Ergebnis")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
