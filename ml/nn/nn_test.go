package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ollama/filmvision/ml"
)

func mustTensor(t testing.TB, data []float32, shape ...int) *ml.Tensor {
	t.Helper()
	tt, err := ml.FromFloats(data, shape...)
	require.NoError(t, err)
	return tt
}

func TestLinearForward(t *testing.T) {
	l := NewLinear(2, 3, true)
	copy(l.Weight.Floats(), []float32{1, 0, 0, 1, 1, 1})
	copy(l.Bias.Floats(), []float32{0.5, 0, -1})

	y, err := l.Forward(mustTensor(t, []float32{2, 3}, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, y.Shape())
	assert.InDeltaSlice(t, []float32{2.5, 3, 4}, y.Floats(), 1e-6)

	_, err = l.Forward(ml.New(1, 4))
	assert.ErrorIs(t, err, ml.ErrShape)
}

// naiveConv ist die direkte Referenz-Faltung.
func naiveConv(c *Conv2D, x *ml.Tensor) []float32 {
	batch, h, w := x.Dim(0), x.Dim(2), x.Dim(3)
	kh, kw := c.Weight.Dim(2), c.Weight.Dim(3)
	inC, outC := c.InChannels(), c.OutChannels()
	groups := c.groups()
	inG, outG := inC/groups, outC/groups
	s, p := c.stride(), c.Padding
	outH, outW := (h+2*p-kh)/s+1, (w+2*p-kw)/s+1
	wt, src := c.Weight.Floats(), x.Floats()

	var out []float32
	for b := range batch {
		for o := range outC {
			g := o / outG
			for oy := range outH {
				for ox := range outW {
					var sum float32
					for ci := range inG {
						for ky := range kh {
							for kx := range kw {
								iy, ix := oy*s-p+ky, ox*s-p+kx
								if iy < 0 || iy >= h || ix < 0 || ix >= w {
									continue
								}
								sum += wt[((o*inG+ci)*kh+ky)*kw+kx] * src[((b*inC+g*inG+ci)*h+iy)*w+ix]
							}
						}
					}
					if c.Bias != nil {
						sum += c.Bias.Floats()[o]
					}
					out = append(out, sum)
				}
			}
		}
	}
	return out
}

func TestConv2DMatchesReference(t *testing.T) {
	cases := []struct {
		name                            string
		in, out, kernel, stride, groups int
		bias                            bool
	}{
		{"pointwise", 4, 6, 1, 1, 1, false},
		{"3x3", 3, 5, 3, 1, 1, true},
		{"3x3 stride 2", 3, 4, 3, 2, 1, false},
		{"depthwise 5x5", 4, 4, 5, 2, 4, false},
		{"grouped", 4, 6, 3, 1, 2, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := NewSource(7)
			c := NewConv2D(tc.in, tc.out, tc.kernel, tc.stride, tc.groups, tc.bias)
			KaimingNormal(c.Weight, c.FanIn(), src)
			if c.Bias != nil {
				Uniform(c.Bias, 0.5, src)
			}

			x := ml.New(2, tc.in, 7, 6)
			Uniform(x, 1, src)

			y, err := c.Forward(x)
			require.NoError(t, err)
			assert.InDeltaSlice(t, naiveConv(c, x), y.Floats(), 1e-4)
		})
	}
}

func TestConv2DRejectsWrongChannels(t *testing.T) {
	c := NewConv2D(3, 8, 3, 1, 1, false)
	_, err := c.Forward(ml.New(1, 4, 8, 8))
	assert.ErrorIs(t, err, ml.ErrShape)
}

func TestBatchNormIdentity(t *testing.T) {
	bn := NewBatchNorm2D(2, 0)
	x := mustTensor(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, 1, 2, 2, 2)
	y, err := bn.Forward(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, x.Floats(), y.Floats(), 1e-6)

	copy(bn.RunningMean.Floats(), []float32{1, 0})
	copy(bn.RunningVar.Floats(), []float32{4, 1})
	y, err = bn.Forward(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.5, 1, 1.5, 5, 6, 7, 8}, y.Floats(), 1e-6)
}

func TestActivations(t *testing.T) {
	x := mustTensor(t, []float32{-1, 0, 2}, 3)
	assert.Equal(t, []float32{0, 0, 2}, ReLU(x).Floats())
	assert.InDelta(t, 0.5, Sigmoid(x).Floats()[1], 1e-7)
	assert.InDelta(t, 2/(1+math.Exp(-2)), SiLU(x).Floats()[2], 1e-6)
}

func TestSqueezeExcitationZeroWeightsHalves(t *testing.T) {
	// Null-Gewichte: Gate = sigmoid(0) = 0.5
	se := NewSqueezeExcitation(3, 2)
	x := ml.Full(4, 1, 3, 2, 2)
	y, err := se.Forward(x)
	require.NoError(t, err)
	for _, v := range y.Floats() {
		assert.InDelta(t, 2, v, 1e-6)
	}
}

func TestFiLMZeroInitIsIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		batch := rapid.IntRange(1, 3).Draw(rt, "batch")
		channels := rapid.IntRange(1, 8).Draw(rt, "channels")
		ctxDim := rapid.IntRange(1, 8).Draw(rt, "ctx")
		hw := rapid.IntRange(1, 4).Draw(rt, "hw")

		values := rapid.SliceOfN(rapid.Float32Range(-10, 10), batch*channels*hw*hw, batch*channels*hw*hw).Draw(rt, "x")
		ctxValues := rapid.SliceOfN(rapid.Float32Range(-10, 10), batch*ctxDim, batch*ctxDim).Draw(rt, "c")

		x, err := ml.FromFloats(values, batch, channels, hw, hw)
		require.NoError(rt, err)
		ctx, err := ml.FromFloats(ctxValues, batch, ctxDim)
		require.NoError(rt, err)

		y, err := NewFiLM(ctxDim, channels).Forward(x, ctx)
		require.NoError(rt, err)
		if !y.AllClose(x, 0) {
			rt.Fatalf("FiLM mit Null-Gewichten ist nicht die Identitaet")
		}
	})
}

func TestFiLMModulation(t *testing.T) {
	f := NewFiLM(1, 2)
	copy(f.Mult.Weight.Floats(), []float32{1, 0})
	copy(f.Add.Bias.Floats(), []float32{0, 3})

	x := mustTensor(t, []float32{1, 2}, 1, 2)
	ctx := mustTensor(t, []float32{2}, 1, 1)
	y, err := f.Forward(x, ctx)
	require.NoError(t, err)
	// Kanal 0: (1+2)*1 + 0, Kanal 1: (1+0)*2 + 3
	assert.InDeltaSlice(t, []float32{3, 5}, y.Floats(), 1e-6)

	_, err = f.Forward(x, ml.New(2, 1))
	assert.ErrorIs(t, err, ml.ErrShape)
}

func TestKaimingNormalDeterministic(t *testing.T) {
	a, b := ml.New(64, 32), ml.New(64, 32)
	KaimingNormal(a, 32, NewSource(1))
	KaimingNormal(b, 32, NewSource(1))
	assert.True(t, a.AllClose(b, 0))

	s := a.Stats()
	assert.InDelta(t, 0, s.Mean, 0.05)
}
