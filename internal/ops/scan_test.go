package ops

import (
	"sync"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dispatch/internal/backend/cpu"
	"github.com/born-ml/dispatch/internal/engine"
	"github.com/born-ml/dispatch/internal/kernel"
	"github.com/born-ml/dispatch/internal/parallel"
	"github.com/born-ml/dispatch/internal/tensor"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(kernel.NewRegistry())
	require.NoError(t, e.RegisterBackend(cpu.NewWithConfig(parallel.Sequential())))
	return e
}

func values[T tensor.DType](t *testing.T, raw *tensor.RawTensor) []T {
	t.Helper()
	return must.M1(tensor.As[T](raw)).Data()
}

func TestCumprodScenarios(t *testing.T) {
	e := newEngine(t)
	x := []float32{1, 2, 3, 4}

	out, err := Cumprod(e, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 6, 24}, values[float32](t, out))

	out, err = Cumprod(e, x, Exclusive(true))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 2, 6}, values[float32](t, out))

	out, err = Cumprod(e, x, Reverse(true))
	require.NoError(t, err)
	assert.Equal(t, []float32{24, 24, 12, 4}, values[float32](t, out))

	out, err = Cumprod(e, [][]float32{{1, 2}, {3, 4}}, WithAxis(0))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3, 8}, values[float32](t, out))
}

func TestCumprodDefaults(t *testing.T) {
	assert.Equal(t, kernel.ScanAttrs{Axis: 0, Exclusive: false, Reverse: false}, DefaultScanAttrs())

	e := newEngine(t)
	x := [][]int32{{1, 2}, {3, 4}}
	implicit, err := Cumprod(e, x)
	require.NoError(t, err)
	explicit, err := Cumprod(e, x, WithAxis(0), Exclusive(false), Reverse(false))
	require.NoError(t, err)
	assert.Equal(t, values[int32](t, explicit), values[int32](t, implicit))
}

func TestCumprodInclusiveIsPrefixProduct(t *testing.T) {
	e := newEngine(t)
	data := [][]float64{{1.5, -2, 3, 0.5}, {2, 2, 2, 2}, {-1, 4, 0.25, 3}}

	for _, axis := range []int{0, 1} {
		out, err := Cumprod(e, data, WithAxis(axis))
		require.NoError(t, err)
		got := must.M1(tensor.As[float64](out))
		for r := 0; r < 3; r++ {
			for c := 0; c < 4; c++ {
				want := 1.0
				for k := 0; k <= []int{r, c}[axis]; k++ {
					if axis == 0 {
						want *= data[k][c]
					} else {
						want *= data[r][k]
					}
				}
				assert.InDelta(t, want, got.At(r, c), 1e-12, "axis %d at [%d,%d]", axis, r, c)
			}
		}
	}
}

func TestCumprodExclusiveStartsWithIdentity(t *testing.T) {
	e := newEngine(t)
	data := [][]int64{{7, -3, 9}, {0, 5, 2}}

	out, err := Cumprod(e, data, WithAxis(1), Exclusive(true))
	require.NoError(t, err)
	got := must.M1(tensor.As[int64](out))
	assert.Equal(t, int64(1), got.At(0, 0))
	assert.Equal(t, int64(1), got.At(1, 0))

	out, err = Cumprod(e, data, WithAxis(1), Exclusive(true), Reverse(true))
	require.NoError(t, err)
	got = must.M1(tensor.As[int64](out))
	assert.Equal(t, int64(1), got.At(0, 2))
	assert.Equal(t, int64(1), got.At(1, 2))
}

func reverseRows(rows [][]float32) [][]float32 {
	out := make([][]float32, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row
	}
	return out
}

func TestCumprodReverseMatchesReversedInput(t *testing.T) {
	e := newEngine(t)
	data := [][]float32{{1, 2}, {3, 4}, {5, 6}}

	reversed, err := Cumprod(e, data, Reverse(true))
	require.NoError(t, err)

	forward, err := Cumprod(e, reverseRows(data))
	require.NoError(t, err)
	fwd := values[float32](t, forward)
	// Reverse the scanned rows back.
	flipped := reverseRows([][]float32{fwd[0:2], fwd[2:4], fwd[4:6]})
	var want []float32
	for _, row := range flipped {
		want = append(want, row...)
	}
	assert.Equal(t, want, values[float32](t, reversed))
}

func TestCumprodOfOnesIsOnes(t *testing.T) {
	e := newEngine(t)
	ones := [][]float32{{1, 1, 1}, {1, 1, 1}}
	for _, exclusive := range []bool{false, true} {
		for _, reverse := range []bool{false, true} {
			for _, axis := range []int{0, 1} {
				out, err := Cumprod(e, ones, WithAxis(axis), Exclusive(exclusive), Reverse(reverse))
				require.NoError(t, err)
				assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, values[float32](t, out))
			}
		}
	}
}

func TestCumprodAxisOutOfRange(t *testing.T) {
	e := newEngine(t)
	_, err := Cumprod(e, [][]float32{{1, 2}}, WithAxis(2))
	require.ErrorIs(t, err, tensor.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "cumprod")
}

func TestCumprodMissingKernel(t *testing.T) {
	reg := kernel.NewRegistry()
	e := engine.New(reg)
	require.NoError(t, e.RegisterBackend(cpu.New()))
	require.NoError(t, reg.Unregister(kernel.Cumprod, cpu.Name))
	before := e.Memory()

	_, err := Cumprod(e, []float32{1, 2})
	require.ErrorIs(t, err, kernel.ErrKernelNotFound)
	assert.Contains(t, err.Error(), "Cumprod")
	assert.Contains(t, err.Error(), "cpu")
	assert.Equal(t, before, e.Memory(), "the converted literal is released")
}

func TestCumprodInvalidLiteral(t *testing.T) {
	e := newEngine(t)
	_, err := Cumprod(e, [][]float32{{1, 2}, {3}})
	require.ErrorIs(t, err, tensor.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "argument 'x' passed to 'cumprod'")

	_, err = Cumprod(nil, []float32{1})
	require.ErrorIs(t, err, tensor.ErrInvalidArgument)

	_, err = Cumprod(e, (*tensor.Tensor[float32])(nil))
	require.ErrorIs(t, err, tensor.ErrInvalidArgument)
	require.NotErrorIs(t, err, engine.ErrKernelFailed)
	assert.Equal(t, 0, e.Memory().NumScopes)
}

func TestCumprodTensorInputIsNotReleased(t *testing.T) {
	e := newEngine(t)
	x := must.M1(e.Convert([]float32{1, 2, 3}, "x", "test"))

	out, err := Cumprod(e, x)
	require.NoError(t, err)
	assert.False(t, x.IsReleased())
	assert.Equal(t, []float32{1, 2, 3}, values[float32](t, x))
	assert.Equal(t, []float32{1, 2, 6}, values[float32](t, out))
	assert.NotEqual(t, x.ID(), out.ID())
}

func TestCumprodReleasesConvertedLiteral(t *testing.T) {
	e := newEngine(t)
	out, err := Cumprod(e, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Memory().NumTensors, "only the output stays alive")
	out.Release()
	assert.Equal(t, 0, e.Memory().NumTensors)
}

func TestCumprodTraceNode(t *testing.T) {
	e := newEngine(t)
	e.Trace().StartRecording()

	out, err := Cumprod(e, []int32{2, 3}, Reverse(true))
	require.NoError(t, err)

	nodes := e.Trace().Nodes()
	require.Len(t, nodes, 1)
	node := nodes[0]
	assert.Equal(t, kernel.Cumprod, node.OpID)
	assert.Equal(t, "cumprod", node.Scope)
	assert.Equal(t, kernel.NamedAttrMap{"axis": 0, "exclusive": false, "reverse": true}, node.Attrs)
	assert.Equal(t, []tensor.ID{out.ID()}, node.Outputs)
	require.Len(t, node.InputTensors(), 1)
	assert.False(t, node.InputTensors()[0].IsReleased(), "the trace keeps the converted input alive")
	assert.Equal(t, []int32{2, 3}, values[int32](t, node.InputTensors()[0]))
}

func TestCumsum(t *testing.T) {
	e := newEngine(t)
	out, err := Cumsum(e, []int{1, 2, 3, 4}, Exclusive(true))
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 3, 6}, values[int32](t, out))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"cumprod", "cumsum"}, Names())
	assert.Equal(t, "cumprod", cumprodOp.Name())
	assert.Panics(t, func() { Op("cumprod", scanBody(kernel.Cumprod, "cumprod")) })
}

func TestOpRecoversPanics(t *testing.T) {
	e := newEngine(t)
	op := &Operation[int]{name: "exploding", body: func(_ *engine.Scope, _ int) (*tensor.RawTensor, error) {
		panic("bad body")
	}}
	_, err := op.Call(e, 0)
	require.ErrorIs(t, err, engine.ErrKernelFailed)
	assert.Contains(t, err.Error(), "bad body")
	assert.Equal(t, 0, e.Memory().NumScopes)
}

func TestCumprodConcurrentOnOneEngine(t *testing.T) {
	e := engine.New(kernel.NewRegistry())
	require.NoError(t, e.RegisterBackend(cpu.NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16})))
	ones := make([]float32, 4096)
	for i := range ones {
		ones[i] = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				out, err := Cumprod(e, ones, Reverse(j%2 == 0))
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, ones, out.AsFloat32())
				out.Release()
			}
		}()
	}
	wg.Wait()

	mem := e.Memory()
	assert.Equal(t, 0, mem.NumScopes)
	assert.Equal(t, 0, mem.NumTensors)
	assert.Equal(t, 0, mem.NumBytes)
}

func TestCumprodInsideUnbalancedTidy(t *testing.T) {
	e := newEngine(t)

	_, err := e.Tidy("outer", func() ([]*tensor.RawTensor, error) {
		e.StartScope("inner")
		_, err := Cumprod(e, []float32{1, 2, 3})
		return nil, err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, e.Memory().NumScopes)
	assert.Equal(t, 0, e.Memory().NumTensors)

	results, err := e.Tidy("outer", func() ([]*tensor.RawTensor, error) {
		e.StartScope("inner")
		out, err := Cumprod(e, []float32{1, 2, 3})
		if err != nil {
			return nil, err
		}
		return []*tensor.RawTensor{out}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 6}, values[float32](t, results[0]))
	assert.Equal(t, 1, e.Memory().NumTensors)
	results[0].Release()
	assert.Equal(t, engine.MemoryInfo{}, e.Memory())
}

func TestCumprodOutputOwnedByEnclosingScope(t *testing.T) {
	e := newEngine(t)
	e.Trace().StartRecording()

	s := e.StartScope("model")
	out, err := Cumprod(e, []float32{2, 2})
	require.NoError(t, err)
	assert.Equal(t, "model/cumprod", e.Trace().Nodes()[0].Scope)
	e.Trace().Clear()

	require.NoError(t, e.EndScope(s))
	assert.True(t, out.IsReleased())
	assert.Equal(t, engine.MemoryInfo{}, e.Memory())
}
