package kernel

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dispatch/internal/tensor"
)

func noopKernel(_ *Context) ([]*tensor.RawTensor, error) {
	return nil, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Config{OpID: Cumprod, Backend: "cpu", Inputs: ScanInputNames, Func: noopKernel}))

	cfg, err := r.Lookup(Cumprod, "cpu")
	require.NoError(t, err)
	assert.Equal(t, Cumprod, cfg.OpID)
	assert.Equal(t, []string{"x"}, cfg.Inputs)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryLookupMissing(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Config{OpID: Cumprod, Backend: "cpu", Func: noopKernel}))

	_, err := r.Lookup(Cumprod, "webgpu")
	require.ErrorIs(t, err, ErrKernelNotFound)

	var notFound *KernelNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, Cumprod, notFound.OpID)
	assert.Equal(t, "webgpu", notFound.Backend)
	assert.Contains(t, err.Error(), "Cumprod")
	assert.Contains(t, err.Error(), "webgpu")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	cfg := Config{OpID: Cumsum, Backend: "cpu", Func: noopKernel}
	require.NoError(t, r.Register(cfg))
	require.ErrorIs(t, r.Register(cfg), ErrDuplicateKernel)
}

func TestRegistryRejectsIncompleteConfigs(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register(Config{Backend: "cpu", Func: noopKernel}))
	require.Error(t, r.Register(Config{OpID: Cumsum, Func: noopKernel}))
	require.Error(t, r.Register(Config{OpID: Cumsum, Backend: "cpu"}))
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Config{OpID: Cumsum, Backend: "cpu", Func: noopKernel}))
	require.NoError(t, r.Unregister(Cumsum, "cpu"))
	require.ErrorIs(t, r.Unregister(Cumsum, "cpu"), ErrKernelNotFound)
	_, err := r.Lookup(Cumsum, "cpu")
	require.ErrorIs(t, err, ErrKernelNotFound)
}

func TestSupportedOpsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Config{OpID: Cumsum, Backend: "cpu", Func: noopKernel}))
	require.NoError(t, r.Register(Config{OpID: Cumprod, Backend: "cpu", Func: noopKernel}))
	require.NoError(t, r.Register(Config{OpID: Cumprod, Backend: "other", Func: noopKernel}))

	assert.Equal(t, []OpID{Cumprod, Cumsum}, r.SupportedOps("cpu"))
	assert.Equal(t, []OpID{Cumprod}, r.SupportedOps("other"))
}

func TestRegistryConcurrentLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Config{OpID: Cumprod, Backend: "cpu", Func: noopKernel}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := r.Lookup(Cumprod, "cpu")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestCheckInputs(t *testing.T) {
	x, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	cfg := &Config{OpID: Cumprod, Inputs: ScanInputNames}

	require.NoError(t, cfg.CheckInputs(NamedTensorMap{"x": x}))

	err := cfg.CheckInputs(NamedTensorMap{"x": x, "y": x})
	require.ErrorIs(t, err, ErrInvalidKernelInput)
	var invalid *InvalidKernelInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, []string{"x"}, invalid.Expected)
	assert.Equal(t, []string{"x", "y"}, invalid.Actual)

	require.ErrorIs(t, cfg.CheckInputs(NamedTensorMap{"input": x}), ErrInvalidKernelInput)
	require.ErrorIs(t, cfg.CheckInputs(NamedTensorMap{}), ErrInvalidKernelInput)
	require.ErrorIs(t, cfg.CheckInputs(NamedTensorMap{"x": nil}), ErrInvalidKernelInput)
}

func TestTypedRejectsWrongAttrs(t *testing.T) {
	called := false
	fn := Typed(func(_ *Context, _ ScanAttrs) ([]*tensor.RawTensor, error) {
		called = true
		return nil, nil
	})

	_, err := fn(NewContext(Cumprod, nil, NoAttrs{}, nil, nil))
	require.ErrorIs(t, err, ErrInvalidKernelInput)
	assert.False(t, called)

	_, err = fn(NewContext(Cumprod, nil, ScanAttrs{Axis: 1}, nil, nil))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestScanAttrsNamed(t *testing.T) {
	attrs := ScanAttrs{Axis: -1, Exclusive: true}
	assert.Equal(t, NamedAttrMap{"axis": -1, "exclusive": true, "reverse": false}, attrs.Named())
	assert.Equal(t, NamedTensorMap{"x": nil}, ScanInputs{}.Named())
}
