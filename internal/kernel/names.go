package kernel

import "github.com/born-ml/dispatch/internal/tensor"

// Operation identities.
const (
	Cumprod OpID = "Cumprod"
	Cumsum  OpID = "Cumsum"
)

// ScanInputNames is the input schema of the scan kernels.
var ScanInputNames = []string{"x"}

// ScanInputs is the input record shared by Cumprod and Cumsum.
type ScanInputs struct {
	X *tensor.RawTensor
}

// Named implements Inputs.
func (in ScanInputs) Named() NamedTensorMap {
	return NamedTensorMap{"x": in.X}
}

// ScanAttrs is the attribute record shared by Cumprod and Cumsum.
type ScanAttrs struct {
	// Axis to scan along; negative values count from the last axis.
	Axis int
	// Exclusive leaves each position's own value out of its aggregate.
	Exclusive bool
	// Reverse scans from the end of the axis towards the start.
	Reverse bool
}

// Named implements Attrs.
func (a ScanAttrs) Named() NamedAttrMap {
	return NamedAttrMap{
		"axis":      a.Axis,
		"exclusive": a.Exclusive,
		"reverse":   a.Reverse,
	}
}

// Validate implements Attrs. The axis range depends on the input rank and is
// checked by the kernel.
func (a ScanAttrs) Validate() error {
	return nil
}

type (
	// CumprodInputs are the inputs of Cumprod.
	CumprodInputs = ScanInputs
	// CumprodAttrs are the attributes of Cumprod.
	CumprodAttrs = ScanAttrs
	// CumsumInputs are the inputs of Cumsum.
	CumsumInputs = ScanInputs
	// CumsumAttrs are the attributes of Cumsum.
	CumsumAttrs = ScanAttrs
)
