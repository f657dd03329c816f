package engine

import (
	"maps"
	"sync"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/born-ml/dispatch/internal/kernel"
	"github.com/born-ml/dispatch/internal/tensor"
)

// TraceNode is one recorded kernel invocation.
type TraceNode struct {
	// Seq is the position of the node in the trace, starting at 0.
	Seq     int
	OpID    kernel.OpID
	Backend string
	// Scope is the path of the innermost scope the call ran in, e.g. "cumprod".
	Scope   string
	Inputs  map[string]tensor.ID
	Outputs []tensor.ID
	Attrs   kernel.NamedAttrMap

	inputs  []*tensor.RawTensor
	outputs []*tensor.RawTensor
}

// InputTensors returns the recorded input tensors. They stay alive until the
// trace is cleared.
func (n *TraceNode) InputTensors() []*tensor.RawTensor {
	return n.inputs
}

// OutputTensors returns the recorded output tensors. They stay alive until the
// trace is cleared.
func (n *TraceNode) OutputTensors() []*tensor.RawTensor {
	return n.outputs
}

// Trace records kernel invocations during the forward pass, in execution
// order, for consumption by a differentiation subsystem.
//
// Usage:
//
//	eng.Trace().StartRecording()
//	// ... run operations ...
//	for _, node := range eng.Trace().Nodes() { ... }
//	eng.Trace().Clear()
type Trace struct {
	mu        sync.Mutex
	session   string
	nodes     []*TraceNode
	recording bool
}

// NewTrace creates a new, non-recording trace.
func NewTrace() *Trace {
	return &Trace{
		session: uuid.NewString(),
		nodes:   make([]*TraceNode, 0, 64),
	}
}

// Session identifies the current contents of the trace. It changes on Clear.
func (t *Trace) Session() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// StartRecording enables recording.
func (t *Trace) StartRecording() {
	t.mu.Lock()
	t.recording = true
	t.mu.Unlock()
}

// StopRecording disables recording.
func (t *Trace) StopRecording() {
	t.mu.Lock()
	t.recording = false
	t.mu.Unlock()
}

// IsRecording returns true if the trace is currently recording.
func (t *Trace) IsRecording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording
}

// record appends a node if recording. The trace takes a reference on every
// input and output so they outlive their other holders. If any of them was
// freed concurrently, the references taken so far are dropped and no node is
// recorded.
func (t *Trace) record(op kernel.OpID, backend, scope string, inputs kernel.NamedTensorMap,
	outputs []*tensor.RawTensor, attrs kernel.Attrs) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.recording {
		return false
	}

	node := &TraceNode{
		Seq:     len(t.nodes),
		OpID:    op,
		Backend: backend,
		Scope:   scope,
		Inputs:  make(map[string]tensor.ID, len(inputs)),
		Outputs: make([]tensor.ID, 0, len(outputs)),
		Attrs:   maps.Clone(attrs.Named()),
	}
	for _, name := range inputs.Keys() {
		in := inputs[name]
		if !in.Retain() {
			node.release()
			klog.Warningf("trace: input %q of %s (tensor #%d) was released, node dropped", name, op, in.ID())
			return false
		}
		node.Inputs[name] = in.ID()
		node.inputs = append(node.inputs, in)
	}
	for _, out := range outputs {
		if !out.Retain() {
			node.release()
			klog.Warningf("trace: output tensor #%d of %s was released, node dropped", out.ID(), op)
			return false
		}
		node.Outputs = append(node.Outputs, out.ID())
		node.outputs = append(node.outputs, out)
	}
	t.nodes = append(t.nodes, node)
	return true
}

// release drops the references the node holds.
func (n *TraceNode) release() {
	for _, in := range n.inputs {
		in.Release()
	}
	for _, out := range n.outputs {
		out.Release()
	}
}

// Nodes returns a copy of the recorded nodes in execution order.
func (t *Trace) Nodes() []*TraceNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*TraceNode, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Len returns the number of recorded nodes.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// Clear drops every node and the references they hold.
// Recording state is preserved.
func (t *Trace) Clear() {
	t.mu.Lock()
	nodes := t.nodes
	t.nodes = make([]*TraceNode, 0, 64)
	t.session = uuid.NewString()
	t.mu.Unlock()

	for _, node := range nodes {
		node.release()
	}
}
