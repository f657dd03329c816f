// Package main provides the command-line front end of the dispatch engine.
//
// Usage:
//
//	born version
//	born kernels [--config file.yaml]
//	born cumprod [--axis N] [--exclusive] [--reverse] [--dtype float32] [--trace] '[[1,2],[3,4]]'
//	born cumsum  [same flags as cumprod] '[1,2,3]'
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/dispatch/engine"
	"github.com/born-ml/dispatch/ops"
	"github.com/born-ml/dispatch/tensor"
)

const version = "v0.1.0-dev"

type scanFunc func(e *engine.Engine, x any, opts ...ops.ScanOption) (*tensor.RawTensor, error)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		klog.Errorf("%v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return nil
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "version":
		fmt.Fprintf(stdout, "Born dispatch engine %s\n", version)
		return nil
	case "kernels":
		return runKernels(rest, stdout)
	case "cumprod":
		return runScan("cumprod", ops.Cumprod, rest, stdout)
	case "cumsum":
		return runScan("cumsum", ops.Cumsum, rest, stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stdout)
		return errors.Errorf("unknown command %q", cmd)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Born dispatch engine %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  kernels    List registered kernels of the active backend")
	fmt.Fprintln(w, "  cumprod    Cumulative product of a JSON literal")
	fmt.Fprintln(w, "  cumsum     Cumulative sum of a JSON literal")
}

func newEngine(configPath string, trace bool) (*engine.Engine, error) {
	cfg := engine.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = engine.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	cfg.Trace = cfg.Trace || trace
	return engine.NewFromConfig(cfg, nil)
}

func runKernels(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("kernels", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML engine config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, err := newEngine(*configPath, false)
	if err != nil {
		return err
	}
	backend := eng.BackendName()
	for _, cfg := range eng.Registry().Kernels(backend) {
		fmt.Fprintf(stdout, "%-10s %-6s inputs=%v\n", cfg.OpID, cfg.Backend, cfg.Inputs)
	}
	return nil
}

func runScan(name string, fn scanFunc, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML engine config")
	axis := fs.Int("axis", 0, "axis to scan along")
	exclusive := fs.Bool("exclusive", false, "exclude each element from its own aggregate")
	reverse := fs.Bool("reverse", false, "scan from the end of the axis")
	dtype := fs.String("dtype", "float32", "element type: float32, float64, int32, int64 or uint8")
	trace := fs.Bool("trace", false, "print the recorded trace")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.Errorf("%s: expected one JSON literal argument, got %d", name, fs.NArg())
	}

	x, err := parseLiteral(fs.Arg(0), *dtype)
	if err != nil {
		return errors.WithMessage(err, name)
	}
	eng, err := newEngine(*configPath, *trace)
	if err != nil {
		return err
	}

	out, err := fn(eng, x, ops.WithAxis(*axis), ops.Exclusive(*exclusive), ops.Reverse(*reverse))
	if err != nil {
		return err
	}
	defer out.Release()

	fmt.Fprintf(stdout, "shape=%v dtype=%s\n", out.Shape(), out.DType())
	fmt.Fprintln(stdout, formatValues(out))
	if eng.Trace().IsRecording() {
		for _, node := range eng.Trace().Nodes() {
			fmt.Fprintf(stdout, "trace[%d] %s on %s scope=%q inputs=%v outputs=%v attrs=%v\n",
				node.Seq, node.OpID, node.Backend, node.Scope, node.Inputs, node.Outputs, node.Attrs)
		}
		eng.Trace().Clear()
	}
	return nil
}

func formatValues(t *tensor.RawTensor) string {
	switch t.DType() {
	case tensor.Float32:
		return fmt.Sprint(t.AsFloat32())
	case tensor.Float64:
		return fmt.Sprint(t.AsFloat64())
	case tensor.Int32:
		return fmt.Sprint(t.AsInt32())
	case tensor.Int64:
		return fmt.Sprint(t.AsInt64())
	case tensor.Uint8:
		return fmt.Sprint(t.AsUint8())
	case tensor.Bool:
		return fmt.Sprint(t.AsBool())
	default:
		return "?"
	}
}
