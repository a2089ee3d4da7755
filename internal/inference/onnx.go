// SPDX-License-Identifier: MIT
package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"lipsync/internal/log"
)

// ONNXOptions configures the ONNX Runtime environment.
type ONNXOptions struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search path.
	LibraryPath string
	// IntraOpThreads bounds the runtime's worker threads per call.
	// Zero means one thread, which keeps inference on the audio path's core.
	IntraOpThreads int
}

// ONNX runs the first input and first output of a model through ONNX
// Runtime. Tensors are sized per call since the time dimension varies.
type ONNX struct {
	opts ONNXOptions

	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	inputShape []int64
	path       string
}

var _ Engine = (*ONNX)(nil)

var envMu sync.Mutex

// NewONNX returns an engine with no model loaded. The runtime environment
// is initialised lazily on the first Load.
func NewONNX(opts ONNXOptions) *ONNX {
	if opts.IntraOpThreads <= 0 {
		opts.IntraOpThreads = 1
	}
	return &ONNX{opts: opts}
}

func (e *ONNX) initEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if e.opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(e.opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialise onnxruntime: %w", err)
	}
	return nil
}

// Load opens the model at path and replaces the active session.
func (e *ONNX) Load(path string) error {
	if err := e.initEnvironment(); err != nil {
		return fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("%w: inspect %s: %w", ErrModelLoad, path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("%w: %s has %d inputs and %d outputs", ErrModelLoad, path, len(inputs), len(outputs))
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("%w: session options: %w", ErrModelLoad, err)
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(e.opts.IntraOpThreads); err != nil {
		return fmt.Errorf("%w: intra-op threads: %w", ErrModelLoad, err)
	}

	in, out := inputs[0], outputs[0]
	session, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{out.Name}, options)
	if err != nil {
		return fmt.Errorf("%w: create session for %s: %w", ErrModelLoad, path, err)
	}

	e.mu.Lock()
	previous := e.session
	e.session = session
	e.inputName = in.Name
	e.outputName = out.Name
	e.inputShape = append([]int64(nil), in.Dimensions...)
	e.path = path
	e.mu.Unlock()

	if previous != nil {
		if err := previous.Destroy(); err != nil {
			log.Warnf("Inference: destroying previous session: %v", err)
		}
	}

	log.Infof("Inference: loaded %s (input %q %v, output %q %v)", path, in.Name, in.Dimensions, out.Name, out.Dimensions)
	return nil
}

// Loaded reports whether a model is ready.
func (e *ONNX) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// InputShape returns the model's declared input dimensions, with -1 for
// dynamic axes.
func (e *ONNX) InputShape() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.inputShape...)
}

// Run shapes input against the model, executes it and returns a copy of
// the output tensor's data.
func (e *ONNX) Run(input []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrModelNotLoaded
	}

	shape, err := ResolveShape(e.inputShape, len(input))
	if err != nil {
		return nil, err
	}

	tensor, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor %v: %w", shape, err)
	}
	defer tensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{tensor}, outputs); err != nil {
		return nil, fmt.Errorf("run %s: %w", e.path, err)
	}
	if outputs[0] == nil {
		return nil, nil
	}
	defer outputs[0].Destroy()

	result, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: output %q is not a float32 tensor", ErrTensorShapeMismatch, e.outputName)
	}
	data := result.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Close releases the active session. The engine can be loaded again
// afterwards.
func (e *ONNX) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.inputShape = nil
	return err
}
