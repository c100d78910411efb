package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// SessionConfig configures a model session.
type SessionConfig struct {
	NumThreads int // 0 lets ONNX Runtime decide
	GPU        GPUConfig
}

// Model is a single-input, single-output ONNX model with a float32 NCHW
// input.
type Model struct {
	path    string
	session *onnxruntime_go.DynamicAdvancedSession
	input   onnxruntime_go.InputOutputInfo
	output  onnxruntime_go.InputOutputInfo
	mu      sync.Mutex
}

// Open loads the model at path.
func Open(path string, config SessionConfig) (*Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", path, err)
	}
	if err := ValidateGPUConfig(config.GPU); err != nil {
		return nil, err
	}
	if err := Initialize(config.GPU.UseGPU); err != nil {
		return nil, err
	}

	input, output, err := modelInfo(path)
	if err != nil {
		return nil, err
	}

	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = sessionOptions.Destroy() }()

	if err := configureGPU(sessionOptions, config.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if config.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(config.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(path,
		[]string{input.Name}, []string{output.Name}, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Debug("Model loaded", "model_path", path, "input", input.Name, "input_shape", input.Dimensions,
		"output", output.Name, "gpu_enabled", config.GPU.UseGPU)
	return &Model{path: path, session: session, input: input, output: output}, nil
}

// modelInfo reads and validates the model's input and output description.
func modelInfo(path string) (onnxruntime_go.InputOutputInfo, onnxruntime_go.InputOutputInfo, error) {
	var none onnxruntime_go.InputOutputInfo
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(path)
	if err != nil {
		return none, none, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return none, none, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return none, none, fmt.Errorf("expected 1 output, got %d", len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return none, none, fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	return inputs[0], outputs[0], nil
}

// Path returns the model file.
func (m *Model) Path() string { return m.path }

// InputShape returns the declared input shape; dynamic axes are -1.
func (m *Model) InputShape() []int64 {
	return append([]int64(nil), m.input.Dimensions...)
}

// Infer runs the model on t and returns the float32 output.
func (m *Model) Infer(t Tensor) (Tensor, error) {
	if err := VerifyImageTensor(t); err != nil {
		return Tensor{}, fmt.Errorf("invalid tensor: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Tensor{}, errors.New("model session is closed")
	}

	in, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(t.Shape...), t.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = in.Destroy() }()

	outputs := []onnxruntime_go.Value{nil}
	if err := m.session.Run([]onnxruntime_go.Value{in}, outputs); err != nil {
		return Tensor{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	out, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return Tensor{}, errors.New("unexpected output tensor type")
	}
	return Tensor{
		Data:  append([]float32(nil), out.GetData()...),
		Shape: append([]int64(nil), out.GetShape()...),
	}, nil
}

// Close releases the session.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
