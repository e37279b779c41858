package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXClassifier runs the exported model through ONNX Runtime. The session
// reuses pre-allocated tensors, so runs are serialised.
type ONNXClassifier struct {
	path     string
	metadata *Metadata

	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// InitRuntime loads the ONNX Runtime shared library once per process.
func InitRuntime(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// ShutdownRuntime releases the ONNX Runtime environment.
func ShutdownRuntime() {
	if ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			slog.Warn("Failed to destroy ONNX environment", "error", err)
		}
	}
}

func NewONNXClassifier(modelPath, metadataPath string) (*ONNXClassifier, error) {
	if !ort.IsInitialized() {
		return nil, fmt.Errorf("ONNX runtime not initialized")
	}

	metadata, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Info("Model loaded",
		"path", modelPath,
		"input_size", metadata.InputSize(),
		"layout", metadata.Layout,
		"classes", metadata.Classes,
		"parameters", metadata.Parameters)

	return &ONNXClassifier{
		path:         modelPath,
		metadata:     metadata,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (c *ONNXClassifier) IsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

type runResult struct {
	prediction *Prediction
	err        error
}

// Predict decodes and classifies one image. If ctx ends first the call
// returns ctx.Err(); the in-flight run still completes in the background
// because ONNX Runtime cannot be interrupted.
func (c *ONNXClassifier) Predict(ctx context.Context, data []byte) (*Prediction, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	input := ToTensor(img, c.metadata.ImageSize, c.metadata.Layout)

	done := make(chan runResult, 1)
	go func() {
		p, err := c.run(input)
		done <- runResult{prediction: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.prediction, res.err
	}
}

func (c *ONNXClassifier) run(input []float32) (*Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, ErrNotLoaded
	}

	copy(c.inputTensor.GetData(), input)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := c.outputTensor.GetData()
	outputs := make([]float32, len(out))
	copy(outputs, out)

	return ToPrediction(outputs, c.metadata.Classes)
}

func (c *ONNXClassifier) Info() ModelInfo {
	return ModelInfo{
		Path:       c.path,
		Parameters: c.metadata.Parameters,
		InputSize:  c.metadata.InputSize(),
		Classes:    c.metadata.Classes,
		Loaded:     c.IsLoaded(),
	}
}

// Close releases the session and tensors. Later calls to Predict fail with
// ErrNotLoaded.
func (c *ONNXClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
}
