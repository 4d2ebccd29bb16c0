package ml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Tensor names written by the standard scikit-learn ONNX converter.
var (
	ONNXInputName  = "float_input"
	ONNXOutputName = "output_label"
)

// ONNXClassifier runs an exported classifier through ONNX Runtime. The session
// keeps its tensors bound, so Predict calls are serialised.
type ONNXClassifier struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[int64]
	width   int

	mu sync.Mutex
}

var ortInit struct {
	once sync.Once
	err  error
}

func initRuntime(modelDir string) error {
	ortInit.once.Do(func() {
		libPath := resolveSharedLibraryPath(modelDir)
		if libPath == "" {
			ortInit.err = errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if !ort.IsInitialized() {
			if err := ort.InitializeEnvironment(); err != nil {
				ortInit.err = fmt.Errorf("initialize onnxruntime: %w", err)
			}
		}
	})
	return ortInit.err
}

// LoadONNX opens the model at path for rows of width features.
func LoadONNX(path string, width int) (*ONNXClassifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, decodeErr(KindIO, path, err)
	}
	if err := initRuntime(filepath.Dir(path)); err != nil {
		return nil, decodeErr(KindRuntime, path, err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(width)))
	if err != nil {
		return nil, decodeErr(KindRuntime, path, fmt.Errorf("allocate input tensor: %w", err))
	}
	output, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		input.Destroy()
		return nil, decodeErr(KindRuntime, path, fmt.Errorf("allocate output tensor: %w", err))
	}
	session, err := ort.NewAdvancedSession(
		path,
		[]string{ONNXInputName},
		[]string{ONNXOutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, decodeErr(KindFormat, path, fmt.Errorf("create onnx session: %w", err))
	}
	return &ONNXClassifier{session: session, input: input, output: output, width: width}, nil
}

func (c *ONNXClassifier) Predict(features []float64) (int, error) {
	if err := checkWidth(features, c.width); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.input.GetData()
	for i, x := range features {
		data[i] = float32(x)
	}
	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}
	label := c.output.GetData()[0]
	if label != LabelHealthy && label != LabelRisk {
		return 0, fmt.Errorf("onnx model returned non-binary label %d", label)
	}
	return int(label), nil
}

// Close releases the session and its tensors.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.session.Destroy(), c.input.Destroy(), c.output.Destroy())
}

// resolveSharedLibraryPath prefers ONNXRUNTIME_SHARED_LIBRARY_PATH and otherwise
// probes the model directory and common install locations.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}
	names := []string{
		"libonnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
