// Package classifier runs the eye-state TensorFlow Lite model.
//
// The model takes one float32 NHWC tensor of shape (1, 150, 150, 3) and
// produces a single value: the probability that the eye is open.
package classifier

import (
	"fmt"
	"sync"

	"github.com/mattn/go-tflite"
	"github.com/teslashibe/go-eyestate/pkg/debug"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
)

// Config holds classifier configuration.
type Config struct {
	ModelPath string // Path to the .tflite file
	Threads   int    // Interpreter threads (default 1)
}

// DefaultConfig returns single-threaded inference on models/eye_state.tflite.
func DefaultConfig() Config {
	return Config{
		ModelPath: "models/eye_state.tflite",
		Threads:   1,
	}
}

// TFLite is a loaded interpreter. It is safe for concurrent use; calls to
// Predict are serialized.
type TFLite struct {
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
	info    Info

	mu     sync.Mutex
	closed bool
}

// Load reads the model, allocates tensors and checks the input and output
// signature. Every failure is reported as eyestate.ErrModelLoad.
func Load(cfg Config) (*TFLite, error) {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}

	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot read %s", eyestate.ErrModelLoad, cfg.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(cfg.Threads)
	options.SetErrorReporter(func(msg string, _ interface{}) {
		debug.Log("⚠️  tflite: %s\n", msg)
	}, nil)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: cannot create interpreter for %s", eyestate.ErrModelLoad, cfg.ModelPath)
	}

	c := &TFLite{model: model, options: options, interp: interp}
	if status := interp.AllocateTensors(); status != tflite.OK {
		c.Close()
		return nil, fmt.Errorf("%w: allocate tensors: status %v", eyestate.ErrModelLoad, status)
	}

	c.info = describe(interp)
	if err := c.info.Check(); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %s: %v", eyestate.ErrModelLoad, cfg.ModelPath, err)
	}
	return c, nil
}

// Info returns the model's tensor signature.
func (c *TFLite) Info() Info {
	return c.info
}

// Predict runs one inference and returns the open-eye probability in [0, 1].
func (c *TFLite) Predict(t eyestate.Tensor) (float32, error) {
	if !t.Valid() || !sameShape(t.Shape(), ExpectedInputShape) {
		return 0, fmt.Errorf("input shape %v, want %v", t.Shape(), ExpectedInputShape)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, fmt.Errorf("classifier closed")
	}

	input := c.interp.GetInputTensor(0)
	if n := copy(input.Float32s(), t.Data); n != t.Len() {
		return 0, fmt.Errorf("copied %d of %d input values", n, t.Len())
	}

	if status := c.interp.Invoke(); status != tflite.OK {
		return 0, fmt.Errorf("invoke: status %v", status)
	}

	output := c.interp.GetOutputTensor(0)
	switch output.Type() {
	case tflite.Float32:
		return decodeFloat(output.Float32s())
	case tflite.UInt8:
		return decodeUint8(output.UInt8s())
	default:
		return 0, fmt.Errorf("unsupported output type %v", output.Type())
	}
}

// Close releases the interpreter and model. Safe to call twice.
func (c *TFLite) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.interp.Delete()
	c.options.Delete()
	c.model.Delete()
	return nil
}

// decodeFloat returns the single output probability, clamped to [0, 1].
func decodeFloat(values []float32) (float32, error) {
	if len(values) != 1 {
		return 0, fmt.Errorf("output has %d values, want 1", len(values))
	}
	return eyestate.ClampProbability(values[0]), nil
}

// decodeUint8 maps a quantized 0..255 output onto [0, 1].
func decodeUint8(values []uint8) (float32, error) {
	if len(values) != 1 {
		return 0, fmt.Errorf("output has %d values, want 1", len(values))
	}
	return float32(values[0]) / 255, nil
}

// ExpectedInputShape is the only input signature Load accepts.
var ExpectedInputShape = []int{1, eyestate.InputHeight, eyestate.InputWidth, eyestate.InputChannels}

// Info describes the first input and output tensors of a model.
type Info struct {
	InputShape  []int  `json:"input_shape"`
	InputType   string `json:"input_type"`
	OutputShape []int  `json:"output_shape"`
	OutputType  string `json:"output_type"`
}

func describe(interp *tflite.Interpreter) Info {
	in := interp.GetInputTensor(0)
	out := interp.GetOutputTensor(0)
	return Info{
		InputShape:  dims(in),
		InputType:   typeName(in.Type()),
		OutputShape: dims(out),
		OutputType:  typeName(out.Type()),
	}
}

func dims(t *tflite.Tensor) []int {
	if t == nil {
		return nil
	}
	shape := make([]int, t.NumDims())
	for i := range shape {
		shape[i] = t.Dim(i)
	}
	return shape
}

func typeName(tt tflite.TensorType) string {
	switch tt {
	case tflite.Float32:
		return "float32"
	case tflite.UInt8:
		return "uint8"
	case tflite.Int8:
		return "int8"
	case tflite.Int32:
		return "int32"
	default:
		return fmt.Sprintf("type(%d)", int(tt))
	}
}

// Check reports whether the signature is one Predict can serve: a float32
// (1, 150, 150, 3) input and a single float32 or uint8 output value.
func (i Info) Check() error {
	if !sameShape(i.InputShape, ExpectedInputShape) {
		return fmt.Errorf("input shape %v, want %v", i.InputShape, ExpectedInputShape)
	}
	if i.InputType != "float32" {
		return fmt.Errorf("input type %s, want float32", i.InputType)
	}
	if volume(i.OutputShape) != 1 {
		return fmt.Errorf("output shape %v, want a single value", i.OutputShape)
	}
	if i.OutputType != "float32" && i.OutputType != "uint8" {
		return fmt.Errorf("output type %s, want float32 or uint8", i.OutputType)
	}
	return nil
}

// String renders the signature on one line.
func (i Info) String() string {
	return fmt.Sprintf("input %v %s, output %v %s", i.InputShape, i.InputType, i.OutputShape, i.OutputType)
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func volume(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Inspect loads the model at path just long enough to read its signature.
// Unlike Load it does not reject unexpected signatures.
func Inspect(path string) (Info, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return Info{}, fmt.Errorf("%w: cannot read %s", eyestate.ErrModelLoad, path)
	}
	defer model.Delete()

	interp := tflite.NewInterpreter(model, nil)
	if interp == nil {
		return Info{}, fmt.Errorf("%w: cannot create interpreter for %s", eyestate.ErrModelLoad, path)
	}
	defer interp.Delete()

	if status := interp.AllocateTensors(); status != tflite.OK {
		return Info{}, fmt.Errorf("%w: allocate tensors: status %v", eyestate.ErrModelLoad, status)
	}
	return describe(interp), nil
}
