package classifier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
)

func findModelPath() string {
	paths := []string{
		"models/eye_state.tflite",
		"../models/eye_state.tflite",
		"../../models/eye_state.tflite",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func TestInfo_Check(t *testing.T) {
	valid := Info{
		InputShape:  []int{1, 150, 150, 3},
		InputType:   "float32",
		OutputShape: []int{1, 1},
		OutputType:  "float32",
	}

	tests := []struct {
		name    string
		mutate  func(*Info)
		wantErr bool
	}{
		{"valid float output", func(i *Info) {}, false},
		{"valid uint8 output", func(i *Info) { i.OutputType = "uint8" }, false},
		{"flat output", func(i *Info) { i.OutputShape = []int{1} }, false},
		{"wrong input size", func(i *Info) { i.InputShape = []int{1, 224, 224, 3} }, true},
		{"nchw input", func(i *Info) { i.InputShape = []int{1, 3, 150, 150} }, true},
		{"quantized input", func(i *Info) { i.InputType = "uint8" }, true},
		{"two outputs", func(i *Info) { i.OutputShape = []int{1, 2} }, true},
		{"empty output", func(i *Info) { i.OutputShape = nil }, true},
		{"int32 output", func(i *Info) { i.OutputType = "int32" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := valid
			info.InputShape = append([]int(nil), valid.InputShape...)
			info.OutputShape = append([]int(nil), valid.OutputShape...)
			tc.mutate(&info)

			err := info.Check()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecodeFloat(t *testing.T) {
	tests := []struct {
		in   []float32
		want float32
		err  bool
	}{
		{[]float32{0.73}, 0.73, false},
		{[]float32{1.2}, 1, false},
		{[]float32{-0.1}, 0, false},
		{[]float32{0.1, 0.9}, 0, true},
		{nil, 0, true},
	}
	for _, tc := range tests {
		got, err := decodeFloat(tc.in)
		if (err != nil) != tc.err {
			t.Errorf("decodeFloat(%v) err = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("decodeFloat(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDecodeUint8(t *testing.T) {
	tests := []struct {
		in   uint8
		want float32
	}{
		{0, 0},
		{255, 1},
		{51, 0.2},
	}
	for _, tc := range tests {
		got, err := decodeUint8([]uint8{tc.in})
		if err != nil {
			t.Fatalf("decodeUint8(%d): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("decodeUint8(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := decodeUint8([]uint8{1, 2}); err == nil {
		t.Error("expected error for two values")
	}
}

func TestVolume(t *testing.T) {
	if volume(nil) != 0 {
		t.Error("volume(nil) should be 0")
	}
	if volume([]int{1, 150, 150, 3}) != 67500 {
		t.Error("volume of input shape wrong")
	}
}

func TestFuncAndConstant(t *testing.T) {
	p, err := Constant(0.8).Predict(eyestate.Tensor{})
	if err != nil || p != 0.8 {
		t.Errorf("Constant(0.8) = %v, %v", p, err)
	}

	boom := errors.New("boom")
	_, err = Func(func(eyestate.Tensor) (float32, error) { return 0, boom }).Predict(eyestate.Tensor{})
	if !errors.Is(err, boom) {
		t.Errorf("Func error = %v, want boom", err)
	}
}

func TestLoad_MissingModel(t *testing.T) {
	_, err := Load(Config{ModelPath: "/nonexistent/model.tflite"})
	if !errors.Is(err, eyestate.ErrModelLoad) {
		t.Fatalf("Load error = %v, want ErrModelLoad", err)
	}
	if eyestate.ExitCode(err) != eyestate.ExitModel {
		t.Errorf("exit code = %d, want %d", eyestate.ExitCode(err), eyestate.ExitModel)
	}
}

func TestLoad_CorruptModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tflite")
	if err := os.WriteFile(path, []byte("definitely not a flatbuffer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(Config{ModelPath: path}); !errors.Is(err, eyestate.ErrModelLoad) {
		t.Fatalf("Load error = %v, want ErrModelLoad", err)
	}
	if _, err := Inspect(path); !errors.Is(err, eyestate.ErrModelLoad) {
		t.Fatalf("Inspect error = %v, want ErrModelLoad", err)
	}
}

func TestTFLite_Predict(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("eye_state.tflite not found, skipping test")
	}

	c, err := Load(Config{ModelPath: modelPath, Threads: 1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer c.Close()

	if err := c.Info().Check(); err != nil {
		t.Errorf("loaded model fails Check: %v", err)
	}

	tensor := eyestate.NewTensor(eyestate.InputHeight, eyestate.InputWidth, eyestate.InputChannels)
	for i := range tensor.Data {
		tensor.Data[i] = 128
	}
	p, err := c.Predict(tensor)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if p < 0 || p > 1 {
		t.Errorf("probability %v outside [0,1]", p)
	}

	if _, err := c.Predict(eyestate.NewTensor(10, 10, 3)); err == nil {
		t.Error("expected error for wrong tensor shape")
	}

	c.Close()
	if err := c.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if _, err := c.Predict(tensor); err == nil {
		t.Error("expected error after Close")
	}
}
