//go:build NOTENSORFLOW
// +build NOTENSORFLOW

package backbone

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	"github.com/mattn/go-tflite"
)

// TFLite TensorFlow Lite 백본
type TFLite struct {
	cfg         Config
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
}

// NewTFLite TensorFlow Lite 백본 생성
func NewTFLite(cfg Config) (*TFLite, error) {
	m := tflite.NewModelFromFile(cfg.modelPath())
	if m == nil {
		return nil, fmt.Errorf("Fail to load tflite model: %s", cfg.modelPath())
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = 4
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, userData interface{}) {
		log.Errorf("backbone: %s", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(m, options)
	if interpreter == nil {
		options.Delete()
		m.Delete()
		return nil, fmt.Errorf("Fail to create tflite interpreter: %s", cfg.modelPath())
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		m.Delete()
		return nil, fmt.Errorf("Fail to allocate tflite tensors: %s", cfg.modelPath())
	}

	if in := interpreter.GetInputTensor(0); in.Type() != tflite.Float32 {
		interpreter.Delete()
		options.Delete()
		m.Delete()
		return nil, fmt.Errorf("Unsupported tflite input type: %v", in.Type())
	}

	return &TFLite{
		cfg:         cfg,
		model:       m,
		options:     options,
		interpreter: interpreter,
	}, nil
}

func openTFLite(cfg Config) (model.Backbone, error) {
	b, err := NewTFLite(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Name 백본 이름
func (t *TFLite) Name() string {
	return t.cfg.Name
}

// Features 단일 이미지의 특징맵
func (t *TFLite) Features(img *data.Image) (fm model.FeatureMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backbone: %s (inference panic)\nstack: %s", r, debug.Stack())
		}
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	input := t.interpreter.GetInputTensor(0)
	if input.Dim(1) != img.Height || input.Dim(2) != img.Width || input.Dim(3) != img.Channels {
		return fm, fmt.Errorf("Input shape [%d, %d, %d] does not match image [%d, %d, %d]",
			input.Dim(1), input.Dim(2), input.Dim(3), img.Height, img.Width, img.Channels)
	}
	copy(input.Float32s(), img.Pix)

	if status := t.interpreter.Invoke(); status != tflite.OK {
		return fm, fmt.Errorf("Fail to run tflite inference: %s", t.cfg.Name)
	}

	output := t.interpreter.GetOutputTensor(0)
	shape := make([]int64, output.NumDims())
	for i := range shape {
		shape[i] = int64(output.Dim(i))
	}

	values := append([]float32(nil), output.Float32s()...)

	return featureMap(shape, values)
}

// Close 인터프리터 해제
func (t *TFLite) Close() error {
	t.interpreter.Delete()
	t.options.Delete()
	t.model.Delete()
	return nil
}
