//go:build !NOTENSORFLOW
// +build !NOTENSORFLOW

package backbone

import (
	"fmt"
	"io/ioutil"
	"sync"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	tf "github.com/tensorflow/tensorflow/tensorflow/go"
)

// TensorFlow SavedModel 또는 frozen graph 백본
type TensorFlow struct {
	cfg     Config
	mu      sync.Mutex
	graph   *tf.Graph
	session *tf.Session
	input   tf.Output
	output  tf.Output
}

// NewTensorFlow TensorFlow 백본 생성
func NewTensorFlow(cfg Config) (*TensorFlow, error) {
	var (
		graph   *tf.Graph
		session *tf.Session
	)

	if cfg.Type == typeGraph {
		gByte, err := ioutil.ReadFile(cfg.modelPath())
		if err != nil {
			return nil, fmt.Errorf("Fail to read model: %s: %s", cfg.modelPath(), err)
		}

		graph = tf.NewGraph()
		if err := graph.Import(gByte, ""); err != nil {
			return nil, fmt.Errorf("Fail to import model: %s", err)
		}

		if session, err = tf.NewSession(graph, nil); err != nil {
			return nil, fmt.Errorf("Fail to make model session: %s", err)
		}
	} else {
		tags := cfg.Tags
		if len(tags) == 0 {
			tags = []string{"serve"}
		}

		tfModel, err := tf.LoadSavedModel(cfg.modelPath(), tags, nil)
		if err != nil {
			return nil, fmt.Errorf("Fail to load saved model: %s: %s", cfg.modelPath(), err)
		}
		graph, session = tfModel.Graph, tfModel.Session
	}

	in := graph.Operation(cfg.InputOperationName)
	if in == nil {
		session.Close()
		return nil, fmt.Errorf("Cannot find input operation: %s", cfg.InputOperationName)
	}

	out := graph.Operation(cfg.OutputOperationName)
	if out == nil {
		session.Close()
		return nil, fmt.Errorf("Cannot find output operation: %s", cfg.OutputOperationName)
	}

	return &TensorFlow{
		cfg:     cfg,
		graph:   graph,
		session: session,
		input:   in.Output(0),
		output:  out.Output(0),
	}, nil
}

func openTensorFlow(cfg Config) (model.Backbone, error) {
	b, err := NewTensorFlow(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Name 백본 이름
func (t *TensorFlow) Name() string {
	return t.cfg.Name
}

// Features 단일 이미지 배치 [1, H, W, C] 의 특징맵
func (t *TensorFlow) Features(img *data.Image) (model.FeatureMap, error) {
	var (
		inputImage *tf.Tensor
		results    []*tf.Tensor
		err        error
	)

	if inputImage, err = tf.NewTensor(img.Batch()); err != nil {
		return model.FeatureMap{}, err
	}

	t.mu.Lock()
	results, err = t.session.Run(
		map[tf.Output]*tf.Tensor{
			t.input: inputImage,
		},
		[]tf.Output{
			t.output,
		},
		nil,
	)
	t.mu.Unlock()
	if err != nil {
		return model.FeatureMap{}, err
	}

	return tensorFeatures(results[0])
}

// Close 세션 해제
func (t *TensorFlow) Close() error {
	return t.session.Close()
}

func tensorFeatures(result *tf.Tensor) (model.FeatureMap, error) {
	shape := result.Shape()

	var values []float32
	switch v := result.Value().(type) {
	case [][][][]float32:
		for _, rows := range v[0] {
			for _, cols := range rows {
				values = append(values, cols...)
			}
		}
	case [][]float32:
		values = v[0]
	default:
		return model.FeatureMap{}, fmt.Errorf("Unexpected backbone output type: %T", v)
	}

	return featureMap(shape, values)
}
