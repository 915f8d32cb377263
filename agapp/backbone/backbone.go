// Package backbone 사전 학습 된 특징 추출 모델 (TensorFlow, TensorFlow Lite)
package backbone

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/event"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	"gopkg.in/yaml.v2"
)

var log = event.Log

// ErrUnsupportedType 현재 빌드에 포함되지 않은 백본 종류 (NOTENSORFLOW 태그로 tflite 선택)
var ErrUnsupportedType = errors.New("Unsupported backbone type in this build")

const (
	typeSavedModel = "savedmodel"
	typeGraph      = "graph"
	typeTFLite     = "tflite"
)

// Config 백본 모델 설정정보 (<dir>/config.yaml)
type Config struct {
	Name                string   `yaml:"name"`
	Type                string   `yaml:"type"`
	Tags                []string `yaml:"tags"`
	ModelFile           string   `yaml:"modelFile"`
	InputOperationName  string   `yaml:"inputOperationName"`
	OutputOperationName string   `yaml:"outputOperationName"`
	Threads             int      `yaml:"threads"`

	dir string
}

// LoadConfig 백본 디렉토리의 config.yaml 로드
func LoadConfig(dir string) (Config, error) {
	var cfg Config

	cfgFile := path.Join(dir, "config.yaml")
	cfgBytes, err := ioutil.ReadFile(cfgFile)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(cfgBytes, &cfg); err != nil {
		return cfg, fmt.Errorf("Fail to parse backbone config: %s: %w", cfgFile, err)
	}

	cfg.dir = dir
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("Empty backbone name in %s", c.dir)
	}

	switch c.Type {
	case typeSavedModel:
		if c.InputOperationName == "" || c.OutputOperationName == "" {
			return fmt.Errorf("Backbone %s needs input and output operation names", c.Name)
		}
	case typeGraph:
		if c.ModelFile == "" || c.InputOperationName == "" || c.OutputOperationName == "" {
			return fmt.Errorf("Backbone %s needs model file, input and output operation names", c.Name)
		}
	case typeTFLite:
		if c.ModelFile == "" {
			return fmt.Errorf("Backbone %s needs model file", c.Name)
		}
	default:
		return fmt.Errorf("Unknown backbone type: %s", c.Type)
	}

	return nil
}

func (c Config) modelPath() string {
	if c.ModelFile == "" {
		return c.dir
	}
	return path.Join(c.dir, c.ModelFile)
}

// Open 설정 정보에 따라 백본 생성
func Open(dir string) (model.Backbone, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		return nil, err
	}

	log.Infof("backbone: loading %s (%s) from %s", cfg.Name, cfg.Type, dir)

	if cfg.Type == typeTFLite {
		return openTFLite(cfg)
	}

	return openTensorFlow(cfg)
}

// featureMap [1, h, w, c] 출력을 특징맵으로 변환
func featureMap(shape []int64, values []float32) (model.FeatureMap, error) {
	switch len(shape) {
	case 4:
		if shape[0] != 1 {
			return model.FeatureMap{}, fmt.Errorf("Unexpected batch size: %d", shape[0])
		}
		return model.FeatureMap{
			Height:   int(shape[1]),
			Width:    int(shape[2]),
			Channels: int(shape[3]),
			Data:     values,
		}, nil
	case 2:
		// pooling 이 포함 된 백본 출력 [1, c]
		return model.FeatureMap{Height: 1, Width: 1, Channels: int(shape[1]), Data: values}, nil
	default:
		return model.FeatureMap{}, fmt.Errorf("Unexpected backbone output shape: %v", shape)
	}
}
