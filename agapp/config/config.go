// Package config 애플리케이션 설정 (config.yaml + 명령행 옵션)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/constants"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	"gopkg.in/yaml.v2"
)

// Config 학습, 평가, 서비스 설정
type Config struct {
	TrainDir        string  `yaml:"trainDir"`
	TestDir         string  `yaml:"testDir"`
	ModelPath       string  `yaml:"modelPath"`
	Architecture    string  `yaml:"architecture"`
	BackboneDir     string  `yaml:"backboneDir"`
	ImageSize       int     `yaml:"imageSize"`
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batchSize"`
	LearningRate    float64 `yaml:"learningRate"`
	ValidationSplit float64 `yaml:"validationSplit"`
	Seed            int64   `yaml:"seed"`
	CacheSize       int     `yaml:"cacheSize"`
	Progress        bool    `yaml:"progress"`
	LogLevel        string  `yaml:"logLevel"`

	ResultDriver string `yaml:"resultDriver"`
	ResultDSN    string `yaml:"resultDSN"`
	ResultTable  string `yaml:"resultTable"`

	Listen string `yaml:"listen"`
	// api 로 평가할 수 있는 폴더의 최상위 디렉토리
	EvaluationRoot string `yaml:"evaluationRoot"`
}

// Overrides 명령행에서 지정한 값, 0 값은 무시
type Overrides struct {
	TrainDir        string
	TestDir         string
	ModelPath       string
	Architecture    string
	BackboneDir     string
	Epochs          int
	BatchSize       int
	LearningRate    float64
	ValidationSplit float64
	Seed            int64
	LogLevel        string
	ResultDriver    string
	ResultDSN       string
	Listen          string
	EvaluationRoot  string
}

// Default 기본 설정
func Default() *Config {
	return &Config{
		TrainDir:     constants.TrainPath,
		TestDir:      constants.TestPath,
		ModelPath:    constants.SavedModelPath,
		Architecture: constants.DefaultArchitecture,
		BackboneDir:  filepath.Join(constants.BackbonesPath, constants.DefaultArchitecture),
		ImageSize:    constants.ImageSize,
		Epochs:       constants.TrainEpochs,
		BatchSize:    constants.BatchSize,
		LearningRate: constants.LearningRate,
		CacheSize:    constants.FeatureCacheSize,
		Progress:     true,
		LogLevel:     "info",
		ResultDriver: "sqlite3",
		ResultTable:  "evaluations",
		Listen:       ":18080",

		EvaluationRoot: constants.DataSetPath,
	}
}

// Load 설정 파일을 읽어 기본 설정 위에 적용, path 가 비어 있으면 기본 설정
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Fail to read config: %w", err)
	}

	if err := yaml.UnmarshalStrict(b, cfg); err != nil {
		return nil, fmt.Errorf("Fail to parse config: %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyOverrides 0 이 아닌 값으로 설정 변경
func (c *Config) ApplyOverrides(o Overrides) {
	if o.TrainDir != "" {
		c.TrainDir = o.TrainDir
	}
	if o.TestDir != "" {
		c.TestDir = o.TestDir
	}
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.Architecture != "" {
		c.Architecture = o.Architecture
	}
	if o.BackboneDir != "" {
		c.BackboneDir = o.BackboneDir
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.ValidationSplit > 0 {
		c.ValidationSplit = o.ValidationSplit
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.ResultDriver != "" {
		c.ResultDriver = o.ResultDriver
	}
	if o.ResultDSN != "" {
		c.ResultDSN = o.ResultDSN
	}
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.EvaluationRoot != "" {
		c.EvaluationRoot = o.EvaluationRoot
	}
}

// Validate 실행 가능한 설정인지 확인
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("Empty config")
	}
	if _, err := model.LookupArchitecture(c.Architecture); err != nil {
		return err
	}
	if c.ModelPath == "" {
		return errors.New("Empty model path")
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("imageSize must be > 0 (got %d)", c.ImageSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batchSize must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learningRate must be > 0 (got %g)", c.LearningRate)
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("validationSplit must be in [0, 1) (got %g)", c.ValidationSplit)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cacheSize must be >= 0 (got %d)", c.CacheSize)
	}
	if c.ResultDSN != "" && c.ResultTable == "" {
		return errors.New("Empty result table")
	}

	return nil
}
