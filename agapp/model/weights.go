package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/valyala/gozstd"
	"gopkg.in/yaml.v2"
)

const (
	configFile  = "config.yaml"
	weightsFile = "weights.bin"
)

// LoadMode 가중치 로드 방식
type LoadMode int

const (
	// Exact 모든 텐서의 이름과 형태가 일치해야 함
	Exact LoadMode = iota
	// ByName 이름이 일치하는 텐서만 로드, 나머지는 초기값 유지
	ByName
)

func (m LoadMode) String() string {
	if m == ByName {
		return "by-name"
	}
	return "exact"
}

// Tensor 가중치 파일의 이름 있는 텐서
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

type weightsRecord struct {
	Architecture string
	Tensors      []Tensor
}

// LoadResult 가중치 로드 결과
type LoadResult struct {
	Mode LoadMode
	// 복원 된 파라미터
	Loaded []string
	// 파일에 없어 초기값을 유지한 파라미터
	Skipped []string
	// 모델에 없는 파일의 텐서
	Ignored []string
}

// WeightLoadError 가중치 파일이 모델 구조와 맞지 않음
type WeightLoadError struct {
	Path       string
	Mode       LoadMode
	Missing    []string
	Unexpected []string
	Mismatched []string
	Err        error
}

func (e *WeightLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Fail to load weights (%s): %s: %s", e.Mode, e.Path, e.Err)
	}

	var reasons []string
	if len(e.Missing) > 0 {
		reasons = append(reasons, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		reasons = append(reasons, "unexpected "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.Mismatched) > 0 {
		reasons = append(reasons, "shape mismatch "+strings.Join(e.Mismatched, ", "))
	}

	return fmt.Sprintf("Fail to load weights (%s): %s: %s", e.Mode, e.Path, strings.Join(reasons, "; "))
}

func (e *WeightLoadError) Unwrap() error {
	return e.Err
}

// WriteTensors 텐서 목록을 가중치 파일로 저장 (gob + zstd)
func WriteTensors(filePath, arch string, tensors []Tensor) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(weightsRecord{Architecture: arch, Tensors: tensors}); err != nil {
		return fmt.Errorf("Fail to encode weights: %w", err)
	}

	tmp := filePath + ".tmp"
	if err := ioutil.WriteFile(tmp, gozstd.Compress(nil, buf.Bytes()), 0644); err != nil {
		return err
	}

	return os.Rename(tmp, filePath)
}

// ReadTensors 가중치 파일의 텐서 목록
func ReadTensors(filePath string) (string, []Tensor, error) {
	compressed, err := ioutil.ReadFile(filePath)
	if err != nil {
		return "", nil, err
	}

	raw, err := gozstd.Decompress(nil, compressed)
	if err != nil {
		return "", nil, fmt.Errorf("Fail to decompress weights: %w", err)
	}

	var rec weightsRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return "", nil, fmt.Errorf("Fail to decode weights: %w", err)
	}

	for _, t := range rec.Tensors {
		if prod(t.Shape) != len(t.Data) {
			return "", nil, fmt.Errorf("Tensor %s size %d does not match shape %v", t.Name, len(t.Data), t.Shape)
		}
	}

	return rec.Architecture, rec.Tensors, nil
}

// SaveWeights 학습 가능한 파라미터를 저장
func (m *Model) SaveWeights(filePath string) error {
	var tensors []Tensor
	for _, p := range m.Params() {
		tensors = append(tensors, Tensor{
			Name:  p.Name,
			Shape: append([]int(nil), p.Shape...),
			Data:  append([]float64(nil), p.Value...),
		})
	}

	return WriteTensors(filePath, m.Arch.Name, tensors)
}

// LoadWeights 가중치 파일을 모델에 로드
//
// 오류가 발생하면 모델의 가중치는 변경되지 않음
func LoadWeights(m *Model, filePath string, mode LoadMode) (LoadResult, error) {
	_, tensors, err := ReadTensors(filePath)
	if err != nil {
		return LoadResult{}, &WeightLoadError{Path: filePath, Mode: mode, Err: err}
	}

	live := make(map[string]Param)
	for _, p := range m.Params() {
		live[p.Name] = p
	}

	stored := make(map[string]Tensor)
	for _, t := range tensors {
		stored[t.Name] = t
	}

	res := LoadResult{Mode: mode}
	lerr := &WeightLoadError{Path: filePath, Mode: mode}

	for name, t := range stored {
		p, ok := live[name]
		if !ok {
			res.Ignored = append(res.Ignored, name)
			continue
		}
		if !sameShape(p.Shape, t.Shape) {
			lerr.Mismatched = append(lerr.Mismatched, fmt.Sprintf("%s %v != %v", name, t.Shape, p.Shape))
			continue
		}
		res.Loaded = append(res.Loaded, name)
	}

	for name := range live {
		if _, ok := stored[name]; !ok {
			res.Skipped = append(res.Skipped, name)
		}
	}

	sort.Strings(res.Loaded)
	sort.Strings(res.Skipped)
	sort.Strings(res.Ignored)
	sort.Strings(lerr.Mismatched)

	if mode == Exact {
		lerr.Missing = res.Skipped
		lerr.Unexpected = res.Ignored
	}

	if len(lerr.Missing) > 0 || len(lerr.Unexpected) > 0 || len(lerr.Mismatched) > 0 {
		return LoadResult{}, lerr
	}

	for _, name := range res.Loaded {
		copy(live[name].Value, stored[name].Data)
	}

	if mode == ByName && len(res.Skipped) > 0 {
		log.Warnf("weights: %d of %d tensors left at initialization (%s)",
			len(res.Skipped), len(live), strings.Join(res.Skipped, ", "))
	}

	return res, nil
}

type modelConfig struct {
	Name           string         `yaml:"name"`
	Architecture   Architecture   `yaml:"architecture"`
	WeightsFile    string         `yaml:"weightsFile"`
	TrainingResult TrainingResult `yaml:"trainingResult"`
	Description    string         `yaml:"description"`
}

// WeightsPath 저장 된 모델 디렉토리의 가중치 파일 경로, 파일 경로는 그대로 반환
func WeightsPath(p string) string {
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		return path.Join(p, weightsFile)
	}
	return p
}

// Save 모델 구조(config.yaml)와 가중치(weights.bin)를 저장
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	cfg := modelConfig{
		Name:           m.Arch.Name,
		Architecture:   m.Arch,
		WeightsFile:    weightsFile,
		TrainingResult: m.TrainingResult,
		Description:    m.Description,
	}

	cfgBytes, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := m.SaveWeights(path.Join(dir, weightsFile)); err != nil {
		return err
	}

	if err := ioutil.WriteFile(path.Join(dir, configFile), cfgBytes, 0644); err != nil {
		return err
	}

	log.Infof("model: saved %s to %s", m.Arch.Name, dir)

	return nil
}

// Load 저장 된 모델을 백본 위에 복원
func Load(dir string, backbone Backbone) (*Model, error) {
	var (
		cfgBytes []byte
		cfg      modelConfig
		err      error
	)

	cfgFile := path.Join(dir, configFile)
	if cfgBytes, err = ioutil.ReadFile(cfgFile); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, fmt.Errorf("Fail to parse model config: %s: %w", cfgFile, err)
	}

	arch, err := LookupArchitecture(cfg.Architecture.Name)
	if err != nil {
		return nil, err
	}
	if arch.FeatureWidth != cfg.Architecture.FeatureWidth || arch.Hidden != cfg.Architecture.Hidden {
		return nil, fmt.Errorf("Not matched architecture[%s] in configuration[%s]", arch.Name, cfgFile)
	}

	m, err := Assemble(arch, backbone, 0)
	if err != nil {
		return nil, err
	}

	if cfg.WeightsFile == "" {
		cfg.WeightsFile = weightsFile
	}
	if _, err := LoadWeights(m, path.Join(dir, cfg.WeightsFile), Exact); err != nil {
		return nil, err
	}

	m.Description = cfg.Description
	m.TrainingResult = cfg.TrainingResult

	return m, nil
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

func prod(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}

	return n
}
