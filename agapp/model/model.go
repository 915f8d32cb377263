// Package model 고정 된 백본 위에 나이/성별 출력 헤드를 조립한 추정 모델
package model

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"gonum.org/v1/gonum/mat"
)

// Param 학습 가능한 파라미터, Value는 모델의 가중치 저장소를 직접 참조
type Param struct {
	Name  string
	Shape []int
	Value []float64
}

// Grads 파라미터 이름별 기울기
type Grads map[string][]float64

// Reset 기울기 초기화
func (g Grads) Reset() {
	for _, v := range g {
		for i := range v {
			v[i] = 0
		}
	}
}

// Scale 모든 기울기에 s 를 곱함
func (g Grads) Scale(s float64) {
	for _, v := range g {
		for i := range v {
			v[i] *= s
		}
	}
}

// Prediction 헤드 이름에 바인딩 된 추론 결과
type Prediction struct {
	Outputs map[string]float64
}

// Gender 성별이 1일 확률
func (p Prediction) Gender() (float64, bool) {
	v, ok := p.Outputs[HeadGender]
	return v, ok
}

// Age 추정 나이
func (p Prediction) Age() (float64, bool) {
	v, ok := p.Outputs[HeadAge]
	return v, ok
}

// Model 나이/성별 추정 모델
type Model struct {
	Arch           Architecture
	Description    string
	TrainingResult TrainingResult

	backbone Backbone
	hidden   *dense
	age      *dense
	gender   *dense
}

// TrainingResult 학습 결과 요약, config.yaml 에 함께 저장
type TrainingResult struct {
	Epochs             int       `yaml:"epochs"`
	TrainLoss          []float64 `yaml:"trainLoss"`
	TrainAgeMAE        []float64 `yaml:"trainAgeMAE"`
	TrainAccuracy      []float64 `yaml:"trainAccuracy"`
	ValidationLoss     []float64 `yaml:"validationLoss"`
	ValidationAgeMAE   []float64 `yaml:"validationAgeMAE"`
	ValidationAccuracy []float64 `yaml:"validationAccuracy"`
}

// Assemble 백본 위에 (은닉층 +) 나이/성별 헤드를 생성
func Assemble(arch Architecture, backbone Backbone, seed int64) (*Model, error) {
	if err := arch.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	m := &Model{
		Arch:     arch,
		backbone: backbone,
	}

	width := arch.FeatureWidth
	if arch.Hidden > 0 {
		m.hidden = newDense(HeadDense, width, arch.Hidden, Relu, rng)
		width = arch.Hidden
	}
	m.age = newDense(HeadAge, width, 1, Linear, rng)
	m.gender = newDense(HeadGender, width, 1, Sigmoid, rng)

	return m, nil
}

// Backbone 모델의 백본
func (m *Model) Backbone() Backbone {
	return m.backbone
}

// Outputs 모델이 제공하는 출력 헤드
func (m *Model) Outputs() []string {
	return append([]string(nil), m.Arch.Outputs...)
}

func (m *Model) layers() []*dense {
	if m.hidden != nil {
		return []*dense{m.hidden, m.age, m.gender}
	}
	return []*dense{m.age, m.gender}
}

// Params 옵티마이저가 갱신하는 파라미터 (백본 제외)
func (m *Model) Params() []Param {
	var params []Param
	for _, l := range m.layers() {
		params = append(params, l.params()...)
	}

	return params
}

// NewGrads 파라미터 형태에 맞는 기울기 저장소
func (m *Model) NewGrads() Grads {
	g := make(Grads)
	for _, p := range m.Params() {
		g[p.Name] = make([]float64, len(p.Value))
	}

	return g
}

// Features 이미지의 백본 특징 벡터 (global average pooling)
func (m *Model) Features(img *data.Image) (*mat.VecDense, error) {
	if m.backbone == nil {
		return nil, fmt.Errorf("Model %s has no backbone", m.Arch.Name)
	}

	fm, err := m.backbone.Features(img)
	if err != nil {
		return nil, err
	}

	vec, err := GlobalAveragePool(fm)
	if err != nil {
		return nil, err
	}

	if vec.Len() != m.Arch.FeatureWidth {
		return nil, fmt.Errorf("Feature width %d does not match architecture %s (%d)",
			vec.Len(), m.Arch.Name, m.Arch.FeatureWidth)
	}

	return vec, nil
}

// Predict 단일 이미지 추론
func (m *Model) Predict(img *data.Image) (Prediction, error) {
	vec, err := m.Features(img)
	if err != nil {
		return Prediction{}, err
	}

	return m.PredictFeatures(vec)
}

// PredictFeatures 특징 벡터로부터 추론
func (m *Model) PredictFeatures(x *mat.VecDense) (Prediction, error) {
	if x.Len() != m.Arch.FeatureWidth {
		return Prediction{}, fmt.Errorf("Feature width %d does not match architecture %s (%d)",
			x.Len(), m.Arch.Name, m.Arch.FeatureWidth)
	}

	a := m.Forward(x)
	outputs := make(map[string]float64)
	for _, head := range m.Arch.Outputs {
		switch head {
		case HeadAge:
			outputs[HeadAge] = a.Age
		case HeadGender:
			outputs[HeadGender] = a.Gender
		}
	}

	return Prediction{Outputs: outputs}, nil
}

// Activations 역전파를 위한 순전파 중간 값
type Activations struct {
	Input  *mat.VecDense
	Age    float64
	Gender float64

	hiddenZ *mat.VecDense
	hidden  *mat.VecDense
}

// Forward 순전파
func (m *Model) Forward(x *mat.VecDense) *Activations {
	act := &Activations{Input: x}

	var h mat.Vector = x
	if m.hidden != nil {
		act.hiddenZ, act.hidden = m.hidden.forward(x)
		h = act.hidden
	}

	_, age := m.age.forward(h)
	_, gender := m.gender.forward(h)
	act.Age = age.AtVec(0)
	act.Gender = gender.AtVec(0)

	return act
}

// Backward 헤드 출력(활성 전)에 대한 기울기를 역전파하여 g 에 누적
//
// 백본으로는 전파하지 않음
func (m *Model) Backward(act *Activations, dAge, dGender float64, g Grads) {
	var h mat.Vector = act.Input
	if m.hidden != nil {
		h = act.hidden
	}

	dh := m.age.backward(h, mat.NewVecDense(1, []float64{dAge}), g)
	dh.AddVec(dh, m.gender.backward(h, mat.NewVecDense(1, []float64{dGender}), g))

	if m.hidden == nil {
		return
	}

	for i := 0; i < dh.Len(); i++ {
		dh.SetVec(i, dh.AtVec(i)*reluDeriv(act.hiddenZ.AtVec(i)))
	}
	m.hidden.backward(act.Input, dh, g)
}

func (m *Model) String() string {
	backbone := m.Arch.Backbone
	if m.backbone != nil {
		backbone = m.backbone.Name()
	}

	s := []string{fmt.Sprintf("model %s (backbone %s, frozen, %d features)", m.Arch.Name, backbone, m.Arch.FeatureWidth)}
	for i, l := range m.layers() {
		s = append(s, fmt.Sprintf("%2d: %s", i, l))
	}

	return strings.Join(s, "\n")
}
