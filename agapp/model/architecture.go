package model

import (
	"errors"
	"fmt"
	"sort"
)

// Head 출력 이름
const (
	HeadAge    = "age"
	HeadGender = "gender"
	HeadDense  = "dense"
)

// ErrUnknownArchitecture 등록되지 않은 아키텍처
var ErrUnknownArchitecture = errors.New("Unknown architecture")

// Architecture 백본과 출력 헤드 구성
//
// 가중치 파일은 아키텍처에 종속되므로 은닉층 유무가 다르면 별도의 이름을 사용
type Architecture struct {
	Name         string   `yaml:"name"`
	Backbone     string   `yaml:"backbone"`
	FeatureWidth int      `yaml:"featureWidth"`
	Hidden       int      `yaml:"hidden"`
	Outputs      []string `yaml:"outputs"`
}

var architectures = map[string]Architecture{
	"resnet50": {
		Name:         "resnet50",
		Backbone:     "ResNet50",
		FeatureWidth: 2048,
		Outputs:      []string{HeadAge, HeadGender},
	},
	// 나이 헤드는 조립되지만 성별만 출력
	"efficientnetb0": {
		Name:         "efficientnetb0",
		Backbone:     "EfficientNetB0",
		FeatureWidth: 1280,
		Outputs:      []string{HeadGender},
	},
	"efficientnetv2b0": {
		Name:         "efficientnetv2b0",
		Backbone:     "EfficientNetV2B0",
		FeatureWidth: 1280,
		Hidden:       1280,
		Outputs:      []string{HeadAge, HeadGender},
	},
}

// LookupArchitecture 이름으로 아키텍처 검색
func LookupArchitecture(name string) (Architecture, error) {
	arch, ok := architectures[name]
	if !ok {
		return Architecture{}, fmt.Errorf("%w: %s", ErrUnknownArchitecture, name)
	}

	arch.Outputs = append([]string(nil), arch.Outputs...)
	return arch, nil
}

// Architectures 등록 된 아키텍처 이름 목록
func Architectures() []string {
	var names []string
	for name := range architectures {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// HasOutput 해당 출력 헤드 제공 여부
func (a Architecture) HasOutput(head string) bool {
	for _, o := range a.Outputs {
		if o == head {
			return true
		}
	}

	return false
}

func (a Architecture) validate() error {
	if a.FeatureWidth <= 0 {
		return fmt.Errorf("Invalid feature width: %d", a.FeatureWidth)
	}
	if a.Hidden < 0 {
		return fmt.Errorf("Invalid hidden width: %d", a.Hidden)
	}
	if !a.HasOutput(HeadGender) {
		return fmt.Errorf("Architecture %s has no %s output", a.Name, HeadGender)
	}

	return nil
}
