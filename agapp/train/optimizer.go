package train

import (
	"math"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
)

// Adam 적응적 학습률 옵티마이저
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t int
	m map[string][]float64
	v map[string][]float64
}

// NewAdam Adam 옵티마이저 생성
func NewAdam(learningRate, beta1, beta2, epsilon float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        beta1,
		Beta2:        beta2,
		Epsilon:      epsilon,
		m:            make(map[string][]float64),
		v:            make(map[string][]float64),
	}
}

// Step 기울기로 파라미터 갱신, params 에 없는 값(백본)은 갱신 대상이 아님
func (a *Adam) Step(params []model.Param, g model.Grads) {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for _, p := range params {
		grad, ok := g[p.Name]
		if !ok {
			continue
		}

		m, ok := a.m[p.Name]
		if !ok {
			m = make([]float64, len(p.Value))
			a.m[p.Name] = m
		}
		v, ok := a.v[p.Name]
		if !ok {
			v = make([]float64, len(p.Value))
			a.v[p.Name] = v
		}

		for i := range p.Value {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*grad[i]
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*grad[i]*grad[i]
			mHat := m[i] / c1
			vHat := v[i] / c2
			p.Value[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}
