package train

import (
	"math"
)

const bceEpsilon = 1e-7

// squaredError 나이 손실 (mean squared error 의 샘플 항)
func squaredError(pred, target float64) float64 {
	d := pred - target
	return d * d
}

// binaryCrossEntropy 성별 손실, 확률은 [eps, 1-eps] 로 제한
func binaryCrossEntropy(prob, target float64) float64 {
	p := math.Min(math.Max(prob, bceEpsilon), 1-bceEpsilon)
	return -(target*math.Log(p) + (1-target)*math.Log(1-p))
}

// genderLabel 확률을 0.5 기준으로 0/1 로 변환
func genderLabel(prob float64) int {
	if prob > 0.5 {
		return 1
	}
	return 0
}

// metrics 손실 및 평가 지표 누적
type metrics struct {
	n       int
	loss    float64
	absErr  float64
	correct int
}

func (s *metrics) add(age, gender, targetAge, targetGender float64) {
	s.n++
	s.loss += squaredError(age, targetAge) + binaryCrossEntropy(gender, targetGender)
	s.absErr += math.Abs(age - targetAge)
	if float64(genderLabel(gender)) == targetGender {
		s.correct++
	}
}

func (s *metrics) values() (loss, mae, accuracy float64) {
	if s.n == 0 {
		return 0, 0, 0
	}
	n := float64(s.n)
	return s.loss / n, s.absErr / n, float64(s.correct) / n
}
