package model

import (
	"fmt"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"gonum.org/v1/gonum/mat"
)

// Backbone 사전 학습 된 특징 추출 네트워크
//
// 학습 가능한 파라미터를 노출하지 않으므로 모델 조립 시점부터 고정
type Backbone interface {
	Name() string
	Features(img *data.Image) (FeatureMap, error)
	Close() error
}

// FeatureMap 백본 출력 (HWC)
type FeatureMap struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// GlobalAveragePool 공간 차원에 대한 평균으로 채널 벡터 생성
func GlobalAveragePool(fm FeatureMap) (*mat.VecDense, error) {
	n := fm.Height * fm.Width
	if n <= 0 || fm.Channels <= 0 {
		return nil, fmt.Errorf("Invalid feature map shape: [%d, %d, %d]", fm.Height, fm.Width, fm.Channels)
	}
	if len(fm.Data) != n*fm.Channels {
		return nil, fmt.Errorf("Feature map size %d does not match shape [%d, %d, %d]",
			len(fm.Data), fm.Height, fm.Width, fm.Channels)
	}

	pooled := make([]float64, fm.Channels)
	for i := 0; i < n; i++ {
		row := fm.Data[i*fm.Channels : (i+1)*fm.Channels]
		for c, v := range row {
			pooled[c] += float64(v)
		}
	}
	for c := range pooled {
		pooled[c] /= float64(n)
	}

	return mat.NewVecDense(fm.Channels, pooled), nil
}
