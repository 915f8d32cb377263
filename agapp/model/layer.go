package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// 활성 함수
const (
	Linear  = "linear"
	Relu    = "relu"
	Sigmoid = "sigmoid"
)

// dense 완전 연결 층, W: in x out, b: out
type dense struct {
	name       string
	activation string
	w          *mat.Dense
	b          *mat.VecDense
}

func newDense(name string, in, out int, activation string, rng *rand.Rand) *dense {
	// glorot uniform, bias 0
	limit := math.Sqrt(6 / float64(in+out))
	weights := make([]float64, in*out)
	for i := range weights {
		weights[i] = (rng.Float64()*2 - 1) * limit
	}

	return &dense{
		name:       name,
		activation: activation,
		w:          mat.NewDense(in, out, weights),
		b:          mat.NewVecDense(out, nil),
	}
}

func (d *dense) dims() (in, out int) {
	return d.w.Dims()
}

func (d *dense) kernelName() string {
	return d.name + "/kernel"
}

func (d *dense) biasName() string {
	return d.name + "/bias"
}

// forward 활성 전(z)과 후(a) 값 반환
func (d *dense) forward(x mat.Vector) (z, a *mat.VecDense) {
	_, out := d.dims()

	z = mat.NewVecDense(out, nil)
	z.MulVec(d.w.T(), x)
	z.AddVec(z, d.b)

	a = mat.NewVecDense(out, nil)
	for i := 0; i < out; i++ {
		a.SetVec(i, activate(d.activation, z.AtVec(i)))
	}

	return z, a
}

// backward dz: 활성 전 출력에 대한 기울기, 입력에 대한 기울기 반환
func (d *dense) backward(x, dz mat.Vector, g Grads) *mat.VecDense {
	in, out := d.dims()

	dw := mat.NewDense(in, out, g[d.kernelName()])
	dw.RankOne(dw, 1, x, dz)

	db := mat.NewVecDense(out, g[d.biasName()])
	db.AddVec(db, dz)

	dx := mat.NewVecDense(in, nil)
	dx.MulVec(d.w, dz)

	return dx
}

func (d *dense) params() []Param {
	in, out := d.dims()
	return []Param{
		{Name: d.kernelName(), Shape: []int{in, out}, Value: d.w.RawMatrix().Data},
		{Name: d.biasName(), Shape: []int{out}, Value: d.b.RawVector().Data},
	}
}

func (d *dense) String() string {
	in, out := d.dims()
	return fmt.Sprintf("dense %s [%d -> %d] %s", d.name, in, out, d.activation)
}

func activate(activation string, z float64) float64 {
	switch activation {
	case Relu:
		return math.Max(0, z)
	case Sigmoid:
		return 1 / (1 + math.Exp(-z))
	default:
		return z
	}
}

func reluDeriv(z float64) float64 {
	if z > 0 {
		return 1
	}
	return 0
}
