// Package train 나이/성별 헤드 학습
package train

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/constants"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	lru "github.com/hashicorp/golang-lru"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/cheggaaa/pb.v1"
)

// Options 학습 설정
type Options struct {
	Epochs       int
	BatchSize    int
	ImageSize    int
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	Shuffle      bool
	Seed         int64

	// 백본 특징 벡터 캐시 크기, 0 이면 캐시 사용 안함
	CacheSize int

	Progress bool
	Output   io.Writer
}

// DefaultOptions 기본 학습 설정
func DefaultOptions() Options {
	return Options{
		Epochs:       constants.TrainEpochs,
		BatchSize:    constants.BatchSize,
		ImageSize:    constants.ImageSize,
		LearningRate: constants.LearningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		CacheSize:    constants.FeatureCacheSize,
		Output:       os.Stderr,
	}
}

// EpochStats 에폭 별 학습 통계
type EpochStats struct {
	Epoch    int
	Loss     float64
	AgeMAE   float64
	Accuracy float64

	HasValidation      bool
	ValidationLoss     float64
	ValidationAgeMAE   float64
	ValidationAccuracy float64

	Elapsed time.Duration
}

func (s EpochStats) String() string {
	msg := fmt.Sprintf("epoch %3d:  loss =%8.4f  age mae =%7.3f  gender acc =%6.2f%%",
		s.Epoch, s.Loss, s.AgeMAE, s.Accuracy*100)
	if s.HasValidation {
		msg += fmt.Sprintf("  val loss =%8.4f  val age mae =%7.3f  val gender acc =%6.2f%%",
			s.ValidationLoss, s.ValidationAgeMAE, s.ValidationAccuracy*100)
	}
	return msg
}

// Result 학습 결과
type Result struct {
	Epochs []EpochStats
}

// Summary 모델 설정에 저장할 학습 결과
func (r Result) Summary() model.TrainingResult {
	tr := model.TrainingResult{Epochs: len(r.Epochs)}
	for _, s := range r.Epochs {
		tr.TrainLoss = append(tr.TrainLoss, s.Loss)
		tr.TrainAgeMAE = append(tr.TrainAgeMAE, s.AgeMAE)
		tr.TrainAccuracy = append(tr.TrainAccuracy, s.Accuracy)
		if s.HasValidation {
			tr.ValidationLoss = append(tr.ValidationLoss, s.ValidationLoss)
			tr.ValidationAgeMAE = append(tr.ValidationAgeMAE, s.ValidationAgeMAE)
			tr.ValidationAccuracy = append(tr.ValidationAccuracy, s.ValidationAccuracy)
		}
	}

	return tr
}

// Trainer 고정 된 백본 위의 헤드 학습
type Trainer struct {
	opts     Options
	model    *model.Model
	features *featureCache
	adam     *Adam
	rng      *rand.Rand
}

// New 학습기 생성
func New(m *model.Model, opts Options) (*Trainer, error) {
	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("Invalid epochs: %d", opts.Epochs)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("Invalid batch size: %d", opts.BatchSize)
	}
	if opts.ImageSize <= 0 {
		return nil, fmt.Errorf("Invalid image size: %d", opts.ImageSize)
	}
	if opts.LearningRate <= 0 {
		return nil, fmt.Errorf("Invalid learning rate: %v", opts.LearningRate)
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	fc, err := newFeatureCache(m, opts.ImageSize, opts.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Trainer{
		opts:     opts,
		model:    m,
		features: fc,
		adam:     NewAdam(opts.LearningRate, opts.Beta1, opts.Beta2, opts.Epsilon),
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// Run 학습 데이터로 학습, 에폭 마다 검증 데이터로 평가 (validSet 은 nil 가능)
func Run(ctx context.Context, m *model.Model, trainSet, validSet *data.Dataset, opts Options) (Result, error) {
	t, err := New(m, opts)
	if err != nil {
		return Result{}, err
	}

	return t.Run(ctx, trainSet, validSet)
}

// Run 학습 실행
func (t *Trainer) Run(ctx context.Context, trainSet, validSet *data.Dataset) (Result, error) {
	var result Result

	if trainSet == nil || trainSet.Len() == 0 {
		return result, fmt.Errorf("Empty training set")
	}

	log.Infof("train: %s, %s, batch size %d, learning rate %g",
		english.Plural(trainSet.Len(), "sample", "samples"),
		english.Plural(t.opts.Epochs, "epoch", "epochs"),
		t.opts.BatchSize, t.opts.LearningRate)

	start := time.Now()
	for epoch := 1; epoch <= t.opts.Epochs; epoch++ {
		s, err := t.trainEpoch(ctx, epoch, trainSet)
		if err != nil {
			return result, err
		}

		if validSet != nil && validSet.Len() > 0 {
			loss, mae, acc, err := t.Evaluate(ctx, validSet)
			if err != nil {
				return result, err
			}
			s.HasValidation = true
			s.ValidationLoss, s.ValidationAgeMAE, s.ValidationAccuracy = loss, mae, acc
		}

		s.Elapsed = time.Since(start)
		result.Epochs = append(result.Epochs, s)
		log.Infof("train: %s", s)
	}

	log.Infof("train: run time %s", time.Since(start).Round(10*time.Millisecond))

	return result, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, epoch int, ds *data.Dataset) (EpochStats, error) {
	batches := ds.Batches(t.opts.BatchSize)
	if t.opts.Shuffle {
		data.Shuffle(batches, t.rng)
	}

	bar := pb.New(len(batches))
	bar.Output = t.opts.Output
	bar.NotPrint = !t.opts.Progress
	bar.Prefix(fmt.Sprintf("epoch %d/%d ", epoch, t.opts.Epochs))
	bar.Start()
	defer bar.Finish()

	params := t.model.Params()
	grads := t.model.NewGrads()

	var acc metrics
	for _, b := range batches {
		select {
		case <-ctx.Done():
			return EpochStats{}, ctx.Err()
		default:
		}

		vecs, err := t.features.batch(ds, b)
		if err != nil {
			return EpochStats{}, err
		}

		grads.Reset()
		n := float64(len(b.Index))
		for i, ix := range b.Index {
			targetAge := float64(ds.Ages[ix])
			targetGender := float64(ds.Genders[ix])

			a := t.model.Forward(vecs[i])
			acc.add(a.Age, a.Gender, targetAge, targetGender)

			// d(mse)/d(age), d(bce)/d(z_gender)
			dAge := 2 * (a.Age - targetAge) / n
			dGender := (a.Gender - targetGender) / n
			t.model.Backward(a, dAge, dGender, grads)
		}

		t.adam.Step(params, grads)
		bar.Increment()
	}

	loss, mae, accuracy := acc.values()

	return EpochStats{Epoch: epoch, Loss: loss, AgeMAE: mae, Accuracy: accuracy}, nil
}

// Evaluate 손실, 나이 MAE, 성별 정확도 (0~1)
func (t *Trainer) Evaluate(ctx context.Context, ds *data.Dataset) (loss, mae, accuracy float64, err error) {
	var acc metrics
	for _, b := range ds.Batches(t.opts.BatchSize) {
		select {
		case <-ctx.Done():
			return 0, 0, 0, ctx.Err()
		default:
		}

		vecs, err := t.features.batch(ds, b)
		if err != nil {
			return 0, 0, 0, err
		}

		for i, ix := range b.Index {
			a := t.model.Forward(vecs[i])
			acc.add(a.Age, a.Gender, float64(ds.Ages[ix]), float64(ds.Genders[ix]))
		}
	}

	loss, mae, accuracy = acc.values()
	return loss, mae, accuracy, nil
}

// featureCache 백본 특징 벡터 캐시, 고정 된 백본은 에폭마다 같은 값을 반환
type featureCache struct {
	model     *model.Model
	imageSize int
	cache     *lru.Cache
}

func newFeatureCache(m *model.Model, imageSize, size int) (*featureCache, error) {
	fc := &featureCache{model: m, imageSize: imageSize}
	if size > 0 {
		c, err := lru.New(size)
		if err != nil {
			return nil, err
		}
		fc.cache = c
	}

	return fc, nil
}

// batch 배치의 특징 벡터, 캐시에 없는 이미지만 디코딩
func (fc *featureCache) batch(ds *data.Dataset, b data.Batch) ([]*mat.VecDense, error) {
	vecs := make([]*mat.VecDense, len(b.Index))

	var missing []int
	for i, ix := range b.Index {
		if fc.cache != nil {
			if v, ok := fc.cache.Get(ds.Filepaths[ix]); ok {
				vecs[i] = v.(*mat.VecDense)
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return vecs, nil
	}

	load := data.Batch{Index: make([]int, len(missing))}
	for j, i := range missing {
		load.Index[j] = b.Index[i]
	}

	images, err := ds.LoadBatch(load, fc.imageSize)
	if err != nil {
		return nil, err
	}

	for j, i := range missing {
		vec, err := fc.model.Features(images[j])
		if err != nil {
			return nil, fmt.Errorf("Fail to extract features: %s: %w", ds.Filepaths[b.Index[i]], err)
		}
		vecs[i] = vec
		if fc.cache != nil {
			fc.cache.Add(ds.Filepaths[b.Index[i]], vec)
		}
	}

	return vecs, nil
}
