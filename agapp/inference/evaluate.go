// Package inference 저장된 모델을 이용한 폴더 단위 성별 평가
package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/constants"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data/db"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/label"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	"github.com/montanaflynn/stats"
)

// ErrNoImages 평가할 이미지가 없는 폴더
var ErrNoImages = errors.New("No images to evaluate")

// Predictor 이미지 한장에 대한 추론
type Predictor interface {
	Predict(img *data.Image) (model.Prediction, error)
}

// Options 평가 설정
type Options struct {
	ImageSize int

	// 읽을 수 없는 이미지를 건너뜀 (기본은 평가 중단)
	SkipUnreadable bool

	// 결과 저장소, nil 이면 저장 안함
	Store *db.DBconn
}

// Result 이미지 단위 평가 결과
type Result struct {
	Filename        string  `json:"file"`
	Filepath        string  `json:"-"`
	ActualAge       int     `json:"actualAge"`
	ActualGender    int     `json:"actualGender"`
	PredictedGender float64 `json:"predictedGender"`
	Label           int     `json:"label"`
	PredictedAge    float64 `json:"predictedAge,omitempty"`
	HasAge          bool    `json:"-"`
}

// Correct 예측 성별이 실제 성별과 같은지 여부
func (r Result) Correct() bool {
	return r.Label == r.ActualGender
}

// Report 폴더 평가 결과
type Report struct {
	RunID   string   `json:"runId"`
	Folder  string   `json:"folder"`
	Results []Result `json:"results"`
	Correct int      `json:"correct"`
	Total   int      `json:"total"`
	Skipped []string `json:"skipped,omitempty"`

	Elapsed time.Duration `json:"-"`
}

// Accuracy 성별 정확도 (%), 평가한 이미지가 없으면 ErrNoImages
func (r *Report) Accuracy() (float64, error) {
	if r.Total == 0 {
		return 0, ErrNoImages
	}

	return 100 * float64(r.Correct) / float64(r.Total), nil
}

// AgeMAE 나이 평균 절대 오차, 나이 출력이 없으면 error
func (r *Report) AgeMAE() (float64, error) {
	var abs stats.Float64Data
	for _, res := range r.Results {
		if res.HasAge {
			abs = append(abs, math.Abs(res.PredictedAge-float64(res.ActualAge)))
		}
	}
	if len(abs) == 0 {
		return 0, errors.New("No age predictions")
	}

	return stats.Mean(abs)
}

// Print 이미지별 결과와 정확도 출력
func (r *Report) Print(w io.Writer) {
	sep := strings.Repeat("-", 30)
	for _, res := range r.Results {
		line := fmt.Sprintf("Image: %s | Actual Gender: %s, Predicted Gender: %s",
			res.Filename, label.Gender(res.ActualGender), label.Gender(res.Label))
		if res.HasAge {
			line += fmt.Sprintf(", Predicted Age: %.2f", res.PredictedAge)
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, sep)
	}

	accuracy, err := r.Accuracy()
	if err != nil {
		fmt.Fprintf(w, "\n%s\n", ErrNoImages)
		return
	}

	fmt.Fprintf(w, "\nTotal Images: %d\n", r.Total)
	fmt.Fprintf(w, "Gender Prediction Accuracy: %.2f%%\n", accuracy)
	if mae, err := r.AgeMAE(); err == nil {
		fmt.Fprintf(w, "Age Mean Absolute Error: %.2f\n", mae)
	}
}

// Evaluate folder 의 이미지를 평가
//
// 레이블을 추출할 수 없는 파일은 분자와 분모 모두에서 제외
func Evaluate(ctx context.Context, p Predictor, folder string, opts Options) (*Report, error) {
	if opts.ImageSize <= 0 {
		opts.ImageSize = constants.ImageSize
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("Fail to read folder: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	report := &Report{
		RunID:  uuid.New().String(),
		Folder: folder,
	}

	start := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !label.IsImage(entry.Name()) {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		name := entry.Name()
		l, err := label.Extract(name)
		if err != nil {
			log.Warnf("evaluate: %s", err)
			report.Skipped = append(report.Skipped, name)
			continue
		}

		path := filepath.Join(folder, name)
		res, err := evaluateImage(p, path, l, opts.ImageSize)
		if err != nil {
			if !opts.SkipUnreadable {
				return nil, err
			}
			log.Warnf("evaluate: %s", err)
			report.Skipped = append(report.Skipped, name)
			continue
		}

		report.Results = append(report.Results, res)
		report.Total++
		if res.Correct() {
			report.Correct++
		}

		if opts.Store != nil {
			if err := store(opts.Store, report.RunID, res); err != nil {
				return nil, err
			}
		}
	}
	report.Elapsed = time.Since(start)

	log.Infof("evaluate: %d of %d correct in %s (run %s)",
		report.Correct, report.Total, report.Elapsed.Round(time.Millisecond), report.RunID)

	return report, nil
}

func evaluateImage(p Predictor, path string, l label.Label, size int) (Result, error) {
	img, err := data.LoadImage(path, size)
	if err != nil {
		return Result{}, err
	}

	pred, err := p.Predict(img)
	if err != nil {
		return Result{}, fmt.Errorf("Fail to predict: %s: %w", path, err)
	}

	gender, ok := pred.Gender()
	if !ok {
		return Result{}, fmt.Errorf("Model has no %s output", model.HeadGender)
	}

	res := Result{
		Filename:        filepath.Base(path),
		Filepath:        path,
		ActualAge:       l.Age,
		ActualGender:    int(l.Gender),
		PredictedGender: gender,
		Label:           GenderLabel(gender),
	}
	res.PredictedAge, res.HasAge = pred.Age()

	return res, nil
}

// GenderLabel 확률이 기준값보다 크면 1 (Male)
func GenderLabel(prob float64) int {
	if prob > constants.GenderThreshold {
		return int(label.Male)
	}
	return int(label.Female)
}

func store(conn *db.DBconn, runID string, res Result) error {
	return conn.Insert(db.Item{
		RunID:           runID,
		Filename:        res.Filename,
		FilePath:        res.Filepath,
		ActualAge:       res.ActualAge,
		ActualGender:    res.ActualGender,
		PredictedAge:    res.PredictedAge,
		PredictedGender: res.PredictedGender,
		GenderLabel:     res.Label,
		CreateAt:        time.Now(),
	})
}
