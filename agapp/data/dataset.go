package data

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize/english"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/label"
)

// Sample 레이블이 부여 된 이미지 파일
type Sample struct {
	Filepath string       `json:"filepath"`
	Age      int          `json:"age"`
	Gender   label.Gender `json:"gender"`
}

// Options 데이터셋 생성 옵션
type Options struct {
	// 인식 가능한 이미지 확장자(png, jpg, jpeg)만 포함
	ImagesOnly bool
}

// Dataset 파일 경로와 레이블의 병렬 목록
type Dataset struct {
	Dir       string
	Filepaths []string
	Ages      []int
	Genders   []label.Gender

	// 레이블 추출에 실패하여 제외 된 파일 이름
	Skipped []string
}

// Build 디렉토리의 파일 이름에서 레이블을 추출하여 데이터셋 생성
func Build(dir string, opts Options) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("Fail to read directory: %s: %w", dir, err)
	}

	ds := &Dataset{Dir: dir}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}

		if opts.ImagesOnly && !label.IsImage(name) {
			continue
		}

		l, err := label.Extract(name)
		if err != nil {
			var pe *label.ParseError
			if errors.As(err, &pe) {
				log.Warnf("dataset: %s", err)
				ds.Skipped = append(ds.Skipped, name)
				continue
			}
			return nil, err
		}

		ds.Filepaths = append(ds.Filepaths, filepath.Join(dir, name))
		ds.Ages = append(ds.Ages, l.Age)
		ds.Genders = append(ds.Genders, l.Gender)
	}

	log.Infof("dataset: %s found in %s, %s skipped",
		english.Plural(ds.Len(), "sample", "samples"), dir, english.Plural(len(ds.Skipped), "file", "files"))

	return ds, nil
}

// Len 샘플 수
func (ds *Dataset) Len() int {
	return len(ds.Filepaths)
}

// Sample i번째 샘플
func (ds *Dataset) Sample(i int) Sample {
	return Sample{
		Filepath: ds.Filepaths[i],
		Age:      ds.Ages[i],
		Gender:   ds.Genders[i],
	}
}

// Samples 전체 샘플 목록
func (ds *Dataset) Samples() []Sample {
	samples := make([]Sample, ds.Len())
	for i := range samples {
		samples[i] = ds.Sample(i)
	}

	return samples
}

func (ds *Dataset) subset(index []int) *Dataset {
	sub := &Dataset{Dir: ds.Dir}
	for _, i := range index {
		sub.Filepaths = append(sub.Filepaths, ds.Filepaths[i])
		sub.Ages = append(sub.Ages, ds.Ages[i])
		sub.Genders = append(sub.Genders, ds.Genders[i])
	}

	return sub
}

// Split 검증용 데이터를 분리, fraction 비율 만큼 검증 데이터로 사용
func Split(ds *Dataset, fraction float64, seed int64) (train, valid *Dataset, err error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("Invalid validation fraction: %v", fraction)
	}

	nValid := int(float64(ds.Len()) * fraction)
	if nValid == 0 || nValid == ds.Len() {
		return nil, nil, fmt.Errorf("Not enough samples to split: %d", ds.Len())
	}

	perm := rand.New(rand.NewSource(seed)).Perm(ds.Len())

	return ds.subset(perm[nValid:]), ds.subset(perm[:nValid]), nil
}

// Batch 배치에 포함 된 샘플 인덱스
type Batch struct {
	Index []int
}

// Batches size 단위로 나눈 배치 목록, 마지막 배치는 size 보다 작을 수 있음
func (ds *Dataset) Batches(size int) []Batch {
	if size <= 0 || size > ds.Len() {
		size = ds.Len()
	}
	if size == 0 {
		return nil
	}

	var batches []Batch
	for start := 0; start < ds.Len(); start += size {
		end := start + size
		if end > ds.Len() {
			end = ds.Len()
		}

		index := make([]int, end-start)
		for i := range index {
			index[i] = start + i
		}
		batches = append(batches, Batch{Index: index})
	}

	return batches
}

// Shuffle 배치 순서 셔플
func Shuffle(batches []Batch, rng *rand.Rand) {
	rng.Shuffle(len(batches), func(i, j int) {
		batches[i], batches[j] = batches[j], batches[i]
	})
}

// LoadBatch 배치의 이미지를 디코딩, 반환 된 이미지는 배치 처리 후 해제
func (ds *Dataset) LoadBatch(b Batch, size int) ([]*Image, error) {
	images := make([]*Image, len(b.Index))
	for i, ix := range b.Index {
		img, err := LoadImage(ds.Filepaths[ix], size)
		if err != nil {
			return nil, err
		}
		images[i] = img
	}

	return images, nil
}
