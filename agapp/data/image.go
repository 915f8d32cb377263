package data

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// Image 모델 입력으로 정규화 된 이미지 (HWC, [0, 1])
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []float32
}

// Shape 단일 이미지 배치의 입력 형태 [1, H, W, C]
func (img *Image) Shape() []int64 {
	return []int64{1, int64(img.Height), int64(img.Width), int64(img.Channels)}
}

// Batch 배치 차원이 추가 된 텐서 값 [1][H][W][C]
func (img *Image) Batch() [][][][]float32 {
	rows := make([][][]float32, img.Height)
	for y := range rows {
		rows[y] = make([][]float32, img.Width)
		for x := range rows[y] {
			base := (y*img.Width + x) * img.Channels
			rows[y][x] = img.Pix[base : base+img.Channels]
		}
	}

	return [][][][]float32{rows}
}

// At (x, y) 위치의 채널 값
func (img *Image) At(x, y, c int) float32 {
	return img.Pix[(y*img.Width+x)*img.Channels+c]
}

// LoadImage 이미지 파일을 읽어 size x size 로 조정하고 [0, 1]로 정규화
func LoadImage(filePath string, size int) (*Image, error) {
	img, err := imaging.Open(filePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("Fail to open image: %s: %w", filePath, err)
	}

	return Normalize(img, size)
}

// DecodeImage 이미지 바이트를 디코딩하여 정규화
func DecodeImage(r io.Reader, size int) (*Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("Fail to decode image: %w", err)
	}

	return Normalize(img, size)
}

// DecodeImageBytes DecodeImage의 []byte 버전
func DecodeImageBytes(b []byte, size int) (*Image, error) {
	return DecodeImage(bytes.NewReader(b), size)
}

// Normalize 이중선형보간법으로 size x size 로 조정 후 픽셀값을 [0, 1]로 조정
func Normalize(src image.Image, size int) (*Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("Invalid image size: %d", size)
	}

	resized := imaging.Resize(src, size, size, imaging.Linear)

	img := &Image{
		Height:   size,
		Width:    size,
		Channels: 3,
		Pix:      make([]float32, size*size*3),
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := resized.PixOffset(x, y)
			base := (y*size + x) * 3
			img.Pix[base+0] = float32(resized.Pix[i+0]) / 255.0
			img.Pix[base+1] = float32(resized.Pix[i+1]) / 255.0
			img.Pix[base+2] = float32(resized.Pix[i+2]) / 255.0
		}
	}

	return img, nil
}
