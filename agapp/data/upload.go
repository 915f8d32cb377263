package data

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/label"
)

// SaveFunc 업로드 파일 저장 함수 (gin.Context.SaveUploadedFile 과 같은 형태)
type SaveFunc func(*multipart.FileHeader, string) error

// UploadError 저장하지 못한 업로드 파일
type UploadError struct {
	OrgFilename string `json:"orgfilename"`
	Error       string `json:"error"`
}

// UploadResult 업로드 결과
type UploadResult struct {
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Filenames  []string      `json:"filenames,omitempty"`
	Errors     []UploadError `json:"errors,omitempty"`
}

func saveImage(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)

	return err
}

// LabeledFilename 레이블을 담은 파일명 <age>_<gender>_<id>.<format>
func LabeledFilename(l label.Label, format string) string {
	return fmt.Sprintf("%03d_%d_%s.%s", l.Age, int(l.Gender), uuid.New().String()[:8], format)
}

// SaveImages 업로드 된 이미지를 레이블을 담은 파일명으로 dir 에 저장
func SaveImages(dir string, l label.Label, images []*multipart.FileHeader, f SaveFunc) (UploadResult, error) {
	var result UploadResult

	if l.Age < 0 || (l.Gender != label.Female && l.Gender != label.Male) {
		return result, fmt.Errorf("Invalid label: age %d, gender %d", l.Age, int(l.Gender))
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return result, err
	}

	if f == nil {
		f = saveImage
	}

	for _, image := range images {
		result.Total++

		if !label.IsImage(image.Filename) {
			result.Failed++
			result.Errors = append(result.Errors, UploadError{
				OrgFilename: image.Filename,
				Error:       "Not supported image format",
			})
			continue
		}

		fileName := LabeledFilename(l, label.Format(image.Filename))
		if err := f(image, filepath.Join(dir, fileName)); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, UploadError{
				OrgFilename: image.Filename,
				Error:       err.Error(),
			})
			continue
		}

		result.Successful++
		result.Filenames = append(result.Filenames, fileName)
	}

	log.Infof("dataset: saved %d of %d images to %s", result.Successful, result.Total, dir)

	return result, nil
}
