package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data/db"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/inference"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/label"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
)

// APIs api 핸들러
type APIs struct {
	M         *model.Model
	Store     *db.DBconn
	ImageSize int

	// 업로드 된 학습 이미지 저장 디렉토리
	ImagesDir string

	// /evaluations 의 folder 는 이 디렉토리 아래의 상대 경로
	EvaluationRoot string
}

// Router api 라우팅 설정
func Router(a *APIs) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.MaxMultipartMemory = 8 << 20

	r.POST("/inference", a.Infer)
	r.GET("/model", a.ShowModel)

	evaluationsGroup := r.Group("/evaluations")
	{
		evaluationsGroup.POST("", a.Evaluate)
		evaluationsGroup.GET(":run", a.ShowEvaluation)
	}

	imagesGroup := r.Group("/images")
	{
		imagesGroup.GET("", a.ListImages)
		imagesGroup.POST("", a.UploadImages)
	}

	return r
}

// ShowModel 모델 정보 반환
func (a *APIs) ShowModel(c *gin.Context) {
	backbone := a.M.Arch.Backbone
	if b := a.M.Backbone(); b != nil {
		backbone = b.Name()
	}

	c.JSON(http.StatusOK, gin.H{
		"architecture":   a.M.Arch.Name,
		"backbone":       backbone,
		"featureWidth":   a.M.Arch.FeatureWidth,
		"hidden":         a.M.Arch.Hidden,
		"outputs":        a.M.Outputs(),
		"description":    a.M.Description,
		"trainingResult": a.M.TrainingResult,
	})
}

// Infer 업로드 된 이미지 한장의 나이/성별 추론
func (a *APIs) Infer(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}

	kind, err := filetype.Match(buf.Bytes())
	if err != nil || !filetype.IsImage(buf.Bytes()) {
		Error(c, http.StatusBadRequest, fmt.Errorf("Not an image: %s", header.Filename))
		return
	}

	t0 := time.Now()
	img, err := data.DecodeImageBytes(buf.Bytes(), a.ImageSize)
	if err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}

	pred, err := a.M.Predict(img)
	if err != nil {
		Error(c, http.StatusInternalServerError, err)
		return
	}
	elapsed := time.Since(t0)

	res := gin.H{
		"file":        header.Filename,
		"format":      kind.Extension,
		"bytes":       buf.Len(),
		"elapsed(ms)": elapsed.Milliseconds(),
	}
	if gender, ok := pred.Gender(); ok {
		l := inference.GenderLabel(gender)
		res["gender"] = gender
		res["label"] = label.Gender(l).String()
	}
	if age, ok := pred.Age(); ok {
		res["age"] = age
	}

	c.JSON(http.StatusOK, res)
}

// Evaluate 서버의 폴더를 평가
func (a *APIs) Evaluate(c *gin.Context) {
	folder := c.Query("folder")
	if folder == "" {
		Error(c, http.StatusBadRequest, errors.New("Empty `folder`"))
		return
	}
	_, skip := c.GetQuery("skip")

	dir, err := resolveFolder(a.EvaluationRoot, folder)
	if err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}

	if fi, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			Error(c, http.StatusNotFound, fmt.Errorf("Cannot find folder: %s", folder))
		} else {
			Error(c, http.StatusInternalServerError, err)
		}
		return
	} else if !fi.IsDir() {
		Error(c, http.StatusBadRequest, fmt.Errorf("Not a folder: %s", folder))
		return
	}

	report, err := inference.Evaluate(c.Request.Context(), a.M, dir, inference.Options{
		ImageSize:      a.ImageSize,
		SkipUnreadable: skip,
		Store:          a.Store,
	})
	if err != nil {
		Error(c, http.StatusInternalServerError, err)
		return
	}

	res := gin.H{
		"runId":   report.RunID,
		"folder":  report.Folder,
		"total":   report.Total,
		"correct": report.Correct,
		"skipped": report.Skipped,
		"results": report.Results,
	}
	if accuracy, err := report.Accuracy(); err != nil {
		res["noImages"] = true
	} else {
		res["accuracy"] = accuracy
	}
	if mae, err := report.AgeMAE(); err == nil {
		res["ageMAE"] = mae
	}

	c.JSON(http.StatusOK, res)
}

// resolveFolder root 아래의 상대 경로만 허용
func resolveFolder(root, folder string) (string, error) {
	if root == "" {
		return "", errors.New("Evaluation root is not configured")
	}
	if filepath.IsAbs(folder) {
		return "", fmt.Errorf("Folder must be relative to the evaluation root: %s", folder)
	}

	rel := filepath.Clean(folder)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("Folder is outside the evaluation root: %s", folder)
	}

	return filepath.Join(root, rel), nil
}

// ShowEvaluation 저장된 평가 결과 반환
func (a *APIs) ShowEvaluation(c *gin.Context) {
	if a.Store == nil {
		Error(c, http.StatusNotFound, errors.New("Result store is not configured"))
		return
	}

	run := c.Param("run")
	items, err := a.Store.Get(run)
	if err != nil {
		Error(c, http.StatusInternalServerError, err)
		return
	}
	if len(items) == 0 {
		Error(c, http.StatusNotFound, fmt.Errorf("Cannot find evaluation: %s", run))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runId":   run,
		"results": items,
	})
}

// UploadImages 나이/성별 레이블을 붙여 학습 이미지 저장
func (a *APIs) UploadImages(c *gin.Context) {
	age, err := strconv.Atoi(c.Query("age"))
	if err != nil {
		Error(c, http.StatusBadRequest, errors.New("Invalid `age`"))
		return
	}
	gender, err := strconv.Atoi(c.Query("gender"))
	if err != nil {
		Error(c, http.StatusBadRequest, errors.New("Invalid `gender`"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}
	images := form.File["images[]"]

	l := label.Label{Age: age, Gender: label.Gender(gender)}
	if result, err := data.SaveImages(a.ImagesDir, l, images, c.SaveUploadedFile); err != nil {
		Error(c, http.StatusBadRequest, err)
	} else {
		c.JSON(http.StatusOK, result)
	}
}

// ListImages 학습 이미지 목록 반환
func (a *APIs) ListImages(c *gin.Context) {
	ds, err := data.Build(a.ImagesDir, data.Options{ImagesOnly: true})
	if err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dir":     ds.Dir,
		"total":   ds.Len(),
		"images":  ds.Samples(),
		"skipped": ds.Skipped,
	})
}

// HTTPError api 에러 메시지
type HTTPError struct {
	Error string `json:"error"`
}

// Error api 에러를 담은 json 응답 생성
func Error(c *gin.Context, status int, err error) {
	c.JSON(status, HTTPError{
		Error: err.Error(),
	})
}
