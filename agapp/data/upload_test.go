package data

import (
	"bytes"
	"errors"
	"image/color"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeaders multipart 요청을 파싱하여 images[] 파일 목록 반환
func fileHeaders(t *testing.T, files map[string][]byte) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := w.CreateFormFile("images[]", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, "/images", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	return req.MultipartForm.File["images[]"]
}

func TestLabeledFilename(t *testing.T) {
	name := LabeledFilename(label.Label{Age: 7, Gender: label.Male}, "jpg")

	l, err := label.Extract(name)
	require.NoError(t, err)
	assert.Equal(t, label.Label{Age: 7, Gender: label.Male}, l)
	assert.Equal(t, "jpg", label.Format(name))
}

func TestSaveImages(t *testing.T) {
	src := filepath.Join(t.TempDir(), "face.png")
	writeImage(t, src, color.White)
	content, err := os.ReadFile(src)
	require.NoError(t, err)

	headers := fileHeaders(t, map[string][]byte{
		"face.png":  content,
		"notes.txt": []byte("x"),
	})

	dir := filepath.Join(t.TempDir(), "train")
	result, err := SaveImages(dir, label.Label{Age: 42, Gender: label.Female}, headers, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Filenames, 1)

	ds, err := Build(dir, Options{ImagesOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, 42, ds.Ages[0])
	assert.Equal(t, label.Female, ds.Genders[0])

	t.Run("SaveFailure", func(t *testing.T) {
		fail := func(*multipart.FileHeader, string) error { return errors.New("disk full") }
		result, err := SaveImages(dir, label.Label{Age: 42, Gender: label.Male}, headers[:1], fail)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, "disk full", result.Errors[0].Error)
	})

	t.Run("InvalidLabel", func(t *testing.T) {
		_, err := SaveImages(dir, label.Label{Age: -1, Gender: label.Male}, headers, nil)
		assert.Error(t, err)
		_, err = SaveImages(dir, label.Label{Age: 3, Gender: 2}, headers, nil)
		assert.Error(t, err)
	})
}
