package commands

import (
	"bytes"
	"errors"
	"flag"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// brightnessBackbone 밝기에 비례하는 1x1 특징맵
type brightnessBackbone struct {
	channels int
}

func (b brightnessBackbone) Name() string { return "brightness" }

func (b brightnessBackbone) Close() error { return nil }

func (b brightnessBackbone) Features(img *data.Image) (model.FeatureMap, error) {
	var sum float32
	for _, v := range img.Pix {
		sum += v
	}
	m := sum / float32(len(img.Pix))

	fm := model.FeatureMap{Height: 1, Width: 1, Channels: b.channels, Data: make([]float32, b.channels)}
	for i := range fm.Data {
		if i%2 == 0 {
			fm.Data[i] = m
		} else {
			fm.Data[i] = 1 - m
		}
	}
	return fm, nil
}

func useFakeBackbone(t *testing.T, channels int) {
	t.Helper()

	orig := openBackbone
	openBackbone = func(dir string) (model.Backbone, error) {
		return brightnessBackbone{channels: channels}, nil
	}
	t.Cleanup(func() { openBackbone = orig })
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func imageDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "030_1_a.png"), color.White)
	writePNG(t, filepath.Join(dir, "035_1_b.png"), color.White)
	writePNG(t, filepath.Join(dir, "060_0_c.png"), color.Black)
	writePNG(t, filepath.Join(dir, "065_0_d.png"), color.Black)
	writePNG(t, filepath.Join(dir, "bad_filename.png"), color.Black)
	return dir
}

// recordExit 종료 코드를 기록, 호출되지 않으면 -1
func recordExit(t *testing.T) *int {
	t.Helper()

	code := -1
	orig := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = orig })

	return &code
}

func testApp() (*cli.App, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer

	app := cli.NewApp()
	app.Name = "agapp"
	app.Commands = Commands
	app.ExitErrHandler = HandleExit
	app.Writer = &out
	app.ErrWriter = &errOut

	return app, &out, &errOut
}

func TestLoadConfig(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("architecture", "", "")
	set.Int("epochs", 0, "")
	set.String("train-dir", "", "")
	set.Bool("no-progress", false, "")
	require.NoError(t, set.Parse([]string{"--architecture", "efficientnetb0", "--epochs", "3", "--train-dir", "/data/train", "--no-progress"}))

	cfg, err := loadConfig(cli.NewContext(cli.NewApp(), set, nil))
	require.NoError(t, err)
	assert.Equal(t, "efficientnetb0", cfg.Architecture)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, "/data/train", cfg.TrainDir)
	assert.False(t, cfg.Progress)
	assert.Equal(t, 32, cfg.BatchSize)

	set = flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("architecture", "", "")
	require.NoError(t, set.Parse([]string{"--architecture", "vgg16"}))
	_, err = loadConfig(cli.NewContext(cli.NewApp(), set, nil))
	assert.True(t, errors.Is(err, model.ErrUnknownArchitecture))
}

func TestTrainEvaluate(t *testing.T) {
	useFakeBackbone(t, 1280)

	images := imageDir(t)
	modelPath := filepath.Join(t.TempDir(), "EfficientNetB0.model")

	app, out, _ := testApp()
	err := app.Run([]string{"agapp", "train",
		"--architecture", "efficientnetb0",
		"--train-dir", images,
		"--test-dir", images,
		"--model", modelPath,
		"--epochs", "2",
		"--batch-size", "2",
		"--no-progress",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Model training completed and saved.")

	_, err = os.Stat(filepath.Join(modelPath, "config.yaml"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(modelPath, "weights.bin"))
	require.NoError(t, err)

	t.Run("Exact", func(t *testing.T) {
		app, out, _ := testApp()
		err := app.Run([]string{"agapp", "evaluate",
			"--architecture", "efficientnetb0",
			"--model", modelPath,
			images,
		})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Weights loaded successfully (exact, 4 tensors).")
		assert.Contains(t, out.String(), "Total Images: 4\n")
		assert.Contains(t, out.String(), "Gender Prediction Accuracy: ")
		assert.NotContains(t, out.String(), "bad_filename.png")
		// efficientnetb0 는 성별만 출력
		assert.NotContains(t, out.String(), "Predicted Age")
	})

	t.Run("ExactMismatch", func(t *testing.T) {
		code := recordExit(t)
		app, out, errOut := testApp()
		err := app.Run([]string{"agapp", "evaluate",
			"--architecture", "efficientnetv2b0",
			"--model", modelPath,
			images,
		})
		var lerr *model.WeightLoadError
		require.True(t, errors.As(err, &lerr))
		assert.Equal(t, model.Exact, lerr.Mode)
		assert.Contains(t, lerr.Missing, "dense/kernel")
		assert.Equal(t, 1, *code)
		assert.Equal(t, 1, strings.Count(errOut.String(), "Error loading weights"))
		assert.NotContains(t, out.String(), "Total Images")
	})

	t.Run("ByName", func(t *testing.T) {
		app, out, _ := testApp()
		err := app.Run([]string{"agapp", "evaluate",
			"--architecture", "efficientnetv2b0",
			"--model", modelPath,
			"--by-name",
			images,
		})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Weights loaded successfully (by-name, 4 tensors).")
		assert.Contains(t, out.String(), "Total Images: 4\n")
	})

	t.Run("EmptyFolder", func(t *testing.T) {
		app, out, _ := testApp()
		err := app.Run([]string{"agapp", "evaluate",
			"--architecture", "efficientnetb0",
			"--model", modelPath,
			t.TempDir(),
		})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "No images to evaluate")
	})

	t.Run("Store", func(t *testing.T) {
		app, out, _ := testApp()
		err := app.Run([]string{"agapp", "evaluate",
			"--architecture", "efficientnetb0",
			"--model", modelPath,
			"--result-dsn", filepath.Join(t.TempDir(), "results.db"),
			images,
		})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Total Images: 4\n")
	})
}

func TestEvaluateMissingWeights(t *testing.T) {
	useFakeBackbone(t, 2048)
	code := recordExit(t)

	app, _, errOut := testApp()
	err := app.Run([]string{"agapp", "evaluate",
		"--model", filepath.Join(t.TempDir(), "none.model"),
		imageDir(t),
	})
	var lerr *model.WeightLoadError
	assert.True(t, errors.As(err, &lerr))
	assert.Equal(t, 1, *code)
	assert.Equal(t, 1, strings.Count(errOut.String(), "Error loading weights"))
}

func TestHandleExit(t *testing.T) {
	code := recordExit(t)
	app, _, errOut := testApp()
	ctx := cli.NewContext(app, flag.NewFlagSet("test", flag.ContinueOnError), nil)

	HandleExit(ctx, errors.New("plain"))
	assert.Equal(t, -1, *code)
	assert.Empty(t, errOut.String())

	HandleExit(ctx, &exitError{err: errors.New("boom"), code: 3})
	assert.Equal(t, 3, *code)
	assert.Equal(t, "boom\n", errOut.String())
}
