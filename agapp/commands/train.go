package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/train"
	"github.com/urfave/cli"
)

// TrainCommand 나이/성별 헤드 학습 후 모델 저장
var TrainCommand = cli.Command{
	Name:  "train",
	Usage: "Train age and gender heads on a frozen backbone and save the model",
	Flags: flags(
		cli.StringFlag{Name: "train-dir", Usage: "training images `DIR`", EnvVar: "AGAPP_TRAIN_DIR"},
		cli.StringFlag{Name: "test-dir", Usage: "validation images `DIR`", EnvVar: "AGAPP_TEST_DIR"},
		cli.IntFlag{Name: "epochs, e", Usage: "number of `EPOCHS`", EnvVar: "AGAPP_EPOCHS"},
		cli.IntFlag{Name: "batch-size", Usage: "`SIZE` of a mini batch", EnvVar: "AGAPP_BATCH_SIZE"},
		cli.Float64Flag{Name: "learning-rate", Usage: "adam learning `RATE`", EnvVar: "AGAPP_LEARNING_RATE"},
		cli.Float64Flag{Name: "validation-split", Usage: "hold out `FRACTION` of the training images for validation"},
		cli.BoolFlag{Name: "no-progress", Usage: "hide the progress bar"},
	),
	Action: trainAction,
}

func trainAction(ctx *cli.Context) error {
	start := time.Now()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	trainSet, err := data.Build(cfg.TrainDir, data.Options{ImagesOnly: true})
	if err != nil {
		return err
	}

	var validSet *data.Dataset
	if cfg.ValidationSplit > 0 {
		if trainSet, validSet, err = data.Split(trainSet, cfg.ValidationSplit, cfg.Seed); err != nil {
			return err
		}
	} else if fi, err := os.Stat(cfg.TestDir); err == nil && fi.IsDir() {
		if validSet, err = data.Build(cfg.TestDir, data.Options{ImagesOnly: true}); err != nil {
			return err
		}
	} else {
		log.Warnf("train: no validation images in %s", cfg.TestDir)
	}

	arch, err := model.LookupArchitecture(cfg.Architecture)
	if err != nil {
		return err
	}

	bb, err := openBackbone(cfg.BackboneDir)
	if err != nil {
		return err
	}
	defer bb.Close()

	m, err := model.Assemble(arch, bb, cfg.Seed)
	if err != nil {
		return err
	}
	log.Debugf("train: %s", m)

	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := train.DefaultOptions()
	opts.Epochs = cfg.Epochs
	opts.BatchSize = cfg.BatchSize
	opts.ImageSize = cfg.ImageSize
	opts.LearningRate = cfg.LearningRate
	opts.Seed = cfg.Seed
	opts.Shuffle = true
	opts.CacheSize = cfg.CacheSize
	opts.Progress = cfg.Progress

	result, err := train.Run(c, m, trainSet, validSet, opts)
	if err != nil {
		return err
	}

	m.TrainingResult = result.Summary()
	m.Description = fmt.Sprintf("trained on %s, %d images", cfg.TrainDir, trainSet.Len())
	if err := m.Save(cfg.ModelPath); err != nil {
		return err
	}

	log.Infof("train: completed in %s", time.Since(start).Round(time.Second))
	fmt.Fprintln(ctx.App.Writer, "Model training completed and saved.")

	return nil
}
