package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/inference"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	"github.com/urfave/cli"
)

// EvaluateCommand 가중치를 로드하여 폴더 단위 성별 정확도 평가
var EvaluateCommand = cli.Command{
	Name:      "evaluate",
	Usage:     "Load weights and report gender accuracy over a folder of images",
	ArgsUsage: "[FOLDER]",
	Flags: flags(
		cli.StringFlag{Name: "test-dir", Usage: "evaluation images `DIR`", EnvVar: "AGAPP_TEST_DIR"},
		cli.StringFlag{Name: "weights, w", Usage: "weights `FILE` or saved model directory (default: --model)"},
		cli.BoolFlag{Name: "by-name", Usage: "restore only tensors whose names match, leave the rest initialized"},
		cli.BoolFlag{Name: "skip-unreadable", Usage: "skip images that cannot be decoded"},
	),
	Action: evaluateAction,
}

func evaluateAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	folder := cfg.TestDir
	if ctx.NArg() > 0 {
		folder = ctx.Args().First()
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

	weights := ctx.String("weights")
	if weights == "" {
		weights = cfg.ModelPath
	}
	weights = model.WeightsPath(weights)

	mode := model.Exact
	if ctx.Bool("by-name") {
		mode = model.ByName
	}

	w := ctx.App.Writer
	res, err := model.LoadWeights(m, weights, mode)
	if err != nil {
		return &exitError{err: fmt.Errorf("Error loading weights: %w", err), code: 1}
	}
	fmt.Fprintf(w, "Weights loaded successfully (%s, %d tensors).\n", res.Mode, len(res.Loaded))

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Destroy()
	}

	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := inference.Evaluate(c, m, folder, inference.Options{
		ImageSize:      cfg.ImageSize,
		SkipUnreadable: ctx.Bool("skip-unreadable"),
		Store:          store,
	})
	if err != nil {
		return err
	}

	report.Print(w)

	return nil
}
