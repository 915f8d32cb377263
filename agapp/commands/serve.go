package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/api"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
	"github.com/urfave/cli"
)

// ServeCommand 저장 된 모델로 추론/평가 api 제공
var ServeCommand = cli.Command{
	Name:  "serve",
	Usage: "Serve inference and evaluation over http with a saved model",
	Flags: flags(
		cli.StringFlag{Name: "listen, l", Usage: "listen `ADDRESS`", EnvVar: "AGAPP_LISTEN"},
		cli.StringFlag{Name: "evaluation-root", Usage: "`DIR` containing the folders /evaluations may read", EnvVar: "AGAPP_EVALUATION_ROOT"},
		cli.StringFlag{Name: "train-dir", Usage: "`DIR` for uploaded training images", EnvVar: "AGAPP_TRAIN_DIR"},
	),
	Action: serveAction,
}

func serveAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	bb, err := openBackbone(cfg.BackboneDir)
	if err != nil {
		return err
	}
	defer bb.Close()

	m, err := model.Load(cfg.ModelPath, bb)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Destroy()
	}

	a := &api.APIs{
		M:         m,
		Store:     store,
		ImageSize: cfg.ImageSize,
		ImagesDir: cfg.TrainDir,

		EvaluationRoot: cfg.EvaluationRoot,
	}

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.Router(a),
	}

	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Infof("serve: listening on %s (model %s)", cfg.Listen, m.Arch.Name)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-c.Done():
	}

	log.Info("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
