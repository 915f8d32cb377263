// Package commands agapp 명령행 명령 (train, evaluate, serve)
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/backbone"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/config"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/data/db"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/event"
	"github.com/urfave/cli"
)

var log = event.Log

// openBackbone 백본 생성 함수, 테스트에서 교체
var openBackbone = backbone.Open

// Commands 사용 가능한 명령 목록
var Commands = []cli.Command{
	TrainCommand,
	EvaluateCommand,
	ServeCommand,
}

// configFlags 모든 명령에 공통인 옵션
var configFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "configuration `FILE` (yaml)",
		EnvVar: "AGAPP_CONFIG",
	},
	cli.StringFlag{
		Name:   "log-level",
		Usage:  "log `LEVEL` (trace, debug, info, warning, error)",
		EnvVar: "AGAPP_LOG_LEVEL",
	},
	cli.StringFlag{
		Name:   "architecture, a",
		Usage:  "model architecture `NAME`",
		EnvVar: "AGAPP_ARCHITECTURE",
	},
	cli.StringFlag{
		Name:   "backbone, b",
		Usage:  "pretrained backbone `DIR`",
		EnvVar: "AGAPP_BACKBONE",
	},
	cli.StringFlag{
		Name:   "model, m",
		Usage:  "saved model `PATH`",
		EnvVar: "AGAPP_MODEL",
	},
	cli.StringFlag{
		Name:   "result-driver",
		Usage:  "result store sql `DRIVER` (sqlite3, mysql)",
		EnvVar: "AGAPP_RESULT_DRIVER",
	},
	cli.StringFlag{
		Name:   "result-dsn",
		Usage:  "result store `DSN`, results are not stored when empty",
		EnvVar: "AGAPP_RESULT_DSN",
	},
	cli.Int64Flag{
		Name:   "seed",
		Usage:  "random `SEED`",
		EnvVar: "AGAPP_SEED",
	},
}

func flags(extra ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, configFlags...), extra...)
}

// loadConfig 설정 파일, 환경 변수, 명령행 옵션 순으로 적용
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	cfg.ApplyOverrides(config.Overrides{
		TrainDir:        ctx.String("train-dir"),
		TestDir:         ctx.String("test-dir"),
		ModelPath:       ctx.String("model"),
		Architecture:    ctx.String("architecture"),
		BackboneDir:     ctx.String("backbone"),
		Epochs:          ctx.Int("epochs"),
		BatchSize:       ctx.Int("batch-size"),
		LearningRate:    ctx.Float64("learning-rate"),
		ValidationSplit: ctx.Float64("validation-split"),
		Seed:            ctx.Int64("seed"),
		LogLevel:        ctx.String("log-level"),
		ResultDriver:    ctx.String("result-driver"),
		ResultDSN:       ctx.String("result-dsn"),
		Listen:          ctx.String("listen"),
		EvaluationRoot:  ctx.String("evaluation-root"),
	})
	if ctx.Bool("no-progress") {
		cfg.Progress = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	event.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// exit 종료 함수, 테스트에서 교체
var exit = os.Exit

// exitError 메시지 출력 후 code 로 종료하는 명령 오류
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// ExitCode cli.ExitCoder 구현
func (e *exitError) ExitCode() int { return e.code }

// HandleExit cli.ExitCoder 오류를 한번만 출력하고 종료, 그 외 오류는 호출자가 처리
func HandleExit(ctx *cli.Context, err error) {
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		return
	}

	if msg := err.Error(); msg != "" {
		fmt.Fprintln(errWriter(ctx), msg)
	}
	exit(ec.ExitCode())
}

func errWriter(ctx *cli.Context) io.Writer {
	if ctx.App.ErrWriter != nil {
		return ctx.App.ErrWriter
	}
	return os.Stderr
}

// openStore 결과 저장소 연결, DSN 이 없으면 nil
func openStore(cfg *config.Config) (*db.DBconn, error) {
	if cfg.ResultDSN == "" {
		return nil, nil
	}

	return db.New(db.Config{
		DriverName: cfg.ResultDriver,
		ConnInfo:   cfg.ResultDSN,
		TableName:  cfg.ResultTable,
	})
}
