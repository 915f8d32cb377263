package main

import (
	"errors"
	"os"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/commands"
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/event"
	"github.com/urfave/cli"
)

var version = "development"

func main() {
	app := cli.NewApp()
	app.Name = "agapp"
	app.Usage = "Age and gender estimation with transfer learning"
	app.Version = version
	app.Commands = commands.Commands
	app.ExitErrHandler = commands.HandleExit

	if err := app.Run(os.Args); err != nil {
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		event.Log.Error(err)
		os.Exit(1)
	}
}
