package commands

import (
	"fmt"
	"os"
	"path"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: trace, debug, info, warn or error",
			Aliases: []string{"l"},
			EnvVars: []string{"ACORN_LOG_LEVEL", "LOGLEVEL"},
			Value:   "info",
		},
		&cli.BoolFlag{
			Name:    "log-caller",
			Usage:   "log the caller (aka line number and file)",
			EnvVars: []string{"ACORN_LOG_CALLER"},
		},
	}
}

// LoadEnv reads a .env file from the working directory, if there is one. It
// runs as the app's Before so subcommand flags see the values through EnvVars.
func LoadEnv(*cli.Context) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Before configures the global logrus logger from the log flags.
func Before(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	formatter := &logrus.JSONFormatter{}
	if c.Bool("log-caller") {
		logrus.SetReportCaller(true)
		formatter.CallerPrettyfier = func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", path.Base(f.File), f.Line)
		}
	}
	logrus.SetFormatter(formatter)

	return nil
}
