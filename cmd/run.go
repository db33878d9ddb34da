package cmd

import (
	"context"
	"os"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/defs"
	"github.com/relex/slog-shipper/run"
	"github.com/relex/slog-shipper/util"
)

type runCommandState struct {
	Config      string `help:"Configuration file path, YAML or JSON"`
	MetricsAddr string `help:"The listener address to expose Prometheus metrics and debug information, empty to disable"`
	TestMode    bool   `help:"Use test mode config: fast retry and short timeout"`
}

var runCmd runCommandState = runCommandState{
	Config:      "config.yml",
	MetricsAddr: ":9336",
	TestMode:    false,
}

func (cmd *runCommandState) run(args []string) {
	if cmd.TestMode {
		defs.EnableTestMode()
	}

	msrv, err := util.LaunchMetricsListener(cmd.MetricsAddr)
	if err != nil {
		logger.Fatalf("failed to launch metrics listener: %s", err.Error())
	}

	exitCode := run.Run(cmd.Config, "slogshipper_")

	if msrv != nil {
		if err := msrv.Shutdown(context.Background()); err != nil {
			logger.Errorf("error shutting down metrics listener: %v", err)
		}
	}
	rootCmd.postRun()
	os.Exit(exitCode)
}

type checkCommandState struct {
	Config string `help:"Configuration file path, YAML or JSON"`
}

var checkCmd checkCommandState = checkCommandState{
	Config: "config.yml",
}

func (cmd *checkCommandState) check(args []string) {
	config, err := run.LoadConfigFile(cmd.Config)
	if err != nil {
		logger.Fatal(err)
	}
	config.LogConfig(logger.WithField(defs.LabelComponent, "ConfigCheck"))
}
