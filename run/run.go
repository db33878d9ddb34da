// Package run runs the actual log shipper
package run

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/defs"
)

// Run runs the shipper until stopped by signals and returns the exit code for the process
//
// The exit code is non-zero when the config is invalid, the sincedb can't be opened, or the collector stays
// unreachable after all retries. A signal always leads to a clean teardown and zero.
func Run(configFile string, metricPrefix string) int {
	runLogger := logger.WithField(defs.LabelComponent, "Launcher")

	config, err := LoadConfigFile(configFile)
	if err != nil {
		runLogger.Error(err)
		return 1
	}
	if err := ApplyLogSettings(config); err != nil {
		runLogger.Error(err)
		return 1
	}
	config.LogConfig(runLogger)

	agent, err := NewAgent(logger.Root(), config, metricPrefix)
	if err != nil {
		runLogger.Error(err)
		return 1
	}

	sigChan := make(chan os.Signal, 10)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	runDone := make(chan struct{})
	go func() {
		select {
		case s := <-sigChan:
			runLogger.Infof("received %s, shutting down", s)
			agent.Stop()
		case <-runDone:
		}
	}()

	runErr := agent.Run()
	stopRequested := agent.StopRequested()
	close(runDone)
	agent.Shutdown()

	if runErr != nil && !stopRequested {
		runLogger.Errorf("exit on error: %s", runErr.Error())
		return 1
	}
	runLogger.Info("clean exit")
	return 0
}
