package test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base/bconfig"
	"github.com/relex/slog-shipper/run"
)

// runningAgent is a shipper running in background against a test collector
type runningAgent struct {
	agent         *run.Agent
	done          chan error
	stopRequested bool // whether Stop had been called when Run returned; valid after wait
}

// newTestConfig creates a config watching *.log under dir, shipping to the local port with one-line batches
func newTestConfig(dir string, port int) bconfig.AgentConfig {
	config := bconfig.NewAgentConfig()
	config.DestHost = "127.0.0.1"
	config.DestPort = port
	config.MaxConnectionRetry = 3
	config.ConnectionRetryInterval = 50 * time.Millisecond
	config.SinceDBPath = filepath.Join(dir, "sincedb")
	config.Path = filepath.Join(dir, "*.log")
	config.FileMonTerm = 1
	config.BatchSize = 1
	return config
}

func startAgent(config bconfig.AgentConfig) (*runningAgent, error) {
	if err := config.VerifyConfig(); err != nil {
		return nil, err
	}
	agent, err := run.NewAgent(logger.Root(), config, "teste2e_")
	if err != nil {
		return nil, err
	}
	ra := &runningAgent{
		agent: agent,
		done:  make(chan error, 1),
	}
	go func() {
		err := agent.Run()
		ra.stopRequested = agent.StopRequested()
		ra.done <- err
	}()
	return ra, nil
}

// stop requests stop, waits for the harvest loop to return and runs the shutdown flush
func (ra *runningAgent) stop(t *testing.T) error {
	ra.agent.Stop()
	return ra.wait(t)
}

// wait waits for the harvest loop to return, then runs the shutdown flush
func (ra *runningAgent) wait(t *testing.T) error {
	select {
	case err := <-ra.done:
		ra.agent.Shutdown()
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("agent did not stop in time")
		return nil
	}
}
