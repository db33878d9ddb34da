package run

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base"
	"github.com/relex/slog-shipper/defs"
	"github.com/relex/slog-shipper/sincedb"
	"github.com/relex/slog-shipper/testdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	defs.EnableTestMode()
}

func writeTestConfig(t *testing.T, dir string, port int) string {
	confPath := filepath.Join(dir, "config.yml")
	conf := fmt.Sprintf(`
dest_host: 127.0.0.1
dest_port: %d
max_connection_retry: 1
connection_retry_interval: 10ms
sincedb_path: %s
path: %s
file_mon_term: 1
batch_size: 2
`, port, filepath.Join(dir, "sincedb"), filepath.Join(dir, "*.log"))
	require.NoError(t, os.WriteFile(confPath, []byte(conf), 0644))
	return confPath
}

// unusedPort returns a local port which nothing listens on
func unusedPort(t *testing.T) int {
	lsnr, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lsnr.Addr().(*net.TCPAddr).Port
	require.NoError(t, lsnr.Close())
	return port
}

func TestLoadConfigFile(t *testing.T) {
	config, err := LoadConfigFile(testdata.GetConfigPath())
	assert.NoError(t, err)
	assert.Equal(t, "collector.example.com:5170", config.DestAddress())

	config, err = LoadConfigFile(testdata.GetLegacyConfigPath())
	assert.NoError(t, err)
	assert.Equal(t, 100, config.BatchSize)

	dir := t.TempDir()
	badPath := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(badPath, []byte("dest_host: localhost\n"), 0644))
	_, err = LoadConfigFile(badPath)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), ".dest_port")
	}

	_, err = LoadConfigFile(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestApplyLogSettings(t *testing.T) {
	dir := t.TempDir()
	config, err := LoadConfigFile(writeTestConfig(t, dir, 5170))
	require.NoError(t, err)
	config.LogLevel = "WARNING"
	config.LogPath = filepath.Join(dir, "shipper.log")

	require.NoError(t, ApplyLogSettings(config))
	defer func() {
		logger.SetOutput(os.Stderr)
		logger.SetLogLevel(logger.InfoLevel)
	}()
	logger.Info("below configured level")
	logger.Warn("at configured level")

	content, err := os.ReadFile(config.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "at configured level")
	assert.NotContains(t, string(content), "below configured level")

	config.LogPath = filepath.Join(dir, "missing", "shipper.log")
	assert.Error(t, ApplyLogSettings(config))
}

func TestRunExitsOnInvalidConfig(t *testing.T) {
	assert.Equal(t, 1, Run(filepath.Join(t.TempDir(), "missing.yml"), "testruninvalid_"))
}

func TestRunExitsWhenCollectorUnreachable(t *testing.T) {
	dir := t.TempDir()
	confPath := writeTestConfig(t, dir, unusedPort(t))

	start := time.Now()
	assert.Equal(t, 1, Run(confPath, "testrununreachable_"))
	assert.Less(t, time.Since(start), 10*time.Second)

	store, err := sincedb.Open(logger.Root(), filepath.Join(dir, "sincedb"), time.Hour)
	if assert.NoError(t, err, "sincedb lock is released on exit") {
		assert.NoError(t, store.Close())
	}
}

func TestRunExitsWhenSinceDBLocked(t *testing.T) {
	dir := t.TempDir()
	confPath := writeTestConfig(t, dir, unusedPort(t))

	store, err := sincedb.Open(logger.Root(), filepath.Join(dir, "sincedb"), time.Hour)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 1, Run(confPath, "testrunlocked_"))
}

func TestAgentStopDuringReconnection(t *testing.T) {
	dir := t.TempDir()
	config, err := LoadConfigFile(writeTestConfig(t, dir, unusedPort(t)))
	require.NoError(t, err)
	config.MaxConnectionRetry = 100
	config.ConnectionRetryInterval = time.Hour

	agent, err := NewAgent(logger.Root(), config, "testagentstop_")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- agent.Run()
	}()
	time.Sleep(100 * time.Millisecond)
	agent.Stop()
	agent.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, base.ErrTransport)
		assert.True(t, agent.StopRequested())
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after stop request")
	}
	agent.Shutdown()
	agent.Shutdown()

	metrics, err := agent.metricFactory.DumpMetrics(false)
	assert.NoError(t, err)
	assert.Contains(t, metrics, "testagentstop_transport_connect_attempts_total")
}
