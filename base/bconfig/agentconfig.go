package bconfig

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/gobwas/glob"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/defs"
	"github.com/samber/lo"
)

// logLevels are the log_level values understood by the root logger, in lower case
var logLevels = []logger.LogLevel{
	logger.PanicLevel, logger.FatalLevel, "crit", "critical", logger.ErrorLevel,
	logger.WarnLevel, "warning", logger.InfoLevel, logger.DebugLevel, logger.TraceLevel,
}

// AgentConfig defines the root of slog-shipper config file
type AgentConfig struct {
	DestHost           string   `yaml:"dest_host"`
	DestPort           int      `yaml:"dest_port"`
	MaxConnectionRetry int      `yaml:"max_connection_retry"`
	SinceDBPath        string   `yaml:"sincedb_path"`
	Path               string   `yaml:"path"`            // glob pattern of files to watch
	ExpirationTerm     int      `yaml:"expiration_term"` // hours before an inactive record drops out of reconciliation
	FileMonTerm        int      `yaml:"file_mon_term"`   // poll interval in seconds
	BatchSize          int      `yaml:"batch_size"`
	LogLevel           string   `yaml:"log_level"`
	LogPath            string   `yaml:"log_path"`
	Prefix             string   `yaml:"prefix"`
	Exclude            []string `yaml:"exclude"`

	ReadBufferSize          datasize.ByteSize `yaml:"read_buffer_size"`
	ConnectionRetryInterval time.Duration     `yaml:"connection_retry_interval"`
	RotationPolicy          RotationPolicy    `yaml:"rotation_policy"`
	TruncationPolicy        TruncationPolicy  `yaml:"truncation_policy"`
}

// NewAgentConfig creates an AgentConfig filled with defaults for optional fields
func NewAgentConfig() AgentConfig {
	return AgentConfig{
		MaxConnectionRetry:      3,
		ExpirationTerm:          24,
		FileMonTerm:             10,
		BatchSize:               100,
		LogLevel:                "info",
		Exclude:                 nil,
		ReadBufferSize:          datasize.ByteSize(defs.HarvesterReadBufferSize),
		ConnectionRetryInterval: defs.TransportRetryInterval,
		RotationPolicy:          RotationRestart,
		TruncationPolicy:        TruncationReset,
	}
}

// DestAddress returns the collector endpoint as host:port
func (cfg *AgentConfig) DestAddress() string {
	return net.JoinHostPort(cfg.DestHost, strconv.Itoa(cfg.DestPort))
}

// Retention returns how long an inactive progress record stays in active reconciliation
func (cfg *AgentConfig) Retention() time.Duration {
	return time.Duration(cfg.ExpirationTerm) * time.Hour
}

// RootLogLevel returns log_level for the root logger, e.g. "warning" for "WARNING"
func (cfg *AgentConfig) RootLogLevel() logger.LogLevel {
	return logger.LogLevel(strings.ToLower(cfg.LogLevel))
}

// PollInterval returns the sleep between harvest cycles
func (cfg *AgentConfig) PollInterval() time.Duration {
	return time.Duration(cfg.FileMonTerm) * time.Second
}

// VerifyConfig verifies the configuration
func (cfg *AgentConfig) VerifyConfig() error {
	if len(cfg.DestHost) == 0 {
		return fmt.Errorf(".dest_host is unspecified")
	}
	if cfg.DestPort <= 0 || cfg.DestPort > 65535 {
		return fmt.Errorf(".dest_port is invalid: %d", cfg.DestPort)
	}
	if cfg.MaxConnectionRetry < 0 {
		return fmt.Errorf(".max_connection_retry cannot be negative: %d", cfg.MaxConnectionRetry)
	}
	if len(cfg.SinceDBPath) == 0 {
		return fmt.Errorf(".sincedb_path is unspecified")
	}
	if len(cfg.Path) == 0 {
		return fmt.Errorf(".path is unspecified")
	}
	if cfg.ExpirationTerm <= 0 {
		return fmt.Errorf(".expiration_term must be positive: %d", cfg.ExpirationTerm)
	}
	if cfg.FileMonTerm <= 0 {
		return fmt.Errorf(".file_mon_term must be positive: %d", cfg.FileMonTerm)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf(".batch_size must be positive: %d", cfg.BatchSize)
	}
	if !lo.Contains(logLevels, cfg.RootLogLevel()) {
		return fmt.Errorf(".log_level is unsupported: '%s'", cfg.LogLevel)
	}
	for i, pattern := range cfg.Exclude {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf(".exclude[%d]: invalid pattern '%s': %w", i, pattern, err)
		}
	}
	if cfg.ReadBufferSize < 16 {
		return fmt.Errorf(".read_buffer_size is too small: %s", cfg.ReadBufferSize.HR())
	}
	if cfg.ConnectionRetryInterval < 0 {
		return fmt.Errorf(".connection_retry_interval cannot be negative: %s", cfg.ConnectionRetryInterval)
	}
	return nil
}

// LogConfig prints every field, in the same order as the config file reference
func (cfg *AgentConfig) LogConfig(clogger logger.Logger) {
	clogger.Info("## CONFIGS")
	clogger.Infof("## dest_host: %s", cfg.DestHost)
	clogger.Infof("## dest_port: %d", cfg.DestPort)
	clogger.Infof("## max_connection_retry: %d", cfg.MaxConnectionRetry)
	clogger.Infof("## sincedb_path: %s", cfg.SinceDBPath)
	clogger.Infof("## path: %s", cfg.Path)
	clogger.Infof("## log_level: %s", cfg.LogLevel)
	clogger.Infof("## log_path: %s", cfg.LogPath)
	clogger.Infof("## prefix: %s", cfg.Prefix)
	clogger.Infof("## expiration_term: %dH", cfg.ExpirationTerm)
	clogger.Infof("## file_mon_term: %d", cfg.FileMonTerm)
	clogger.Infof("## batch_size: %d", cfg.BatchSize)
	clogger.Infof("## exclude: %v", cfg.Exclude)
	clogger.Infof("## read_buffer_size: %s", cfg.ReadBufferSize.HR())
	clogger.Infof("## connection_retry_interval: %s", cfg.ConnectionRetryInterval)
	clogger.Infof("## rotation_policy: %s", cfg.RotationPolicy)
	clogger.Infof("## truncation_policy: %s", cfg.TruncationPolicy)
}
