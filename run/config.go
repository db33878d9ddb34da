package run

import (
	"fmt"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base/bconfig"
	"github.com/relex/slog-shipper/util"
)

// LoadConfigFile loads config from the path, fills defaults for optional fields and verifies all fields
func LoadConfigFile(filepath string) (bconfig.AgentConfig, error) {
	config := bconfig.NewAgentConfig()
	if err := util.UnmarshalYamlFile(filepath, &config); err != nil {
		return config, fmt.Errorf("load config %s: %w", filepath, err)
	}
	if err := config.VerifyConfig(); err != nil {
		return config, fmt.Errorf("verify config %s: %w", filepath, err)
	}
	return config, nil
}

// ApplyLogSettings sets the level of the root logger and redirects it to log_path if specified
func ApplyLogSettings(config bconfig.AgentConfig) error {
	logger.SetLogLevel(config.RootLogLevel())
	if len(config.LogPath) == 0 {
		return nil
	}
	if err := logger.SetOutputFile(config.LogPath); err != nil {
		return fmt.Errorf("open log_path %s: %w", config.LogPath, err)
	}
	return nil
}
