// Package testdata provides access to shared sample config for testing
package testdata

import (
	"path/filepath"
	"runtime"
)

var absoluteDirPath string

func init() {
	_, thisFile, _, _ := runtime.Caller(0)
	absoluteDirPath = filepath.Dir(thisFile)
}

// GetConfigPath returns the sample YAML config with every field set
func GetConfigPath() string {
	return filepath.Join(absoluteDirPath, "config_sample.yml")
}

// GetLegacyConfigPath returns a JSON config in the format of the python pybeats agent, without newer fields
func GetLegacyConfigPath() string {
	return filepath.Join(absoluteDirPath, "config_legacy.json")
}
