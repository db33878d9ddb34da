// Package cmd provides the list of commands
package cmd

import (
	"github.com/relex/gotils/config"
)

func init() {
	config.AddParentCmdWithArgs("", "slog-shipper tails log files and ships new lines to a TCP collector", &rootCmd, rootCmd.preRun, rootCmd.postRun)
	config.AddCmdWithArgs("run ...", "Run shipper", &runCmd, runCmd.run)
	config.AddCmdWithArgs("check ...", "Load and verify config file, then print it", &checkCmd, checkCmd.check)
}

// Execute parses the command line and runs the specified command
func Execute() {
	// trigger init

	config.Execute()
}
