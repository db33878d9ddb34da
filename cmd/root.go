package cmd

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/relex/gotils/logger"
)

type rootCommandState struct {
	CPUProfile string `name:"cpuprofile" help:"Write CPU profile to file."`
	MemProfile string `name:"memprofile" help:"Write heap profile to file on exit."`

	cpuProfileFile *os.File
	memProfileFile *os.File
}

var rootCmd rootCommandState

func (cmd *rootCommandState) preRun() {
	cmd.cpuProfileFile = createProfile("CPU", cmd.CPUProfile)
	if cmd.cpuProfileFile != nil {
		if err := pprof.StartCPUProfile(cmd.cpuProfileFile); err != nil {
			logger.Fatalf("failed to start CPU profiling: %s", err.Error())
		}
	}
	cmd.memProfileFile = createProfile("heap", cmd.MemProfile)
}

// postRun writes and closes profiles. It may be called more than once, e.g. before os.Exit.
func (cmd *rootCommandState) postRun() {
	if f := cmd.cpuProfileFile; f != nil {
		cmd.cpuProfileFile = nil
		pprof.StopCPUProfile()
		closeProfile(f)
	}
	if f := cmd.memProfileFile; f != nil {
		cmd.memProfileFile = nil
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			logger.Errorf("failed to write heap profile: %s", err.Error())
		}
		closeProfile(f)
	}
}

// createProfile creates the output file of a profile, or returns nil if the path is empty
func createProfile(kind string, path string) *os.File {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		logger.Fatalf("failed to create %s profile %s: %s", kind, path, err.Error())
	}
	logger.Infof("start %s profiling %s", kind, path)
	return f
}

func closeProfile(f *os.File) {
	if err := f.Close(); err != nil {
		logger.Errorf("failed to close profile %s: %s", f.Name(), err.Error())
	}
}
