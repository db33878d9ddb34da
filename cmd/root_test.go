package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootProfiles(t *testing.T) {
	dir := t.TempDir()
	state := rootCommandState{
		CPUProfile: filepath.Join(dir, "cpu.prof"),
		MemProfile: filepath.Join(dir, "mem.prof"),
	}
	state.preRun()
	state.postRun()
	state.postRun()
	assert.Nil(t, state.cpuProfileFile)
	assert.Nil(t, state.memProfileFile)

	for _, path := range []string{state.CPUProfile, state.MemProfile} {
		stat, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, stat.Size(), path)
	}
}

func TestRootWithoutProfiles(t *testing.T) {
	state := rootCommandState{}
	state.preRun()
	assert.Nil(t, state.cpuProfileFile)
	assert.Nil(t, state.memProfileFile)
	state.postRun()
}
