package util

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFiles(t *testing.T) {
	rootPath := t.TempDir()
	t.Log("TestFiles: " + rootPath)

	assert.Nil(t, os.Mkdir(path.Join(rootPath, "subDir.log"), 0755))
	assert.Nil(t, os.WriteFile(path.Join(rootPath, "test1a.log"), []byte("Hello1a"), 0644))
	assert.Nil(t, os.WriteFile(path.Join(rootPath, "test1b.log"), []byte("Hello1b"), 0644))
	assert.Nil(t, os.WriteFile(path.Join(rootPath, "test2.txt"), []byte("Hello2"), 0644))

	t.Run("list files", func(tt *testing.T) {
		files, err := ListFiles(path.Join(rootPath, "*.log"))
		assert.Nil(tt, err)
		assert.Equal(tt, []string{
			path.Join(rootPath, "test1a.log"),
			path.Join(rootPath, "test1b.log"),
		}, files)
	})

	t.Run("list nothing", func(tt *testing.T) {
		files, err := ListFiles(path.Join(rootPath, "*.gz"))
		assert.Nil(tt, err)
		assert.Empty(tt, files)
	})

	t.Run("bad pattern", func(tt *testing.T) {
		_, err := ListFiles(path.Join(rootPath, "[a-"))
		assert.Error(tt, err)
	})

	t.Run("stat inode", func(tt *testing.T) {
		f1, err := os.Open(path.Join(rootPath, "test1a.log"))
		if !assert.Nil(tt, err) {
			return
		}
		defer f1.Close()
		ino1, err := StatInode(f1)
		assert.Nil(tt, err)
		assert.NotZero(tt, ino1)

		// renaming keeps the inode
		assert.Nil(tt, os.Rename(path.Join(rootPath, "test1a.log"), path.Join(rootPath, "test1c.log")))
		f2, err := os.Open(path.Join(rootPath, "test1c.log"))
		if !assert.Nil(tt, err) {
			return
		}
		defer f2.Close()
		ino2, err := StatInode(f2)
		assert.Nil(tt, err)
		assert.Equal(tt, ino1, ino2)
	})
}
