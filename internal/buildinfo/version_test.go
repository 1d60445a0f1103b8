package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, Commit, info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestString(t *testing.T) {
	v, c, b := Version, Commit, BuildTime
	Version, Commit, BuildTime = "v1.2.3", "abc123", "2024-03-01"
	defer func() { Version, Commit, BuildTime = v, c, b }()

	assert.Equal(t, "v1.2.3 (abc123) built at 2024-03-01", String())
}
