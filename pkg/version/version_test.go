package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) {
	prev := GitCommit
	t.Cleanup(func() { GitCommit = prev })

	GitCommit = "0123456789abcdef"
	info := GetVersionInfo()

	assert.Equal(t, GetVersion(), info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, "01234567", info.Short())

	GitCommit = "abc"
	assert.Equal(t, "abc", GetVersionInfo().Short())
}
