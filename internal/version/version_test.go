package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_PrefersLdflags(t *testing.T) {
	oldV, oldC, oldD := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = oldV, oldC, oldD })

	Version, GitCommit, BuildDate = "v1.2.3", "abc123", "2026-01-02"
	v, c, d := Info()
	assert.Equal(t, "v1.2.3", v)
	assert.Equal(t, "abc123", c)
	assert.Equal(t, "2026-01-02", d)
}

func TestInfo_Defaults(t *testing.T) {
	v, c, d := Info()
	assert.NotEmpty(t, v)
	assert.NotEmpty(t, c)
	assert.NotEmpty(t, d)
}
