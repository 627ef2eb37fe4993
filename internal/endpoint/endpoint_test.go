package endpoint

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_EnvOverrideWins(t *testing.T) {
	t.Setenv(EndpointEnvVar, "/custom/path.sock")

	assert.Equal(t, "/custom/path.sock", Default())
}

func TestDefault_UsesRuntimeDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX path resolution")
	}

	t.Setenv(EndpointEnvVar, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	assert.Equal(t, filepath.Join("/run/user/1000", "context-cleaner", "supervisor.sock"), Default())
}

func TestTokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnvVar, "secret")
	assert.Equal(t, "secret", TokenFromEnv())

	t.Setenv(TokenEnvVar, "")
	assert.Empty(t, TokenFromEnv())
}

func TestIsPipe(t *testing.T) {
	assert.True(t, IsPipe(`\\.\pipe\context-cleaner-supervisor`))
	assert.False(t, IsPipe("/run/user/1000/context-cleaner/supervisor.sock"))
	assert.False(t, IsPipe(""))
}
