// Package endpoint resolves the default supervisor endpoint and the
// environment-derived auth token.
package endpoint

import (
	"os"
	"path/filepath"
	"runtime"
)

// TokenEnvVar is the environment variable carrying the supervisor auth token.
const TokenEnvVar = "CONTEXT_CLEANER_SUPERVISOR_TOKEN"

// EndpointEnvVar overrides the default endpoint when set.
const EndpointEnvVar = "CONTEXT_CLEANER_SUPERVISOR_ENDPOINT"

// appDir is the runtime subdirectory holding the socket.
const appDir = "context-cleaner"

// windowsPipe is the named-pipe path used on platforms without domain sockets.
const windowsPipe = `\\.\pipe\context-cleaner-supervisor`

// Default returns the platform default endpoint: a socket path under the
// runtime directory on POSIX, a named pipe on Windows. The environment
// override wins when present.
func Default() string {
	if ep := os.Getenv(EndpointEnvVar); ep != "" {
		return ep
	}

	if runtime.GOOS == "windows" {
		return windowsPipe
	}

	return filepath.Join(runtimeDir(), appDir, "supervisor.sock")
}

// TokenFromEnv returns the auth token from the environment, or "".
func TokenFromEnv() string {
	return os.Getenv(TokenEnvVar)
}

// IsPipe reports whether ep names a Windows pipe rather than a socket path.
func IsPipe(ep string) bool {
	return len(ep) > 9 && ep[:9] == `\\.\pipe\`
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}

	return os.TempDir()
}
