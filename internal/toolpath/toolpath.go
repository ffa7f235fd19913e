// Package toolpath locates external command-line tools.
package toolpath

import (
	"os"
	"os/exec"
	"runtime"
)

// Find resolves an executable by explicit path, PATH lookup, or
// conventional install locations. Extra locations passed by the caller
// are checked before the generic per-OS ones. Returns "" when nothing
// is found.
func Find(name, explicitPath string, locations ...string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}

	// Try PATH lookup
	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	// Platform-specific common locations
	switch runtime.GOOS {
	case "darwin":
		locations = append(locations,
			"/usr/local/bin/"+name,
			"/opt/homebrew/bin/"+name,
		)
	case "linux":
		locations = append(locations,
			"/usr/bin/"+name,
			"/usr/local/bin/"+name,
		)
	}

	for _, p := range locations {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
