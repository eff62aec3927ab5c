package sessiondir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TempSessions names the subdirectory holding per-session temp files.
const TempSessions = "TEMP_SESSIONS"

// ErrStorageUnavailable indicates session storage could not be provisioned.
// Callers should treat it as recoverable and retry or surface it.
var ErrStorageUnavailable = errors.New("session storage unavailable")

// Provider hands out subdirectories under a fixed session root, creating
// them on demand.
type Provider struct {
	root string
}

// New builds a Provider rooted at the given directory.
func New(root string) *Provider {
	return &Provider{root: root}
}

// Root returns the session root directory.
func (p *Provider) Root() string {
	return p.root
}

// SessionDirectory returns <root>/<subdirectory>, creating it if absent.
func (p *Provider) SessionDirectory(subdirectory string) (string, error) {
	if strings.TrimSpace(p.root) == "" {
		return "", fmt.Errorf("%w: session root not configured", ErrStorageUnavailable)
	}
	dir := filepath.Join(p.root, subdirectory)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %q: %v", ErrStorageUnavailable, dir, err)
	}
	return dir, nil
}
