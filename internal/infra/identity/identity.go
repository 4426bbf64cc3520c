package infra_identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/humanbelnik/kinomatch/internal/model"
)

const fileName = "identity"

// DefaultPath is where the terminal client keeps its device identity.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "kinomatch", fileName)
}

// LoadOrCreate returns the device identity stored at path, generating and
// persisting a new one on first use. The identity is not a credential.
func LoadOrCreate(path string) (model.UserID, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		id := strings.TrimSpace(string(raw))
		if _, perr := uuid.Parse(id); perr == nil {
			return id, nil
		}
		// unreadable content is replaced below
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read identity %s: %w", path, err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write identity %s: %w", path, err)
	}
	return id, nil
}
