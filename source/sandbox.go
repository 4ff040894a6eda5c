package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lvillar/pdfmcp"
)

// ValidatePath canonicalizes path and checks it against the allowed
// resource directories. An empty dirs list allows everything. The returned
// path has symlinks resolved, so later file access cannot escape the
// sandbox through a link.
//
// Paths that do not exist yet (output files) are allowed when their parent
// directory canonicalizes into an allowed directory.
func ValidatePath(path string, dirs []string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", pdfmcp.ErrInvalidParam, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if os.IsNotExist(err) {
		// Resolve the parent instead and re-attach the final element.
		parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
		if err != nil {
			return "", fmt.Errorf("source: resolving %s: %w", path, err)
		}
		resolved = filepath.Join(parent, filepath.Base(abs))
	} else if err != nil {
		return "", fmt.Errorf("source: resolving %s: %w", path, err)
	}

	if len(dirs) == 0 {
		return resolved, nil
	}

	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		canon, err := filepath.EvalSymlinks(absDir)
		if err != nil {
			continue
		}
		if resolved == canon || strings.HasPrefix(resolved, canon+string(filepath.Separator)) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", pdfmcp.ErrPathDenied, path)
}
