package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// StateDir holds logs and run logs written by proven inside a project.
const StateDir = ".proven"

// EnsureStateDirIgnored appends the state directory to rootDir/.gitignore
// unless an existing rule already covers it. It reports whether the file
// was changed. A missing .gitignore is left alone: not every project is a
// git checkout.
func EnsureStateDirIgnored(rootDir string) (bool, error) {
	path := filepath.Join(rootDir, ".gitignore")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	rules := ignore.CompileIgnoreLines(strings.Split(string(content), "\n")...)
	if rules.MatchesPath(filepath.Join(StateDir, "workspace.log")) {
		return false, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	entry := StateDir + "/\n"
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		entry = "\n" + entry
	}
	if _, err := f.WriteString(entry); err != nil {
		return false, fmt.Errorf("update %s: %w", path, err)
	}
	return true, nil
}
