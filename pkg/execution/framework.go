package execution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alantheprice/proven/pkg/text"
	"github.com/alantheprice/proven/pkg/types"
)

// Framework describes one test toolchain: file naming, how to invoke it
// and how to read its output.
type Framework struct {
	Name             string
	Language         string
	DefaultTestDir   string
	DefaultSourceDir string

	testFile   func(name string) string
	sourceFile func(name string) string
	importHint func(t Target) string
	command    func(t Target) Command
	classify   func(res CommandResult) (*types.ExecutionResult, error)
}

// Target lays out the files for a logical name in the given directories
func (f Framework) Target(name, testDir, sourceDir string) Target {
	if testDir == "" {
		testDir = f.DefaultTestDir
	}
	if sourceDir == "" {
		sourceDir = f.DefaultSourceDir
	}
	return Target{
		Name:       name,
		TestDir:    testDir,
		SourceDir:  sourceDir,
		TestFile:   f.testFile(name),
		SourceFile: f.sourceFile(name),
	}
}

// ImportHint tells the model how tests reach the implementation
func (f Framework) ImportHint(t Target) string { return f.importHint(t) }

// Command returns the runner invocation for a target
func (f Framework) Command(t Target) Command { return f.command(t) }

var frameworks = map[string]Framework{
	"pytest": {
		Name:             "pytest",
		Language:         "python",
		DefaultTestDir:   "tests",
		DefaultSourceDir: "src",
		testFile:         func(name string) string { return "test_" + name + ".py" },
		sourceFile:       func(name string) string { return name + ".py" },
		importHint: func(t Target) string {
			return fmt.Sprintf("The implementation will live in %s and is importable as the top-level module `%s` (for example `from %s import ...`). Do not manipulate sys.path.",
				t.SourceFile, t.Name, t.Name)
		},
		command: func(t Target) Command {
			return Command{
				Name: "python3",
				Args: []string{"-m", "pytest", t.TestPath(), "-v", "--tb=short"},
				Env:  []string{"PYTHONPATH=" + absPath(t.SourceDir)},
			}
		},
		classify: classifyPytest,
	},
	"jest": {
		Name:             "jest",
		Language:         "javascript",
		DefaultTestDir:   "tests",
		DefaultSourceDir: "src",
		testFile:         func(name string) string { return name + ".test.js" },
		sourceFile:       func(name string) string { return name + ".js" },
		importHint: func(t Target) string {
			return fmt.Sprintf("The implementation will live in %s and is resolvable as the bare module `%s` (for example `const { ... } = require('%s');`). Use CommonJS exports.",
				t.SourceFile, t.Name, t.Name)
		},
		command: func(t Target) Command {
			return Command{
				Name: "npx",
				Args: []string{"--no-install", "jest", t.TestPath(), "--ci"},
				Env:  []string{"NODE_PATH=" + absPath(t.SourceDir), "CI=true"},
			}
		},
		classify: classifyJest,
	},
	"maven": {
		Name:             "maven",
		Language:         "java",
		DefaultTestDir:   "src/test/java",
		DefaultSourceDir: "src/main/java",
		testFile:         func(name string) string { return text.Pascal(name) + "Test.java" },
		sourceFile:       func(name string) string { return text.Pascal(name) + ".java" },
		importHint: func(t Target) string {
			class := text.Pascal(t.Name)
			return fmt.Sprintf("The test class must be `%sTest` in the default package using JUnit 5 (org.junit.jupiter.api). The class under test is `%s`, also in the default package.",
				class, class)
		},
		command: func(t Target) Command {
			return Command{
				Name: "mvn",
				Args: []string{"-q", "test", "-Dtest=" + text.Pascal(t.Name) + "Test"},
			}
		},
		classify: classifyMaven,
	},
}

// Lookup returns the framework registered under name
func Lookup(name string) (Framework, error) {
	f, ok := frameworks[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Framework{}, fmt.Errorf("unknown test framework '%s' (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered frameworks, sorted
func Names() []string {
	names := make([]string, 0, len(frameworks))
	for name := range frameworks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
