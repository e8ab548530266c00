package languages

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrLanguageNotFound = errors.New("language not found")
)

var (
	//go:embed templates/runner.ts
	tsRunner string

	//go:embed templates/runner.js
	jsRunner string

	//go:embed templates/runner.py
	pyRunner string
)

var all = []Language{TypeScript, JavaScript, Python}

var configs = map[Language]RuntimeConfig{
	TypeScript: {
		Extension:       "ts",
		RunCommand:      "bun",
		SandboxLanguage: "typescript",
		Image:           "oven/bun:1-slim",
	},
	JavaScript: {
		Extension:       "js",
		RunCommand:      "node",
		SandboxLanguage: "javascript",
		Image:           "node:20-slim",
	},
	Python: {
		Extension:       "py",
		RunCommand:      "python3",
		SandboxLanguage: "python",
		Image:           "python:3.11-slim",
	},
}

var templates = map[Language]string{
	TypeScript: tsRunner,
	JavaScript: jsRunner,
	Python:     pyRunner,
}

var aliases = map[string]Language{
	"ts": TypeScript,
	"js": JavaScript,
	"py": Python,
}

func init() {
	if err := checkRegistry(all, configs, templates); err != nil {
		panic(err)
	}
}

// checkRegistry fails if any language lacks a config or template, or if a
// table carries a key that is not a known language.
func checkRegistry(langs []Language, cfgs map[Language]RuntimeConfig, tmpls map[Language]string) error {
	known := make(map[Language]bool, len(langs))
	for _, l := range langs {
		known[l] = true
		cfg, ok := cfgs[l]
		if !ok || cfg.Extension == "" || cfg.RunCommand == "" {
			return fmt.Errorf("languages: %q has no runtime config", l)
		}
		if strings.TrimSpace(tmpls[l]) == "" {
			return fmt.Errorf("languages: %q has no runner template", l)
		}
	}
	for l := range cfgs {
		if !known[l] {
			return fmt.Errorf("languages: runtime config for unknown language %q", l)
		}
	}
	for l := range tmpls {
		if !known[l] {
			return fmt.Errorf("languages: runner template for unknown language %q", l)
		}
	}
	return nil
}

// All returns every supported language in a stable order.
func All() []Language {
	out := make([]Language, len(all))
	copy(out, all)
	return out
}

// Parse resolves a user supplied language name. Matching is case-insensitive
// and accepts the short aliases ts, js and py.
func Parse(s string) (Language, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if l, ok := aliases[name]; ok {
		return l, nil
	}
	l := Language(name)
	if _, ok := configs[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrLanguageNotFound, s)
	}
	return l, nil
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	_, ok := configs[l]
	return ok
}

// ConfigFor returns the runtime config for l. l must come from Parse or the
// package constants; anything else is a programming error and panics.
func ConfigFor(l Language) RuntimeConfig {
	cfg, ok := configs[l]
	if !ok {
		panic(fmt.Sprintf("languages: ConfigFor(%q): not a supported language", l))
	}
	return cfg
}

// RunnerTemplate returns the driver program source for l. Same contract as ConfigFor.
func RunnerTemplate(l Language) string {
	t, ok := templates[l]
	if !ok {
		panic(fmt.Sprintf("languages: RunnerTemplate(%q): not a supported language", l))
	}
	return t
}

var (
	jsExported = regexp.MustCompile(`module\.exports|exports\.runSolution|export\s+default|export\s+(async\s+)?function\s*\*?\s*runSolution\b|export\s+(const|let|var)\s+runSolution\b|export\s*\{[^}]*\brunSolution\b`)
	tsExported = regexp.MustCompile(`export\s+default|export\s+(async\s+)?function\s*\*?\s*runSolution\b|export\s+(const|let|var)\s+runSolution\b|export\s*\{[^}]*\brunSolution\b`)
)

// PrepareSolution returns the solution source as it should be uploaded. JS and
// TS sources that declare runSolution without exporting it get an export
// appended so the runner can import it.
func PrepareSolution(l Language, code string) string {
	switch l {
	case JavaScript:
		if !jsExported.MatchString(code) {
			return code + "\n\nmodule.exports = { runSolution };\n"
		}
	case TypeScript:
		if !tsExported.MatchString(code) {
			return code + "\n\nexport { runSolution };\n"
		}
	}
	return code
}
