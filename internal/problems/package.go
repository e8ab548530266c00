package problems

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Package is a self-contained problem as exchanged with the CLI and the solve
// endpoint: the cases shown to the user and the ones withheld for grading.
type Package struct {
	ProblemText       string     `json:"problemText,omitempty"`
	FunctionSignature string     `json:"functionSignature,omitempty"`
	SampleTestCases   []TestCase `json:"sampleTestCases"`
	HiddenTestCases   []TestCase `json:"hiddenTestCases"`
}

// Split partitions stored test cases into sample and hidden sets, preserving
// order within each.
func Split(cases []TestCase) (sample, hidden []TestCase) {
	for _, tc := range cases {
		if tc.IsSampleCase {
			sample = append(sample, tc)
		} else {
			hidden = append(hidden, tc)
		}
	}
	return sample, hidden
}

// PackageFromProblem builds a Package from a stored problem.
func PackageFromProblem(p *Problem) *Package {
	sample, hidden := Split(p.TestCases)
	return &Package{
		ProblemText:       p.ProblemText,
		FunctionSignature: p.FunctionSignature,
		SampleTestCases:   sample,
		HiddenTestCases:   hidden,
	}
}

// LoadPackage reads a problem package from a .json, .yaml or .yml file.
func LoadPackage(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func ParseJSON(data []byte) (*Package, error) {
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse problem package: %w", err)
	}
	normalise(&pkg)
	return &pkg, nil
}

// ParseYAML decodes YAML into generic values first and re-encodes them as
// JSON so inputs and expected values keep their JSON representation.
func ParseYAML(data []byte) (*Package, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse problem package: %w", err)
	}
	raw, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("convert problem package to json: %w", err)
	}
	return ParseJSON(raw)
}

// stringKeys rewrites mappings decoded with non-string keys, such as
// {1: 2}, so they encode as JSON objects.
func stringKeys(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = stringKeys(e)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = stringKeys(e)
		}
		return out
	case []any:
		for i, e := range v {
			v[i] = stringKeys(e)
		}
		return v
	default:
		return v
	}
}

func normalise(pkg *Package) {
	for i := range pkg.SampleTestCases {
		pkg.SampleTestCases[i].IsSampleCase = true
	}
	for i := range pkg.HiddenTestCases {
		pkg.HiddenTestCases[i].IsSampleCase = false
	}
}
