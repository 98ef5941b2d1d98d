package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// E2ETestSpec represents a single end-to-end test case
type E2ETestSpec struct {
	Name         string   `yaml:"name"`
	Input        string   `yaml:"input"`
	Args         []string `yaml:"args"`
	File         string   `yaml:"file"`          // "c" (default) or "h"
	Expect       []string `yaml:"expect"`        // Strings that must appear in output
	ExpectOrder  []string `yaml:"expect_order"`  // Strings that must appear in this order
	ExpectUnique []string `yaml:"expect_unique"` // Strings that must appear exactly once
	ExpectNot    []string `yaml:"expect_not"`    // Strings that must NOT appear in output
	ExpectErr    []string `yaml:"expect_err"`    // Strings that must appear on stderr of a failing run
	Skip         string   `yaml:"skip,omitempty"`
}

// E2ETestFile represents the e2e.yaml file structure
type E2ETestFile struct {
	Tests []E2ETestSpec `yaml:"tests"`
}

func TestE2EYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/e2e.yaml")
	if err != nil {
		t.Fatalf("failed to read e2e.yaml: %v", err)
	}

	var testFile E2ETestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse e2e.yaml: %v", err)
	}

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			tmpDir := t.TempDir()
			input := filepath.Join(tmpDir, "test.yaml")
			if err := os.WriteFile(input, []byte(tc.Input), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}

			var out, errOut bytes.Buffer
			cmd := newRootCmd(&out, &errOut)
			args := append([]string{"-o", tmpDir}, tc.Args...)
			cmd.SetArgs(append(args, input))
			err := cmd.Execute()

			if len(tc.ExpectErr) > 0 {
				if err == nil {
					t.Fatalf("expected failure, stderr: %s", errOut.String())
				}
				for _, exp := range tc.ExpectErr {
					if !strings.Contains(errOut.String(), exp) {
						t.Errorf("stderr missing %q:\n%s", exp, errOut.String())
					}
				}
			} else if err != nil {
				t.Fatalf("loopcc failed: %v\n%s", err, errOut.String())
			}

			if len(tc.Expect)+len(tc.ExpectOrder)+len(tc.ExpectUnique)+len(tc.ExpectNot) == 0 {
				return
			}
			ext := tc.File
			if ext == "" {
				ext = "c"
			}
			generated, err := os.ReadFile(filepath.Join(tmpDir, "test."+ext))
			if err != nil {
				t.Fatalf("no output: %v\n%s", err, errOut.String())
			}
			checkOutput(t, string(generated), tc)
		})
	}
}

func checkOutput(t *testing.T, output string, tc E2ETestSpec) {
	t.Helper()

	for _, exp := range tc.Expect {
		if !strings.Contains(output, exp) {
			t.Errorf("expected output to contain %q\nGot:\n%s", exp, output)
		}
	}

	pos := 0
	for _, exp := range tc.ExpectOrder {
		idx := strings.Index(output[pos:], exp)
		if idx < 0 {
			t.Errorf("expected %q (in order) after position %d\nGot:\n%s", exp, pos, output)
			break
		}
		pos += idx + len(exp)
	}

	for _, exp := range tc.ExpectUnique {
		if n := strings.Count(output, exp); n != 1 {
			t.Errorf("expected %q exactly once, found %d times\nGot:\n%s", exp, n, output)
		}
	}

	for _, exp := range tc.ExpectNot {
		if strings.Contains(output, exp) {
			t.Errorf("expected output NOT to contain %q\nGot:\n%s", exp, output)
		}
	}
}
