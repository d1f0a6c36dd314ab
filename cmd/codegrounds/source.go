package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jxucoder/codegrounds/internal/config"
	"github.com/jxucoder/codegrounds/internal/harness"
	"github.com/jxucoder/codegrounds/internal/language"
)

// sourceFile is a program read from disk.
type sourceFile struct {
	Path     string
	Language language.Language
	Code     string
}

// detectLanguage picks the language from id, or from the file extension when
// id is empty.
func detectLanguage(path, id string) (language.Language, error) {
	if id != "" {
		l, ok := language.Lookup(id)
		if !ok {
			return language.Language{}, fmt.Errorf("unknown language %q", id)
		}
		return l, nil
	}
	ext := filepath.Ext(path)
	l, ok := language.ByExtension(ext)
	if !ok {
		return language.Language{}, fmt.Errorf("cannot detect language from extension %q; use --language", ext)
	}
	return l, nil
}

func readSource(path, langID string) (*sourceFile, error) {
	lang, err := detectLanguage(path, langID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	return &sourceFile{Path: path, Language: lang, Code: string(data)}, nil
}

func (f *sourceFile) program() harness.Program {
	return harness.Program{
		Source:   f.Code,
		Language: f.Language.ID,
		Version:  f.Language.Version,
		FileName: f.Language.FileName(),
	}
}

// casesFile is the YAML layout of a test-case file:
//
//	cases:
//	  - input: "1 2"
//	    expectedOutput: "3"
type casesFile struct {
	Cases []harness.TestCase `yaml:"cases"`
}

func loadCases(path string) ([]harness.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test cases: %w", err)
	}
	var f casesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing test cases: %w", err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("%s has no test cases", path)
	}
	return f.Cases, nil
}

// loadConfig reads and validates the config for local commands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
