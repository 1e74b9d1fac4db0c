package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SynonymTables holds the static word tables consumed by the pipeline: the
// normalizer's synonym expansions and the matcher's institution
// abbreviations.
type SynonymTables struct {
	// Synonyms maps a question word to its canonical replacement
	// ("firm" -> "company").
	Synonyms map[string]string `yaml:"synonyms"`
	// Abbreviations maps a short institution form to its canonical name
	// ("IIT B" -> "IIT Bombay").
	Abbreviations map[string]string `yaml:"abbreviations"`
}

// LoadSynonyms reads the synonym tables from a YAML file. A missing file is
// not an error: the pipeline runs with empty tables.
func LoadSynonyms(path string) (*SynonymTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SynonymTables{}, nil
		}
		return nil, fmt.Errorf("failed to read synonyms file: %w", err)
	}

	var tables SynonymTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse synonyms file: %w", err)
	}
	return &tables, nil
}
