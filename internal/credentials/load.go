package credentials

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// LoadFile reads identities from a .csv, .json, .yaml or .yml file.
// Relative paths are resolved against baseDir (typically the config file directory).
//
// CSV files need a header row with "email" and "password" columns.
// JSON and YAML files hold an array of {email, password} objects.
func LoadFile(path, baseDir string) ([]Identity, error) {
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}

	var ids []Identity
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		ids, err = loadCSV(path)
	case ".json":
		ids, err = loadJSON(path)
	case ".yaml", ".yml":
		ids, err = loadYAML(path)
	default:
		return nil, fmt.Errorf("unsupported credentials format %q (use .csv, .json or .yaml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("loading %s: %w", path, ErrEmptyPool)
	}
	return ids, nil
}

func loadCSV(path string) ([]Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV must have header row and at least one data row")
	}

	emailCol, passCol := -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "email":
			emailCol = i
		case "password", "secret":
			passCol = i
		}
	}
	if emailCol < 0 || passCol < 0 {
		return nil, fmt.Errorf("CSV header must contain email and password columns")
	}

	ids := make([]Identity, 0, len(records)-1)
	for line, record := range records[1:] {
		if emailCol >= len(record) || passCol >= len(record) {
			return nil, fmt.Errorf("CSV row %d: missing columns", line+2)
		}
		ids = append(ids, Identity{Email: record[emailCol], Secret: record[passCol]})
	}
	return ids, nil
}

func loadJSON(path string) ([]Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []Identity
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("JSON must be an array of objects: %w", err)
	}
	return ids, nil
}

func loadYAML(path string) ([]Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []Identity
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("YAML must be a list of objects: %w", err)
	}
	return ids, nil
}
