package configparser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/drone/envsubst"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

var ErrNoFilePath = errors.New("no file path provided")

// DefaultEnvFile is loaded before the YAML when present.
const DefaultEnvFile = ".env"

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not load env file %s: %w", path, err)
	}
	return nil
}

// LoadAndParseYaml reads the YAML file, substitutes ${VAR} and ${VAR:-default}
// references from the environment and decodes the result into dst.
func LoadAndParseYaml(filepath string, dst any) error {
	if filepath == "" {
		return ErrNoFilePath
	}

	if err := LoadEnvFile(DefaultEnvFile); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return fmt.Errorf("could not open YAML file: %w", err)
	}

	return ParseYaml(data, dst)
}

// ParseYaml substitutes environment references in data and decodes it into dst.
func ParseYaml(data []byte, dst any) error {
	replaced, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return fmt.Errorf("could not substitute env vars: %w", err)
	}

	if err := yaml.Unmarshal([]byte(replaced), dst); err != nil {
		return fmt.Errorf("could not decode YAML: %w", err)
	}
	return nil
}
