package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// decoder unmarshals one file format into a generic map.
type decoder struct {
	name      string
	unmarshal func([]byte, any) error
}

var (
	yamlDecoder = decoder{name: "yaml", unmarshal: yaml.Unmarshal}
	jsonDecoder = decoder{name: "json", unmarshal: json.Unmarshal}
)

func decoderFor(path string) (decoder, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yamlDecoder, nil
	case ".json":
		return jsonDecoder, nil
	default:
		return decoder{}, fmt.Errorf("unsupported config file extension: %q", ext)
	}
}

func (d decoder) decode(data []byte) (Config, error) {
	var m map[string]any
	if err := d.unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
	}
	return New(m), nil
}

// FromFile loads a settings file, choosing the format by extension
// (.yaml, .yml or .json). ${VAR} references in the file are replaced from
// the environment before parsing; unset variables expand to "".
func FromFile(path string) (Config, error) {
	d, err := decoderFor(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	return d.decode([]byte(os.ExpandEnv(string(data))))
}

// FromYAML parses YAML data as-is.
func FromYAML(data []byte) (Config, error) {
	return yamlDecoder.decode(data)
}

// FromJSON parses JSON data as-is.
func FromJSON(data []byte) (Config, error) {
	return jsonDecoder.decode(data)
}
