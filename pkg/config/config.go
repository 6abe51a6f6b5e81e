// Configuration comes from flags and a single config file. The file is YAML
// mapping flag names to values, so everything tunable has exactly one name in
// both places.

package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

var configFilePath = flag.String("config_file", "config.yaml", "Path to the configuration file.")

// InitFlags initializes the flags from the config file specified by the
// -config_file flag. It should be called after defining all flags and before
// using them; values from the file override the command line.
func InitFlags() {
	flag.Parse()

	if *configFilePath == "" {
		slog.Info("Config file not specified. Skipping config initialization.")
		return
	}
	configBytes, err := os.ReadFile(*configFilePath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath, "error", err)
		return
	}
	if err != nil { // If the config file cannot be read, we skip loading and use default flag values.
		slog.Error("Failed to read config file.", "error", err)
		return
	}
	if err := setConfigFlags(configBytes); err != nil {
		slog.Error("Failed to set flags from config file.", "error", err)
		return
	}
}

// setConfigFlags applies every entry of the config file to its flag. Unknown
// entries are an error rather than a skip, so typos surface at startup.
func setConfigFlags(configBytes []byte) error {
	conf, err := parseConfig(configBytes)
	if err != nil {
		return err
	}
	for _, flagName := range slices.Sorted(maps.Keys(conf)) {
		if flag.Lookup(flagName) == nil {
			return fmt.Errorf("flag '%s' from config file is not registered", flagName)
		}
		stringValue, err := configValueToString(conf[flagName])
		if err != nil {
			return fmt.Errorf("failed to convert '%s': %w", flagName, err)
		}
		if err := flag.Set(flagName, stringValue); err != nil {
			return fmt.Errorf("failed to set flag '%s': %w", flagName, err)
		}
	}
	return nil
}

func parseConfig(configBytes []byte) (map[string]any, error) {
	var conf map[string]any
	if err := yaml.Unmarshal(configBytes, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return conf, nil
}

// configValueToString converts a config value to its string representation
// suitable for flag setting.
func configValueToString(value any) (string, error) {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}

// CollectUnregisteredFlags returns an error for each config file entry that
// does not correspond to a registered flag. Meant for tests guarding the
// shipped config file against drift.
func CollectUnregisteredFlags(configBytes []byte) []error {
	conf, err := parseConfig(configBytes)
	if err != nil {
		return []error{err}
	}
	errs := make([]error, 0)
	for _, flagName := range slices.Sorted(maps.Keys(conf)) {
		if flag.Lookup(flagName) == nil {
			errs = append(errs, fmt.Errorf("flag '%s' has not been registered", flagName))
		}
	}
	return errs
}
