package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names searched for, in order.
const (
	ConfigFileName    = "neat.yaml"
	ConfigFileNameAlt = "neat.yml"
)

// currentConfig holds the configuration loaded by the last Load call
// so commands can reach it without threading it everywhere.
var currentConfig *Config

// Current returns the most recently loaded configuration, or nil when
// Load has not run.
func Current() *Config {
	return currentConfig
}

// Reset clears the loaded configuration. Used by tests.
func Reset() {
	currentConfig = nil
}

// Load builds the configuration. cfgFile, when non-empty, names an
// explicit config file; otherwise neat.yaml/neat.yml is searched for
// in the working directory and then upward. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"rules_dir":     DefaultRulesDir,
		"workflows_dir": DefaultWorkflowsDir,
		"state_path":    DefaultStatePath,
		"server.host":   DefaultHost,
		"server.port":   DefaultPort,
		"log.level":     DefaultLogLevel,
		"log.format":    DefaultLogFormat,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file: explicit path beats discovery.
	projectRoot, _ := os.Getwd()
	if cfgFile == "" {
		if root := FindProjectRoot(projectRoot); root != "" {
			projectRoot = root
			cfgFile = findConfigFile(root)
		}
	} else {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			cfgFile = abs
			projectRoot = filepath.Dir(abs)
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment: NEAT_SERVER__PORT -> server.port.
	if err := k.Load(env.Provider("NEAT_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "NEAT_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, highest priority. Only flags the user actually set.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			switch f.Name {
			case "rules-dir":
				return "rules_dir", posflag.FlagVal(flags, f)
			case "workflows-dir":
				return "workflows_dir", posflag.FlagVal(flags, f)
			case "state":
				return "state_path", posflag.FlagVal(flags, f)
			case "port":
				return "server.port", posflag.FlagVal(flags, f)
			case "host":
				return "server.host", posflag.FlagVal(flags, f)
			case "log-level":
				return "log.level", posflag.FlagVal(flags, f)
			case "log-format":
				return "log.format", posflag.FlagVal(flags, f)
			}
			return "", nil
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	currentConfig = &cfg
	return &cfg, nil
}

// findConfigFile returns the config file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks upward from startDir looking for a directory
// holding neat.yaml or neat.yml. Returns "" when none is found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
