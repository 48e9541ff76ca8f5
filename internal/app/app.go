// Package app bootstraps both gateway binaries: command line flags, the
// configuration file and the logger. Every other module pulls its settings
// through LoadConfig and its logger through GetLogger.
package app

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var Version = "1.2.0"

var ConfigPath string

var StartTime = time.Now()

var config []byte

// Init parses the command line and reads the configuration file. The config
// is YAML, which also accepts the historical JSON files unchanged. A missing
// or unreadable file is fatal: both peers are useless without endpoints.
func Init(name, defaultConfig string) error {
	var version bool

	flag.StringVar(&ConfigPath, "c", defaultConfig, "path to configuration file")
	flag.StringVar(&ConfigPath, "config", defaultConfig, "path to configuration file")
	flag.BoolVar(&version, "version", false, "print version and exit")
	flag.Parse()

	if version {
		fmt.Printf("%s %s %s/%s\n", name, Version, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	data, err := os.ReadFile(ConfigPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	config = data

	if !filepath.IsAbs(ConfigPath) {
		if cwd, err := os.Getwd(); err == nil {
			ConfigPath = filepath.Join(cwd, ConfigPath)
		}
	}

	initLogger()

	log.Logger = Logger
	Logger.Info().Str("version", Version).Str("config", ConfigPath).Msg(name)

	return nil
}

// LoadConfig unmarshals the configuration into the caller's struct. Unknown
// keys are ignored, each module validates its own required keys.
func LoadConfig(v any) {
	if config == nil {
		return
	}
	if err := yaml.Unmarshal(config, v); err != nil {
		Logger.Warn().Err(err).Msg("[app] read config")
	}
}

// SetConfig replaces the raw configuration. Tests only.
func SetConfig(data []byte) {
	config = data
}
