package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"gopkg.in/yaml.v3"
)

const userAgentFormat = "/CMTREE:%s/"

// DefaultConfigPath is the default path to the service configuration file
// relative to the working directory.
const DefaultConfigPath = "./config/cmtree.yml"

// Version is the version of the service, set at build time.
var Version string

// Config is the top level service configuration.
type Config struct {
	TreeConfiguration        TreeConfiguration        `yaml:"TreeConfiguration"`
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// GenerateUserAgent creates a user agent string based on the build time
// environment.
func GenerateUserAgent() string {
	return fmt.Sprintf(userAgentFormat, Version)
}

// LoadFile loads the config from the provided path. Unknown keys are
// rejected to catch typos early.
func LoadFile(configPath string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	config := Config{
		TreeConfiguration: TreeConfiguration{
			HashFunction:   hash.NameSha256,
			MaxProofLength: cmt.DefaultMaxProofLen,
		},
	}
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	if err = decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err = config.TreeConfiguration.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}
