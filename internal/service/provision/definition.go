package provision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
)

var errEmptyDefinition = errors.New("provisioning definition has no feature packs")

type channelsFile struct {
	Channels []installation.Channel `yaml:"channels"`
}

// LoadChannels reads a channel list file:
//
//	channels:
//	  - name: main
//	    manifest: {url: https://example.org/main.yaml}
//	    repositories: [{id: central, url: https://repo.example.org/maven2}]
func LoadChannels(path string) ([]installation.Channel, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &installation.ChannelConfigError{Channel: path, Err: err}
	}

	var doc channelsFile
	if err = yaml.Unmarshal(contents, &doc); err != nil {
		return nil, &installation.ChannelConfigError{Channel: path, Err: fmt.Errorf("decode: %w", err)}
	}

	if err = installation.ValidateChannels(doc.Channels); err != nil {
		return nil, err
	}

	return doc.Channels, nil
}

// LoadDefinition reads a provisioning configuration file.
func LoadDefinition(path string) (*installation.ProvisioningConfig, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read provisioning definition: %w", err)
	}

	cfg := new(installation.ProvisioningConfig)
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("decode provisioning definition %s: %w", path, err)
	}

	if len(cfg.FeaturePacks) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errEmptyDefinition)
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// FeaturePackDefinition returns the configuration installing one feature
// pack given as "groupId:artifactId[:version]".
func FeaturePackDefinition(coordinate string, includedPackages []string) (*installation.ProvisioningConfig, error) {
	ref, err := installation.ParseArtifactRef(coordinate)
	if err != nil {
		return nil, err
	}

	return &installation.ProvisioningConfig{
		FeaturePacks: []installation.FeaturePackConfig{{
			Producer:         ref.Key(),
			Version:          ref.Version,
			InheritConfigs:   true,
			InheritPackages:  true,
			IncludedPackages: includedPackages,
		}},
	}, nil
}
