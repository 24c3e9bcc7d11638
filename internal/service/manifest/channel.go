package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/mavenversion"
	"github.com/oshokin/channelup/internal/service/resolver"
)

// ChannelSchemaVersion is the supported channel manifest schema.
const ChannelSchemaVersion = 1

var (
	errChannelSchema  = errors.New("unsupported channel manifest schema version")
	errRuleVersion    = errors.New("stream rule must define exactly one of version, versionRange, versionPattern, versionConstraint")
	errRuleIdentifier = errors.New("stream rule requires groupId and artifactId")
)

// StreamRule pins the versions of one stream, or of every stream matching
// "*" wildcards in GroupID or ArtifactID.
type StreamRule struct {
	GroupID           string `yaml:"groupId"`
	ArtifactID        string `yaml:"artifactId"`
	Version           string `yaml:"version,omitempty"`
	VersionRange      string `yaml:"versionRange,omitempty"`
	VersionPattern    string `yaml:"versionPattern,omitempty"`
	VersionConstraint string `yaml:"versionConstraint,omitempty"`
}

// Key returns the rule key, possibly containing wildcards.
func (r StreamRule) Key() string {
	return installation.StreamKey(r.GroupID, r.ArtifactID)
}

// IsWildcard reports whether the rule matches several streams.
func (r StreamRule) IsWildcard() bool {
	return strings.Contains(r.Key(), "*")
}

// ChannelManifest is the rule set a channel publishes.
type ChannelManifest struct {
	SchemaVersion int          `yaml:"schemaVersion"`
	Name          string       `yaml:"name,omitempty"`
	Streams       []StreamRule `yaml:"streams"`

	exact     map[string]compiledRule
	wildcards []compiledRule
}

type compiledRule struct {
	rule    StreamRule
	matcher glob.Glob
	filter  resolver.Filter
}

// ParseChannelManifest decodes and validates a channel manifest.
func ParseChannelManifest(data []byte) (*ChannelManifest, error) {
	var cm ChannelManifest
	if err := yaml.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("decode channel manifest: %w", err)
	}

	if cm.SchemaVersion != ChannelSchemaVersion {
		return nil, fmt.Errorf("%w: %d", errChannelSchema, cm.SchemaVersion)
	}

	cm.exact = make(map[string]compiledRule, len(cm.Streams))

	for _, rule := range cm.Streams {
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", rule.Key(), err)
		}

		if rule.IsWildcard() {
			cm.wildcards = append(cm.wildcards, compiled)

			continue
		}

		cm.exact[rule.Key()] = compiled
	}

	return &cm, nil
}

func compileRule(rule StreamRule) (compiledRule, error) {
	if rule.GroupID == "" || rule.ArtifactID == "" {
		return compiledRule{}, errRuleIdentifier
	}

	compiled := compiledRule{rule: rule}

	set := 0

	for _, v := range []string{rule.Version, rule.VersionRange, rule.VersionPattern, rule.VersionConstraint} {
		if v != "" {
			set++
		}
	}

	if set != 1 {
		return compiledRule{}, errRuleVersion
	}

	switch {
	case rule.VersionRange != "":
		r, err := mavenversion.ParseRange(rule.VersionRange)
		if err != nil {
			return compiledRule{}, err
		}

		compiled.filter = resolver.InRange(r)
	case rule.VersionPattern != "":
		pattern, err := regexp.Compile(rule.VersionPattern)
		if err != nil {
			return compiledRule{}, fmt.Errorf("compile version pattern: %w", err)
		}

		compiled.filter = resolver.Matching(pattern)
	case rule.VersionConstraint != "":
		constraints, err := semver.NewConstraint(rule.VersionConstraint)
		if err != nil {
			return compiledRule{}, fmt.Errorf("parse version constraint: %w", err)
		}

		compiled.filter = resolver.Satisfying(constraints)
	}

	if rule.IsWildcard() {
		matcher, err := glob.Compile(rule.Key(), ':')
		if err != nil {
			return compiledRule{}, fmt.Errorf("compile wildcard: %w", err)
		}

		compiled.matcher = matcher
	}

	return compiled, nil
}

// Lookup finds the rule for a stream key. An exact rule beats a wildcard,
// wildcards are tried in declaration order.
func (cm *ChannelManifest) Lookup(key string) (StreamRule, resolver.Filter, bool) {
	if compiled, ok := cm.exact[key]; ok {
		return compiled.rule, compiled.filter, true
	}

	for _, compiled := range cm.wildcards {
		if compiled.matcher.Match(key) {
			return compiled.rule, compiled.filter, true
		}
	}

	return StreamRule{}, nil, false
}
