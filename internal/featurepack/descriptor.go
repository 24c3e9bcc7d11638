package featurepack

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
)

const (
	descriptorFile = "feature-pack.yaml"
	contentDir     = "content"
)

var (
	errProducerMismatch = errors.New("feature pack producer does not match its coordinate")
	errUnsafePath       = errors.New("path escapes the installation root")
)

// Artifact is an artifact installed under Path.
type Artifact struct {
	GroupID    string `yaml:"groupId"`
	ArtifactID string `yaml:"artifactId"`
	Classifier string `yaml:"classifier,omitempty"`
	Extension  string `yaml:"extension,omitempty"`
	Path       string `yaml:"path"`
}

// Ref returns the unresolved artifact reference.
func (a Artifact) Ref() installation.ArtifactRef {
	return installation.ArtifactRef{
		GroupID:    a.GroupID,
		ArtifactID: a.ArtifactID,
		Classifier: a.Classifier,
		Extension:  a.Extension,
	}
}

// Package groups content paths.
type Package struct {
	Name     string   `yaml:"name"`
	Paths    []string `yaml:"paths"`
	Optional bool     `yaml:"optional,omitempty"`
}

// owns reports whether the slash-separated content path belongs to the package.
func (p Package) owns(rel string) bool {
	for _, prefix := range p.Paths {
		prefix = strings.Trim(prefix, "/")
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}

	return false
}

// Descriptor is the feature-pack.yaml document.
type Descriptor struct {
	Producer     string              `yaml:"producer"`
	Dependencies []string            `yaml:"dependencies,omitempty"`
	Artifacts    []Artifact          `yaml:"artifacts,omitempty"`
	Layers       map[string][]string `yaml:"layers,omitempty"`
	Packages     []Package           `yaml:"packages,omitempty"`
}

func parseDescriptor(data []byte, ref installation.ArtifactRef) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", descriptorFile, err)
	}

	if d.Producer != ref.Key() {
		return nil, fmt.Errorf("%w: %s declares %q", errProducerMismatch, ref, d.Producer)
	}

	for _, a := range d.Artifacts {
		if !isLocal(a.Path) {
			return nil, fmt.Errorf("artifact %s: %w: %q", a.Ref().Key(), errUnsafePath, a.Path)
		}
	}

	return &d, nil
}

// dependencyRefs returns the dependencies as unresolved feature pack references.
func (d *Descriptor) dependencyRefs() ([]installation.ArtifactRef, error) {
	refs := make([]installation.ArtifactRef, 0, len(d.Dependencies))

	for _, dep := range d.Dependencies {
		ref, err := (installation.FeaturePackConfig{Producer: dep}).Ref()
		if err != nil {
			return nil, fmt.Errorf("dependency of %s: %w", d.Producer, err)
		}

		refs = append(refs, ref)
	}

	return refs, nil
}

// packageOf returns the package owning rel, if any.
func (d *Descriptor) packageOf(rel string) (Package, bool) {
	for _, p := range d.Packages {
		if p.owns(rel) {
			return p, true
		}
	}

	return Package{}, false
}

func isLocal(rel string) bool {
	if rel == "" || rel == "." {
		return true
	}

	cleaned := path.Clean(rel)

	return !path.IsAbs(cleaned) && cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}
