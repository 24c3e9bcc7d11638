package installation

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	errDuplicateProducer = errors.New("feature pack producer listed more than once")
	errInvalidProducer   = errors.New("feature pack producer must be groupId:artifactId")
	errDuplicateConfig   = errors.New("config model listed more than once")
)

// ProvisioningConfig is the requested shape of an installation.
type ProvisioningConfig struct {
	FeaturePacks []FeaturePackConfig `yaml:"featurePacks"`
	Configs      []ConfigModel       `yaml:"configs,omitempty"`
	Options      map[string]string   `yaml:"options,omitempty"`
}

// FeaturePackConfig selects one feature pack. Producer is "groupId:artifactId";
// Version pins it, otherwise the channels decide.
type FeaturePackConfig struct {
	Producer         string   `yaml:"producer"`
	Version          string   `yaml:"version,omitempty"`
	InheritConfigs   bool     `yaml:"inheritConfigs"`
	InheritPackages  bool     `yaml:"inheritPackages"`
	IncludedPackages []string `yaml:"includedPackages,omitempty"`
	ExcludedPackages []string `yaml:"excludedPackages,omitempty"`
}

// Ref returns the artifact reference of the feature pack.
func (f FeaturePackConfig) Ref() (ArtifactRef, error) {
	ref, err := ParseArtifactRef(f.Producer)
	if err != nil || ref.Version != "" {
		return ArtifactRef{}, fmt.Errorf("%w: %q", errInvalidProducer, f.Producer)
	}

	ref.Extension = FeaturePackExtension
	ref.Version = f.Version

	return ref, nil
}

// FeaturePackExtension is the packaging of feature pack archives.
const FeaturePackExtension = "tar.gz"

// ConfigModel is a named configuration generated from layers of a model.
type ConfigModel struct {
	Model          string   `yaml:"model"`
	Name           string   `yaml:"name"`
	IncludedLayers []string `yaml:"includedLayers,omitempty"`
	ExcludedLayers []string `yaml:"excludedLayers,omitempty"`
}

// ID returns the identity of the config model.
func (c ConfigModel) ID() string {
	return c.Model + "/" + c.Name
}

// Clone returns a deep copy of the configuration.
func (p *ProvisioningConfig) Clone() *ProvisioningConfig {
	if p == nil {
		return nil
	}

	cloned := &ProvisioningConfig{
		FeaturePacks: make([]FeaturePackConfig, len(p.FeaturePacks)),
		Configs:      make([]ConfigModel, len(p.Configs)),
	}

	for i, fp := range p.FeaturePacks {
		fp.IncludedPackages = slices.Clone(fp.IncludedPackages)
		fp.ExcludedPackages = slices.Clone(fp.ExcludedPackages)
		cloned.FeaturePacks[i] = fp
	}

	for i, cm := range p.Configs {
		cm.IncludedLayers = slices.Clone(cm.IncludedLayers)
		cm.ExcludedLayers = slices.Clone(cm.ExcludedLayers)
		cloned.Configs[i] = cm
	}

	if p.Options != nil {
		cloned.Options = make(map[string]string, len(p.Options))
		for k, v := range p.Options {
			cloned.Options[k] = v
		}
	}

	return cloned
}

// Equal reports structural equality. Nil and empty collections are equal.
func (p *ProvisioningConfig) Equal(other *ProvisioningConfig) bool {
	a, b := p.orEmpty(), other.orEmpty()

	if !slices.EqualFunc(a.FeaturePacks, b.FeaturePacks, featurePackEqual) {
		return false
	}

	if !slices.EqualFunc(a.Configs, b.Configs, configModelEqual) {
		return false
	}

	if len(a.Options) != len(b.Options) {
		return false
	}

	for k, v := range a.Options {
		if bv, ok := b.Options[k]; !ok || bv != v {
			return false
		}
	}

	return true
}

func (p *ProvisioningConfig) orEmpty() *ProvisioningConfig {
	if p == nil {
		return new(ProvisioningConfig)
	}

	return p
}

// Equal reports structural equality.
func (f FeaturePackConfig) Equal(other FeaturePackConfig) bool {
	return featurePackEqual(f, other)
}

func featurePackEqual(a, b FeaturePackConfig) bool {
	return a.Producer == b.Producer &&
		a.Version == b.Version &&
		a.InheritConfigs == b.InheritConfigs &&
		a.InheritPackages == b.InheritPackages &&
		slices.Equal(a.IncludedPackages, b.IncludedPackages) &&
		slices.Equal(a.ExcludedPackages, b.ExcludedPackages)
}

func configModelEqual(a, b ConfigModel) bool {
	return a.Model == b.Model &&
		a.Name == b.Name &&
		slices.Equal(a.IncludedLayers, b.IncludedLayers) &&
		slices.Equal(a.ExcludedLayers, b.ExcludedLayers)
}

// Validate checks that every producer and config model appears at most once.
func (p *ProvisioningConfig) Validate() error {
	producers := make(map[string]struct{})

	for _, fp := range p.orEmpty().FeaturePacks {
		if _, err := fp.Ref(); err != nil {
			return err
		}

		if _, ok := producers[fp.Producer]; ok {
			return fmt.Errorf("%w: %s", errDuplicateProducer, fp.Producer)
		}

		producers[fp.Producer] = struct{}{}
	}

	configs := make(map[string]struct{})

	for _, cm := range p.orEmpty().Configs {
		if _, ok := configs[cm.ID()]; ok {
			return fmt.Errorf("%w: %s", errDuplicateConfig, cm.ID())
		}

		configs[cm.ID()] = struct{}{}
	}

	return nil
}

// FeaturePack returns the entry of the given producer.
func (p *ProvisioningConfig) FeaturePack(producer string) (FeaturePackConfig, bool) {
	for _, fp := range p.orEmpty().FeaturePacks {
		if fp.Producer == producer {
			return fp, true
		}
	}

	return FeaturePackConfig{}, false
}

// Producers returns the producers in configuration order.
func (p *ProvisioningConfig) Producers() []string {
	producers := make([]string, 0, len(p.orEmpty().FeaturePacks))
	for _, fp := range p.orEmpty().FeaturePacks {
		producers = append(producers, fp.Producer)
	}

	return producers
}

// FeaturePackRequest describes a feature pack to add to an existing configuration.
type FeaturePackRequest struct {
	// Producer is "groupId:artifactId".
	Producer string
	// Layers are included into the selected config model.
	Layers []string
	// Model is the selected layer model. Empty means no config model is touched.
	Model string
	// ConfigName defaults to "<model>.xml".
	ConfigName string
}

// AddFeaturePack derives the configuration that results from adding the
// requested feature pack to old. An existing producer is updated in place,
// never duplicated. AlreadyInstalledError is returned when nothing changes.
func AddFeaturePack(old *ProvisioningConfig, req FeaturePackRequest) (*ProvisioningConfig, error) {
	if _, err := (FeaturePackConfig{Producer: req.Producer}).Ref(); err != nil {
		return nil, err
	}

	next := old.orEmpty().Clone()

	if req.Model != "" {
		next.Configs = includeLayers(next.Configs, req)
	}

	if _, ok := next.FeaturePack(req.Producer); !ok {
		next.FeaturePacks = append(next.FeaturePacks, FeaturePackConfig{
			Producer:        req.Producer,
			InheritConfigs:  false,
			InheritPackages: false,
		})
	}

	if next.Equal(old) {
		return nil, &AlreadyInstalledError{Producer: req.Producer}
	}

	return next, nil
}

func includeLayers(configs []ConfigModel, req FeaturePackRequest) []ConfigModel {
	name := req.ConfigName
	if name == "" {
		name = DefaultConfigName(req.Model)
	}

	for i, cm := range configs {
		if cm.Model != req.Model || cm.Name != name {
			continue
		}

		for _, layer := range req.Layers {
			cm.ExcludedLayers = slices.DeleteFunc(cm.ExcludedLayers, func(l string) bool { return l == layer })

			if !slices.Contains(cm.IncludedLayers, layer) {
				cm.IncludedLayers = append(cm.IncludedLayers, layer)
			}
		}

		configs[i] = cm

		return configs
	}

	cm := ConfigModel{Model: req.Model, Name: name}
	for _, layer := range req.Layers {
		if !slices.Contains(cm.IncludedLayers, layer) {
			cm.IncludedLayers = append(cm.IncludedLayers, layer)
		}
	}

	return append(configs, cm)
}

// DefaultConfigName returns the config name used when none is requested.
func DefaultConfigName(model string) string {
	return model + ".xml"
}

// SelectModel picks the layer model. Without a request, a single advertised
// model is selected implicitly; no models at all yield an empty selection.
func SelectModel(requested string, layersByModel map[string][]string) (string, error) {
	if len(layersByModel) == 0 {
		return "", nil
	}

	if requested == "" {
		if len(layersByModel) > 1 {
			return "", &ModelNotDefinedError{SupportedModels: sortedKeys(layersByModel)}
		}

		for model := range layersByModel {
			return model, nil
		}
	}

	if _, ok := layersByModel[requested]; !ok {
		return "", &ModelNotDefinedError{Model: requested, SupportedModels: sortedKeys(layersByModel)}
	}

	return requested, nil
}

// VerifyLayers checks every requested layer against the layers of model.
func VerifyLayers(layers []string, model string, layersByModel map[string][]string) error {
	if len(layers) == 0 {
		return nil
	}

	if len(layersByModel) == 0 {
		return &LayerNotFoundError{Layer: layers[0], SupportedLayers: []string{}}
	}

	legal := layersByModel[model]
	for _, layer := range layers {
		if !slices.Contains(legal, layer) {
			supported := slices.Clone(legal)
			sort.Strings(supported)

			return &LayerNotFoundError{Layer: layer, SupportedLayers: supported}
		}
	}

	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
