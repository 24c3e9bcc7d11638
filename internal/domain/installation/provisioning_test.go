package installation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func baseConfig() *ProvisioningConfig {
	return &ProvisioningConfig{
		FeaturePacks: []FeaturePackConfig{
			{Producer: "org.example:server", InheritConfigs: true, InheritPackages: true},
		},
		Configs: []ConfigModel{
			{Model: "standalone", Name: "standalone.xml", IncludedLayers: []string{"web"}, ExcludedLayers: []string{"jms"}},
		},
	}
}

// TestAddFeaturePack_AppendsNewProducer checks a new producer is appended without inheritance.
func TestAddFeaturePack_AppendsNewProducer(t *testing.T) {
	t.Parallel()

	old := baseConfig()

	next, err := AddFeaturePack(old, FeaturePackRequest{Producer: "org.example:extra"})
	require.NoError(t, err)
	require.Equal(t, []string{"org.example:server", "org.example:extra"}, next.Producers())

	fp, ok := next.FeaturePack("org.example:extra")
	require.True(t, ok)
	require.False(t, fp.InheritConfigs)
	require.False(t, fp.InheritPackages)

	require.Equal(t, baseConfig(), old)
}

// TestAddFeaturePack_ReplacesExistingProducer checks a known producer is never duplicated.
func TestAddFeaturePack_ReplacesExistingProducer(t *testing.T) {
	t.Parallel()

	next, err := AddFeaturePack(baseConfig(), FeaturePackRequest{
		Producer: "org.example:server",
		Layers:   []string{"jms", "ejb"},
		Model:    "standalone",
	})
	require.NoError(t, err)
	require.Len(t, next.FeaturePacks, 1)
	require.NoError(t, next.Validate())

	require.Equal(t, []ConfigModel{{
		Model:          "standalone",
		Name:           "standalone.xml",
		IncludedLayers: []string{"web", "jms", "ejb"},
		ExcludedLayers: []string{},
	}}, next.Configs)
}

// TestAddFeaturePack_NewConfigModel checks that a new model/name pair gets its own config.
func TestAddFeaturePack_NewConfigModel(t *testing.T) {
	t.Parallel()

	next, err := AddFeaturePack(baseConfig(), FeaturePackRequest{
		Producer:   "org.example:server",
		Layers:     []string{"web", "web"},
		Model:      "standalone",
		ConfigName: "custom.xml",
	})
	require.NoError(t, err)
	require.Len(t, next.Configs, 2)
	require.Equal(t, ConfigModel{Model: "standalone", Name: "custom.xml", IncludedLayers: []string{"web"}}, next.Configs[1])
}

// TestAddFeaturePack_AlreadyInstalled checks that a request changing nothing is rejected.
func TestAddFeaturePack_AlreadyInstalled(t *testing.T) {
	t.Parallel()

	_, err := AddFeaturePack(baseConfig(), FeaturePackRequest{
		Producer: "org.example:server",
		Layers:   []string{"web"},
		Model:    "standalone",
	})

	var installed *AlreadyInstalledError
	require.ErrorAs(t, err, &installed)
	require.Equal(t, "org.example:server", installed.Producer)
	require.Equal(t, KindNoOp, KindOf(err))
}

// TestAddFeaturePack_InvalidProducer checks producer validation.
func TestAddFeaturePack_InvalidProducer(t *testing.T) {
	t.Parallel()

	_, err := AddFeaturePack(nil, FeaturePackRequest{Producer: "org.example:server:1.0"})
	require.ErrorIs(t, err, errInvalidProducer)
}

// TestSelectModel covers implicit, explicit and unknown model selection.
func TestSelectModel(t *testing.T) {
	t.Parallel()

	single := map[string][]string{"standalone": {"web"}}
	multi := map[string][]string{"standalone": {"web"}, "domain": {"host"}}

	model, err := SelectModel("", nil)
	require.NoError(t, err)
	require.Empty(t, model)

	model, err = SelectModel("", single)
	require.NoError(t, err)
	require.Equal(t, "standalone", model)

	model, err = SelectModel("domain", multi)
	require.NoError(t, err)
	require.Equal(t, "domain", model)

	var notDefined *ModelNotDefinedError

	_, err = SelectModel("", multi)
	require.ErrorAs(t, err, &notDefined)
	require.Empty(t, notDefined.Model)
	require.Equal(t, []string{"domain", "standalone"}, notDefined.SupportedModels)

	_, err = SelectModel("cluster", multi)
	require.ErrorAs(t, err, &notDefined)
	require.Equal(t, "cluster", notDefined.Model)
	require.Equal(t, KindSelection, KindOf(err))
}

// TestVerifyLayers checks the offending layer and the legal set are reported.
func TestVerifyLayers(t *testing.T) {
	t.Parallel()

	layers := map[string][]string{"standalone": {"web", "ejb", "cdi"}}

	require.NoError(t, VerifyLayers(nil, "", nil))
	require.NoError(t, VerifyLayers([]string{"web", "cdi"}, "standalone", layers))

	var notFound *LayerNotFoundError

	err := VerifyLayers([]string{"web", "jms"}, "standalone", layers)
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "jms", notFound.Layer)
	require.Equal(t, []string{"cdi", "ejb", "web"}, notFound.SupportedLayers)

	err = VerifyLayers([]string{"web"}, "", nil)
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "web", notFound.Layer)
	require.Empty(t, notFound.SupportedLayers)
	require.NotNil(t, notFound.SupportedLayers)
}

// TestProvisioningConfig_Validate rejects duplicate producers and configs.
func TestProvisioningConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	cfg.FeaturePacks = append(cfg.FeaturePacks, cfg.FeaturePacks[0])
	require.ErrorIs(t, cfg.Validate(), errDuplicateProducer)

	cfg = baseConfig()
	cfg.Configs = append(cfg.Configs, cfg.Configs[0])
	require.ErrorIs(t, cfg.Validate(), errDuplicateConfig)
}

// TestProvisioningConfig_EqualAndClone checks structural equality and deep copies.
func TestProvisioningConfig_EqualAndClone(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Options = map[string]string{"jboss-fork-embedded": "true"}

	cloned := cfg.Clone()
	require.True(t, cfg.Equal(cloned))

	cloned.Configs[0].IncludedLayers[0] = "changed"
	require.False(t, cfg.Equal(cloned))
	require.Equal(t, "web", cfg.Configs[0].IncludedLayers[0])

	require.True(t, (*ProvisioningConfig)(nil).Equal(&ProvisioningConfig{}))
}
