package testutil

import (
	"testing"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// Producers of the scenario feature packs.
const (
	ServerProducer = "org.example:server"
	ExtrasProducer = "org.example:extras"
)

// Scenario is a repository serving a small server feature pack, an optional
// extras feature pack and a channel that tracks org.example:core with the
// range [1.0.0,).
type Scenario struct {
	Repo    *Repository
	Dir     string
	Channel installation.Channel

	t testing.TB
}

// NewScenario publishes core 1.0.0, 1.0.1 and 1.0.2 together with both
// feature packs.
func NewScenario(t testing.TB) *Scenario {
	t.Helper()

	repo := NewRepository(t, "central")

	repo.PublishFeaturePack(FeaturePack{
		Producer: ServerProducer,
		Artifacts: []FeaturePackArtifact{
			{GroupID: "org.example", ArtifactID: "core", Path: "modules/core"},
		},
		Layers: map[string][]string{"standalone": {"web", "ejb"}},
		Content: map[string]string{
			"bin/run.sh":         "server run",
			"docs/README.txt":    "server docs",
			"welcome/index.html": "hello",
		},
		Packages: []FeaturePackPackage{{Name: "docs", Paths: []string{"docs"}, Optional: true}},
	}, "1.0.0")

	repo.PublishFeaturePack(FeaturePack{
		Producer: ExtrasProducer,
		Artifacts: []FeaturePackArtifact{
			{GroupID: "org.example", ArtifactID: "util", Path: "modules/util"},
		},
		Layers:  map[string][]string{"standalone": {"tools", "web"}},
		Content: map[string]string{"extras/tool.sh": "tool"},
	}, "1.0.0")

	repo.PublishVersions("org.example", "core", "1.0.0", "1.0.1", "1.0.2")
	repo.PublishVersions("org.example", "util", "0.1")

	s := &Scenario{Repo: repo, Dir: t.TempDir(), t: t}
	s.Channel = WriteChannel(t, s.Dir, "main", []installation.Repository{repo.Config()}, s.streams()...)

	return s
}

func (s *Scenario) streams() []ChannelStream {
	return []ChannelStream{
		{GroupID: "org.example", ArtifactID: "server", Version: "1.0.0"},
		{GroupID: "org.example", ArtifactID: "extras", Version: "1.0.0"},
		{GroupID: "org.example", ArtifactID: "core", VersionRange: "[1.0.0,)"},
		{GroupID: "org.example", ArtifactID: "util", VersionRange: "[0,)"},
	}
}

// Channels returns the scenario channel list.
func (s *Scenario) Channels() []installation.Channel {
	return []installation.Channel{s.Channel}
}

// Provisioning returns a configuration installing only the server feature pack.
func (s *Scenario) Provisioning() *installation.ProvisioningConfig {
	return &installation.ProvisioningConfig{
		FeaturePacks: []installation.FeaturePackConfig{{Producer: ServerProducer, InheritPackages: true}},
	}
}

// UpdateChannels publishes core 1.0.3 into a second repository and returns
// a channel list offering it.
func (s *Scenario) UpdateChannels() []installation.Channel {
	s.t.Helper()

	updates := NewRepository(s.t, "updates")
	updates.PublishVersions("org.example", "core", "1.0.3")

	repos := []installation.Repository{updates.Config(), s.Repo.Config()}

	return []installation.Channel{WriteChannel(s.t, s.Dir, "update", repos, s.streams()...)}
}
