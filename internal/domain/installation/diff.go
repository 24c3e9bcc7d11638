package installation

// ArtifactChange is a stream version change.
type ArtifactChange struct {
	Key  string
	From string
	To   string
}

// ChangeSet is the difference between two installation states.
type ChangeSet struct {
	AddedArtifacts      []Stream
	UpdatedArtifacts    []ArtifactChange
	RemovedArtifacts    []Stream
	AddedFeaturePacks   []string
	RemovedFeaturePacks []string
	ConfigChanged       bool
}

// IsEmpty reports whether the change set describes no change at all.
func (c ChangeSet) IsEmpty() bool {
	return len(c.AddedArtifacts) == 0 &&
		len(c.UpdatedArtifacts) == 0 &&
		len(c.RemovedArtifacts) == 0 &&
		len(c.AddedFeaturePacks) == 0 &&
		len(c.RemovedFeaturePacks) == 0 &&
		!c.ConfigChanged
}

// ArtifactChanges returns the number of changed streams.
func (c ChangeSet) ArtifactChanges() int {
	return len(c.AddedArtifacts) + len(c.UpdatedArtifacts) + len(c.RemovedArtifacts)
}

// Diff compares two recorded states. Nil inputs are treated as empty.
// Added and updated entries follow the new manifest order, removed entries
// follow the old one. ConfigChanged is set whenever the configurations differ
// structurally.
func Diff(oldManifest, newManifest *Manifest, oldConfig, newConfig *ProvisioningConfig) ChangeSet {
	var changes ChangeSet

	for _, s := range newManifest.Streams() {
		prev, ok := oldManifest.Find(s.Key())

		switch {
		case !ok:
			changes.AddedArtifacts = append(changes.AddedArtifacts, s)
		case prev.Version != s.Version:
			changes.UpdatedArtifacts = append(changes.UpdatedArtifacts, ArtifactChange{
				Key:  s.Key(),
				From: prev.Version,
				To:   s.Version,
			})
		}
	}

	for _, s := range oldManifest.Streams() {
		if _, ok := newManifest.Find(s.Key()); !ok {
			changes.RemovedArtifacts = append(changes.RemovedArtifacts, s)
		}
	}

	for _, producer := range newConfig.Producers() {
		if _, ok := oldConfig.FeaturePack(producer); !ok {
			changes.AddedFeaturePacks = append(changes.AddedFeaturePacks, producer)
		}
	}

	for _, producer := range oldConfig.Producers() {
		if _, ok := newConfig.FeaturePack(producer); !ok {
			changes.RemovedFeaturePacks = append(changes.RemovedFeaturePacks, producer)
		}
	}

	changes.ConfigChanged = !oldConfig.Equal(newConfig)

	return changes
}

// AffectedProducers lists the producers of newConfig that oldConfig lacks or
// configures differently, in newConfig order.
func AffectedProducers(oldConfig, newConfig *ProvisioningConfig) []string {
	var affected []string

	for _, fp := range newConfig.orEmpty().FeaturePacks {
		if prev, ok := oldConfig.FeaturePack(fp.Producer); !ok || !prev.Equal(fp) {
			affected = append(affected, fp.Producer)
		}
	}

	return affected
}
