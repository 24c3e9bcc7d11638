package installation

import (
	"errors"
	"fmt"
)

var (
	errNoChannels         = errors.New("at least one channel is required")
	errNoCoordinate       = errors.New("channel has no manifest coordinate")
	errAmbiguousManifest  = errors.New("channel manifest must be either a URL or a Maven coordinate")
	errDuplicateRepo      = errors.New("duplicate repository id")
	errEmptyRepository    = errors.New("repository id and url are required")
	errDuplicateChannelID = errors.New("duplicate channel name")
)

// Repository is an artifact repository.
type Repository struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// ManifestCoordinate locates a channel manifest: either a URL or a Maven
// coordinate resolved through the channel's repositories.
type ManifestCoordinate struct {
	URL   string       `yaml:"url,omitempty"`
	Maven *ArtifactRef `yaml:"maven,omitempty"`
}

// String renders the coordinate for reports.
func (c ManifestCoordinate) String() string {
	if c.Maven != nil {
		return c.Maven.String()
	}

	return c.URL
}

// Channel is a prioritized source of version rules plus the repositories
// its artifacts come from.
type Channel struct {
	Name         string             `yaml:"name,omitempty"`
	Manifest     ManifestCoordinate `yaml:"manifest"`
	Repositories []Repository       `yaml:"repositories"`
}

// DisplayName returns the name or, for anonymous channels, the manifest coordinate.
func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}

	return c.Manifest.String()
}

// Clone returns a deep copy of the channel.
func (c Channel) Clone() Channel {
	cloned := c
	cloned.Repositories = append([]Repository(nil), c.Repositories...)

	if c.Manifest.Maven != nil {
		ref := *c.Manifest.Maven
		cloned.Manifest.Maven = &ref
	}

	return cloned
}

// CloneChannels deep-copies a channel list.
func CloneChannels(channels []Channel) []Channel {
	if channels == nil {
		return nil
	}

	cloned := make([]Channel, len(channels))
	for i, ch := range channels {
		cloned[i] = ch.Clone()
	}

	return cloned
}

// ValidateChannels checks the channel list invariants.
func ValidateChannels(channels []Channel) error {
	if len(channels) == 0 {
		return &ChannelConfigError{Err: errNoChannels}
	}

	names := make(map[string]struct{}, len(channels))

	for i, ch := range channels {
		if err := validateChannel(ch); err != nil {
			return &ChannelConfigError{Channel: channelLabel(ch, i), Err: err}
		}

		if ch.Name == "" {
			continue
		}

		if _, ok := names[ch.Name]; ok {
			return &ChannelConfigError{Channel: ch.Name, Err: errDuplicateChannelID}
		}

		names[ch.Name] = struct{}{}
	}

	return nil
}

func validateChannel(ch Channel) error {
	hasURL := ch.Manifest.URL != ""
	hasMaven := ch.Manifest.Maven != nil

	switch {
	case !hasURL && !hasMaven:
		return errNoCoordinate
	case hasURL && hasMaven:
		return errAmbiguousManifest
	}

	seen := make(map[string]struct{}, len(ch.Repositories))

	for _, repo := range ch.Repositories {
		if repo.ID == "" || repo.URL == "" {
			return errEmptyRepository
		}

		if _, ok := seen[repo.ID]; ok {
			return fmt.Errorf("%w: %s", errDuplicateRepo, repo.ID)
		}

		seen[repo.ID] = struct{}{}
	}

	return nil
}

func channelLabel(ch Channel, position int) string {
	if name := ch.DisplayName(); name != "" {
		return name
	}

	return fmt.Sprintf("#%d", position+1)
}

// OverrideRepositories returns a copy of channels where every channel uses the
// given repositories instead of its own. An empty override returns a plain copy.
func OverrideRepositories(channels []Channel, repositories []Repository) []Channel {
	cloned := CloneChannels(channels)
	if len(repositories) == 0 {
		return cloned
	}

	for i := range cloned {
		cloned[i].Repositories = append([]Repository(nil), repositories...)
	}

	return cloned
}

// MergeRepositories collects the repositories of all channels in priority
// order, keeping the first occurrence of every id.
func MergeRepositories(channels []Channel) []Repository {
	var (
		merged []Repository
		seen   = make(map[string]struct{})
	)

	for _, ch := range channels {
		for _, repo := range ch.Repositories {
			if _, ok := seen[repo.ID]; ok {
				continue
			}

			seen[repo.ID] = struct{}{}
			merged = append(merged, repo)
		}
	}

	return merged
}
