package installation

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure for callers that render or map errors.
type Kind int

const (
	// KindInternal is any failure not covered by a typed error.
	KindInternal Kind = iota
	// KindResolution means no repository yields a required artifact.
	KindResolution
	// KindNotAvailable means no channel defines a requested stream.
	KindNotAvailable
	// KindChannelConfig means a channel manifest cannot be loaded or parsed.
	KindChannelConfig
	// KindSelection means an unsupported layer or model was requested.
	KindSelection
	// KindNoOp means the requested change would not alter the installation.
	KindNoOp
	// KindStaging means building the candidate failed.
	KindStaging
	// KindPromotion means the swap into place failed.
	KindPromotion
	// KindMetadata means installation metadata is missing, corrupt or unwritable.
	KindMetadata
	// KindInvalidCandidate means a candidate directory cannot be applied.
	KindInvalidCandidate
	// KindExists means the target installation directory already exists.
	KindExists
	// KindLocked means another operation holds the installation.
	KindLocked
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "resolution"
	case KindNotAvailable:
		return "not-available"
	case KindChannelConfig:
		return "channel-config"
	case KindSelection:
		return "selection"
	case KindNoOp:
		return "no-op"
	case KindStaging:
		return "staging"
	case KindPromotion:
		return "promotion"
	case KindMetadata:
		return "metadata"
	case KindInvalidCandidate:
		return "invalid-candidate"
	case KindExists:
		return "exists"
	case KindLocked:
		return "locked"
	default:
		return "internal"
	}
}

// KindOf classifies err by the outermost typed error it wraps.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var kinded interface{ Kind() Kind }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}

	return KindInternal
}

// ResolutionError reports artifacts no repository could provide.
type ResolutionError struct {
	Unresolved []ArtifactRef
	Attempted  []Repository
	Err        error
}

func (e *ResolutionError) Error() string {
	unresolved := make([]string, len(e.Unresolved))
	for i, ref := range e.Unresolved {
		unresolved[i] = ref.String()
	}

	attempted := make([]string, len(e.Attempted))
	for i, repo := range e.Attempted {
		attempted[i] = repo.ID + " (" + repo.URL + ")"
	}

	msg := fmt.Sprintf("unable to resolve %s from repositories [%s]",
		strings.Join(unresolved, ", "), strings.Join(attempted, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Kind implements the classification used by KindOf.
func (e *ResolutionError) Kind() Kind { return KindResolution }

// NoStreamFoundError reports a stream none of the channels defines.
type NoStreamFoundError struct {
	Artifact ArtifactRef
}

func (e *NoStreamFoundError) Error() string {
	return "no channel defines a stream for " + e.Artifact.Key()
}

// Kind implements the classification used by KindOf.
func (e *NoStreamFoundError) Kind() Kind { return KindNotAvailable }

// ChannelConfigError reports a channel whose manifest cannot be used.
type ChannelConfigError struct {
	Channel string
	Err     error
}

func (e *ChannelConfigError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("channels: %v", e.Err)
	}

	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e *ChannelConfigError) Unwrap() error { return e.Err }

// Kind implements the classification used by KindOf.
func (e *ChannelConfigError) Kind() Kind { return KindChannelConfig }

// LayerNotFoundError reports a requested layer the feature pack does not offer.
type LayerNotFoundError struct {
	Layer           string
	SupportedLayers []string
}

func (e *LayerNotFoundError) Error() string {
	return fmt.Sprintf("layer %q not found in feature pack, supported layers: [%s]",
		e.Layer, strings.Join(e.SupportedLayers, ", "))
}

// Kind implements the classification used by KindOf.
func (e *LayerNotFoundError) Kind() Kind { return KindSelection }

// ModelNotDefinedError reports an unknown model or an ambiguous default.
type ModelNotDefinedError struct {
	// Model is empty when no model was requested and several exist.
	Model           string
	SupportedModels []string
}

func (e *ModelNotDefinedError) Error() string {
	supported := strings.Join(e.SupportedModels, ", ")
	if e.Model == "" {
		return fmt.Sprintf("feature pack defines several models, select one of: [%s]", supported)
	}

	return fmt.Sprintf("model %q not found in feature pack, supported models: [%s]", e.Model, supported)
}

// Kind implements the classification used by KindOf.
func (e *ModelNotDefinedError) Kind() Kind { return KindSelection }

// AlreadyInstalledError reports a feature pack request that changes nothing.
type AlreadyInstalledError struct {
	Producer string
}

func (e *AlreadyInstalledError) Error() string {
	return "feature pack " + e.Producer + " is already installed with the requested configuration"
}

// Kind implements the classification used by KindOf.
func (e *AlreadyInstalledError) Kind() Kind { return KindNoOp }

// NoChangesError reports a candidate identical to the live installation.
type NoChangesError struct{}

func (e *NoChangesError) Error() string {
	return "candidate does not change the installation"
}

// Kind implements the classification used by KindOf.
func (e *NoChangesError) Kind() Kind { return KindNoOp }

// StagingError reports a failed candidate build.
type StagingError struct {
	Phase string
	Err   error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging failed during %s: %v", e.Phase, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// Kind implements the classification used by KindOf.
func (e *StagingError) Kind() Kind { return KindStaging }

// PromotionError reports a failed swap. RollbackErr is set when restoring the
// previous state failed as well.
type PromotionError struct {
	Phase       string
	Err         error
	RollbackErr error
}

func (e *PromotionError) Error() string {
	msg := fmt.Sprintf("promotion failed during %s: %v", e.Phase, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback failed: %v)", e.RollbackErr)
	}

	return msg
}

func (e *PromotionError) Unwrap() error { return e.Err }

// Kind implements the classification used by KindOf.
func (e *PromotionError) Kind() Kind { return KindPromotion }

// MetadataError reports missing, corrupt or unwritable metadata.
type MetadataError struct {
	Path string
	Err  error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("installation metadata %s: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// Kind implements the classification used by KindOf.
func (e *MetadataError) Kind() Kind { return KindMetadata }

// InvalidCandidateError reports a candidate that cannot be applied.
type InvalidCandidateError struct {
	Dir    string
	Reason string
}

func (e *InvalidCandidateError) Error() string {
	return fmt.Sprintf("invalid candidate %s: %s", e.Dir, e.Reason)
}

// Kind implements the classification used by KindOf.
func (e *InvalidCandidateError) Kind() Kind { return KindInvalidCandidate }

// InstallationExistsError reports an install or restore into an existing directory.
type InstallationExistsError struct {
	Dir string
}

func (e *InstallationExistsError) Error() string {
	return "installation directory already exists: " + e.Dir
}

// Kind implements the classification used by KindOf.
func (e *InstallationExistsError) Kind() Kind { return KindExists }

// LockedError reports an installation held by another operation.
type LockedError struct {
	Dir string
}

func (e *LockedError) Error() string {
	return "installation is locked by another operation: " + e.Dir
}

// Kind implements the classification used by KindOf.
func (e *LockedError) Kind() Kind { return KindLocked }
