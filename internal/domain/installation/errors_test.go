package installation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestKindOf checks classification through wrapping and of untyped errors.
func TestKindOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindInternal},
		{errors.New("boom"), KindInternal},
		{&ResolutionError{}, KindResolution},
		{fmt.Errorf("wrapped: %w", &NoStreamFoundError{}), KindNotAvailable},
		{&ChannelConfigError{Err: errors.New("x")}, KindChannelConfig},
		{&LayerNotFoundError{}, KindSelection},
		{&NoChangesError{}, KindNoOp},
		{&StagingError{Phase: "provision", Err: &ResolutionError{}}, KindStaging},
		{&PromotionError{Err: errors.New("x")}, KindPromotion},
		{&MetadataError{Err: errors.New("x")}, KindMetadata},
		{&InvalidCandidateError{}, KindInvalidCandidate},
		{&InstallationExistsError{}, KindExists},
		{&LockedError{}, KindLocked},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
}

// TestResolutionError_Message checks the diagnostic payload is rendered.
func TestResolutionError_Message(t *testing.T) {
	t.Parallel()

	err := &ResolutionError{
		Unresolved: []ArtifactRef{{GroupID: "org.example", ArtifactID: "core"}},
		Attempted:  []Repository{{ID: "central", URL: "file:///repo"}},
	}

	require.Equal(t, "unable to resolve org.example:core from repositories [central (file:///repo)]", err.Error())
}

// TestPromotionError_Unwrap checks rollback failures are reported but the cause is unwrapped.
func TestPromotionError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("rename failed")
	err := &PromotionError{Phase: "swap", Err: cause, RollbackErr: errors.New("restore failed")}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "rollback failed: restore failed")
}
