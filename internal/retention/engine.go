package retention

import (
	"sort"
	"time"

	"github.com/temirov/ghcr-prune/internal/ghcr"
)

// DefaultTagProtectionWindow guards untagged versions created shortly before
// a tagged version was recorded. Tag pushes first upload untagged layers and
// manifests; deleting those would break the tag that depends on them.
const DefaultTagProtectionWindow = 15 * time.Minute

// SelectForDeletion returns the versions eligible for deletion, ordered by
// identifier descending for reproducible reporting.
//
// A version is eligible when it was created strictly before the cutoff,
// carries no tags, and does not fall inside the protection window
// immediately preceding any tagged version's creation instant.
func SelectForDeletion(versions []ghcr.PackageVersion, cutoff time.Time, tagProtectionWindow time.Duration) []ghcr.PackageVersion {
	taggedCreationInstants := make([]time.Time, 0, len(versions))
	for _, candidateVersion := range versions {
		if candidateVersion.IsTagged() {
			taggedCreationInstants = append(taggedCreationInstants, candidateVersion.CreatedAt)
		}
	}

	orderedVersions := make([]ghcr.PackageVersion, len(versions))
	copy(orderedVersions, versions)
	sort.SliceStable(orderedVersions, func(firstIndex int, secondIndex int) bool {
		return orderedVersions[firstIndex].ID > orderedVersions[secondIndex].ID
	})

	deletionCandidates := make([]ghcr.PackageVersion, 0, len(orderedVersions))
	for _, candidateVersion := range orderedVersions {
		if candidateVersion.IsTagged() {
			continue
		}
		if !candidateVersion.CreatedAt.Before(cutoff) {
			continue
		}
		if protectedByTaggedVersion(candidateVersion.CreatedAt, taggedCreationInstants, tagProtectionWindow) {
			continue
		}
		deletionCandidates = append(deletionCandidates, candidateVersion)
	}

	return deletionCandidates
}

// protectedByTaggedVersion reports whether the creation instant falls within
// the half-open interval (tagged-window, tagged] for any tagged version.
func protectedByTaggedVersion(creationInstant time.Time, taggedCreationInstants []time.Time, tagProtectionWindow time.Duration) bool {
	for _, taggedCreationInstant := range taggedCreationInstants {
		windowStart := taggedCreationInstant.Add(-tagProtectionWindow)
		if creationInstant.After(windowStart) && !creationInstant.After(taggedCreationInstant) {
			return true
		}
	}
	return false
}
