package ghcr

import "time"

// PackageVersion is a read-only snapshot of one stored container version.
//
// Identifiers are unique within a container package and increase
// monotonically with creation time, which makes them usable as a report
// ordering proxy.
type PackageVersion struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	Tags      []string
}

// IsTagged reports whether the version carries at least one tag.
func (version PackageVersion) IsTagged() bool {
	return len(version.Tags) > 0
}

type containerMetadataPayload struct {
	Tags []string `json:"tags"`
}

type versionMetadataPayload struct {
	Container containerMetadataPayload `json:"container"`
}

type packageVersionPayload struct {
	ID        int64                  `json:"id"`
	Name      string                 `json:"name"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  versionMetadataPayload `json:"metadata"`
}

func (payload packageVersionPayload) toPackageVersion() PackageVersion {
	return PackageVersion{
		ID:        payload.ID,
		Name:      payload.Name,
		CreatedAt: payload.CreatedAt,
		Tags:      payload.Metadata.Container.Tags,
	}
}

type containerPackagePayload struct {
	Name string `json:"name"`
}
