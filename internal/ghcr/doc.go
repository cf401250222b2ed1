// Package ghcr provides a typed client for the GitHub Container Registry APIs.
//
// It defines the PackageVersion model, the APIError surfaced for REST
// failures, and the PackageVersionService which performs paginated listing
// and deletion of container package versions owned by the authenticated user.
package ghcr
