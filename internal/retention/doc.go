// Package retention decides which untagged container versions are safe to delete.
//
// SelectForDeletion is a pure function over a version snapshot: it never
// returns tagged versions, versions younger than the cutoff, or versions
// created within the protection window preceding any tagged version.
package retention
