// Package oci publishes downloaded collection artifacts to OCI registries
// using ORAS, so capture results can be stored and distributed next to the
// images that produced them.
package oci

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"

	apperrors "github.com/retisctl/arc/pkg/errors"
)

// URIScheme is the URI scheme selecting OCI registry output
// (e.g. "oci://ghcr.io/org/captures:run-1").
const URIScheme = "oci://"

// Reference is a parsed push target: an OCI registry reference or a local
// directory path.
type Reference struct {
	// IsOCI distinguishes a registry reference from a local path.
	IsOCI bool
	// Registry is the registry host (e.g. "ghcr.io", "localhost:5000").
	Registry string
	// Repository is the repository path (e.g. "org/captures").
	Repository string
	// Tag is the artifact tag. Empty means the caller applies a default.
	Tag string
	// LocalPath is the local directory for non-OCI targets.
	LocalPath string
}

// ParseTarget parses a push target string. oci:// URIs are validated as
// image references; anything else is treated as a local directory path.
func ParseTarget(target string) (*Reference, error) {
	if !strings.HasPrefix(target, URIScheme) {
		return &Reference{
			IsOCI:     false,
			LocalPath: target,
		}, nil
	}

	ref, err := reference.ParseNormalizedNamed(strings.TrimPrefix(target, URIScheme))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid OCI reference", err)
	}

	var tag string
	if tagged, ok := ref.(reference.Tagged); ok {
		tag = tagged.Tag()
	}

	return &Reference{
		IsOCI:      true,
		Registry:   reference.Domain(ref),
		Repository: reference.Path(ref),
		Tag:        tag,
	}, nil
}

// String returns the full reference string: "oci://registry/repository:tag"
// for registry targets, the path itself for local ones.
func (r *Reference) String() string {
	if !r.IsOCI {
		return r.LocalPath
	}
	if r.Tag == "" {
		return fmt.Sprintf("%s%s/%s", URIScheme, r.Registry, r.Repository)
	}
	return fmt.Sprintf("%s%s/%s:%s", URIScheme, r.Registry, r.Repository, r.Tag)
}

// ImageReference returns the Docker-style reference without the oci://
// scheme, or the empty string for local targets.
func (r *Reference) ImageReference() string {
	if !r.IsOCI {
		return ""
	}
	if r.Tag == "" {
		return fmt.Sprintf("%s/%s", r.Registry, r.Repository)
	}
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}

// WithTag returns a copy of the reference with the given tag. Local targets
// are returned unchanged.
func (r *Reference) WithTag(tag string) *Reference {
	if !r.IsOCI {
		return r
	}
	return &Reference{
		IsOCI:      true,
		Registry:   r.Registry,
		Repository: r.Repository,
		Tag:        tag,
	}
}
