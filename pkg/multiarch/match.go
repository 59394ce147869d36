package multiarch

import (
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/match"
)

// NewVariantlessMatcher matches manifest list entries for the architecture
// that have no variant yet, i.e. the entries that variant injection targets.
// Entries without platform never match.
func NewVariantlessMatcher(architecture string) match.Matcher {
	return func(desc v1.Descriptor) bool {
		if desc.Platform == nil {
			return false
		}
		return desc.Platform.Architecture == architecture && desc.Platform.Variant == ""
	}
}
