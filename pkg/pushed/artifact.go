package pushed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/distribution/reference"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"go.uber.org/zap"
)

// Artifact represents what we need to know (without manifest fetch) about a published reference
type Artifact struct {
	// Name without tag or digest used to reference the artifact in deployment resources
	ImageName string `json:"imageName"`
	// Ref here includes name, tag and digest
	TagRef string `json:"tag"`
	// MediaType is not part of skaffold's build output format
	MediaType types.MediaType `json:"mediaType"`
	// Platforms is not part of skaffold's build output format,
	// listed because the variant of each platform is what a release fixes up
	Platforms []v1.Platform `json:"platforms"`
	// reference is kept internally for reuse
	reference name.Reference
	hash      v1.Hash
}

func (a *Artifact) Reference() name.Reference {
	return a.reference
}

func (a *Artifact) Digest() v1.Hash {
	return a.hash
}

// New should be called for each reference that a layout root was published to.
// Root is the layout's first index.json entry and platforms are those of the image it points to.
func New(tagRef string, root v1.Descriptor, platforms []v1.Platform) (*Artifact, error) {
	full := fmt.Sprintf("%s@%v", tagRef, root.Digest)

	ref, err := reference.Parse(full)
	if err != nil {
		zap.L().Error("parse", zap.String("ref", full), zap.Error(err))
		return nil, err
	}
	named, ok := ref.(reference.Named)
	if !ok {
		return nil, fmt.Errorf("not a named reference: %s", full)
	}

	// found no way to get default repo and tag from
	r, err := name.ParseReference(tagRef)
	if err != nil {
		zap.L().Error("parse", zap.String("ref", tagRef))
		return nil, err
	}

	// actually we can't use ref because it prepends default registry, skaffold probably doesn't do that
	return &Artifact{
		TagRef:    ref.String(),
		ImageName: named.Name(),
		MediaType: root.MediaType,
		Platforms: platforms,
		reference: r,
		hash:      root.Digest,
	}, nil
}

// UnmarshalJSON reconstructs internal state (reference and hash) from exported fields.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	type artifactAlias Artifact
	type artifactJSON struct {
		artifactAlias
		Platforms []string `json:"platforms"`
	}
	var aux artifactJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*a = Artifact(aux.artifactAlias)
	platforms, err := platformsFromStrings(aux.Platforms)
	if err != nil {
		return err
	}
	a.Platforms = platforms

	// TagRef should be name[:tag]@digest
	var base string
	var digestStr string
	if at := strings.LastIndex(a.TagRef, "@"); at != -1 {
		base = a.TagRef[:at]
		digestStr = a.TagRef[at+1:]
	} else {
		base = a.TagRef
	}

	if digestStr != "" {
		if h, err := v1.NewHash(digestStr); err == nil {
			a.hash = h
		} else {
			zap.L().Warn("failed to parse digest from tag", zap.String("tag", a.TagRef), zap.Error(err))
		}
	}

	if r, err := name.ParseReference(base); err == nil {
		a.reference = r
	} else {
		zap.L().Warn("failed to parse reference from tag", zap.String("tag", a.TagRef), zap.Error(err))
	}
	return nil
}

// MarshalJSON encodes Platforms as strings (os/arch[/variant]) for readability/stability.
func (a Artifact) MarshalJSON() ([]byte, error) {
	type artifactAlias Artifact
	type artifactJSON struct {
		artifactAlias
		Platforms []string `json:"platforms"`
	}
	out := artifactJSON{
		artifactAlias: artifactAlias(a),
		Platforms:     toPlatforms(a.Platforms),
	}
	return json.Marshal(out)
}
