package multiarch

import (
	"errors"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/turbokube/rockrelease/pkg/ocilayout"
	"go.uber.org/zap"
)

var ErrEmptyIndex = errors.New("index.json has no manifests")

// Reader is the read side of an OCI layout, see ocilayout.Store
type Reader interface {
	ReadIndex() (*v1.IndexManifest, error)
	Read(h v1.Hash) ([]byte, error)
	ReadJSON(h v1.Hash, v any) error
	BlobPath(h v1.Hash) string
}

var _ Reader = (*ocilayout.Store)(nil)

// Chain is the index -> [manifest list ->] manifest -> config path for one architecture
type Chain struct {
	Index *v1.IndexManifest
	// List is nil when the index root is an image manifest
	List           *v1.IndexManifest
	ListDescriptor v1.Descriptor
	// Entry is the position of the resolved manifest in List.Manifests, -1 without list
	Entry              int
	Manifest           *v1.Manifest
	ManifestDescriptor v1.Descriptor
	Config             *ConfigFile
	ConfigDescriptor   v1.Descriptor
}

// RootDescriptor returns the index entry that this tool treats as the image:
// the first one. Layouts produced by a single oci-archive conversion have exactly one.
func RootDescriptor(index *v1.IndexManifest) (v1.Descriptor, error) {
	if index == nil || len(index.Manifests) == 0 {
		return v1.Descriptor{}, ErrEmptyIndex
	}
	if len(index.Manifests) > 1 {
		zap.L().Warn("index has more than one manifest, using the first",
			zap.Int("manifests", len(index.Manifests)),
			zap.String("digest", index.Manifests[0].Digest.String()),
		)
	}
	return index.Manifests[0], nil
}

// Resolve finds the manifest and config for an architecture.
// A nil chain with nil error means the layout has nothing for the architecture,
// which callers should treat as nothing to do.
// Resolve never writes, so errors here leave the layout untouched.
func Resolve(store Reader, architecture string) (*Chain, error) {
	index, err := store.ReadIndex()
	if err != nil {
		return nil, err
	}
	root, err := RootDescriptor(index)
	if err != nil {
		return nil, err
	}

	var probe struct {
		MediaType types.MediaType `json:"mediaType"`
	}
	if err := store.ReadJSON(root.Digest, &probe); err != nil {
		return nil, err
	}

	chain := &Chain{Index: index, Entry: -1}
	manifestDescriptor := root

	if probe.MediaType == types.OCIImageIndex {
		zap.L().Debug("multi-arch image", zap.String("list", root.Digest.String()))
		list := &v1.IndexManifest{}
		if err := store.ReadJSON(root.Digest, list); err != nil {
			return nil, err
		}
		matcher := NewVariantlessMatcher(architecture)
		for i, d := range list.Manifests {
			if matcher(d) {
				chain.Entry = i
				manifestDescriptor = d
				break
			}
		}
		if chain.Entry == -1 {
			zap.L().Info("no manifest list entry without variant",
				zap.String("architecture", architecture),
				zap.Int("entries", len(list.Manifests)),
			)
			return nil, nil
		}
		chain.List = list
		chain.ListDescriptor = root
	} else {
		zap.L().Debug("single manifest image",
			zap.String("manifest", root.Digest.String()),
			zap.String("mediaType", string(probe.MediaType)),
		)
	}

	manifest := &v1.Manifest{}
	if err := store.ReadJSON(manifestDescriptor.Digest, manifest); err != nil {
		return nil, err
	}
	chain.Manifest = manifest
	chain.ManifestDescriptor = manifestDescriptor

	raw, err := store.Read(manifest.Config.Digest)
	if err != nil {
		return nil, err
	}
	config, err := ParseConfigFile(raw)
	if err != nil {
		return nil, &ocilayout.DecodeError{Path: store.BlobPath(manifest.Config.Digest), Err: err}
	}
	if config.Architecture != architecture {
		zap.L().Info("image has no manifest for architecture",
			zap.String("architecture", architecture),
			zap.String("config", config.Architecture),
		)
		return nil, nil
	}
	chain.Config = config
	chain.ConfigDescriptor = manifest.Config

	return chain, nil
}
