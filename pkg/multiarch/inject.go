package multiarch

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/turbokube/rockrelease/pkg/ocilayout"
	"go.uber.org/zap"
)

// Store is the read-write side of an OCI layout, see ocilayout.Store
type Store interface {
	Reader
	Write(content []byte) (v1.Hash, int64, error)
	Delete(h v1.Hash) error
	WriteIndex(index *v1.IndexManifest) error
}

var _ Store = (*ocilayout.Store)(nil)

// Result reports the outcome of InjectVariant.
// Applied false means there was nothing to do and the layout is unchanged.
type Result struct {
	Applied      bool
	Architecture string
	Variant      string
	// The rest is set only if Applied
	Root     v1.Descriptor
	List     *v1.Descriptor
	Manifest v1.Descriptor
	Config   v1.Descriptor
}

// InjectVariant sets variant on the image config for architecture
// and rewrites every ancestor up to index.json so that digests and sizes stay consistent.
// Superseded blobs are deleted unless another index.json entry still references them.
//
// The rewrite is not transactional: an error after the first write leaves the layout
// inconsistent, and the way to recover is to produce the layout again.
// Callers must not run InjectVariant concurrently on the same layout.
func InjectVariant(store Store, architecture string, variant string) (Result, error) {
	result := Result{Architecture: architecture, Variant: variant}
	if architecture == "" || variant == "" {
		return result, errors.New("architecture and variant are required")
	}
	zap.L().Info("inject variant if needed",
		zap.String("architecture", architecture),
		zap.String("variant", variant),
	)

	chain, err := Resolve(store, architecture)
	if err != nil {
		return result, err
	}
	if chain == nil {
		zap.L().Info("nothing to do", zap.String("architecture", architecture))
		return result, nil
	}
	if chain.List == nil && chain.Config.Variant == variant {
		zap.L().Info("config already has variant", zap.String("variant", variant))
		return result, nil
	}

	keep, err := referenced(store, chain.Index.Manifests[1:])
	if err != nil {
		return result, err
	}

	config, err := chain.Config.WithVariant(variant)
	if err != nil {
		return result, err
	}
	configDescriptor, err := replace(store, keep, chain.ConfigDescriptor, config)
	if err != nil {
		return result, fmt.Errorf("config: %w", err)
	}
	zap.L().Info("new image config",
		zap.String("digest", configDescriptor.Digest.String()),
		zap.String("variant", variant),
	)

	manifest := *chain.Manifest
	manifest.Config = configDescriptor
	manifestDescriptor, err := replace(store, keep, chain.ManifestDescriptor, &manifest)
	if err != nil {
		return result, fmt.Errorf("manifest: %w", err)
	}
	zap.L().Info("new manifest",
		zap.String("digest", manifestDescriptor.Digest.String()),
		zap.String("config", configDescriptor.Digest.String()),
	)

	rootDescriptor := manifestDescriptor
	if chain.List != nil {
		list := *chain.List
		list.Manifests = slices.Clone(chain.List.Manifests)
		entry := manifestDescriptor
		platform := *entry.Platform
		platform.Variant = variant
		entry.Platform = &platform
		list.Manifests[chain.Entry] = entry
		listDescriptor, err := replace(store, keep, chain.ListDescriptor, &list)
		if err != nil {
			return result, fmt.Errorf("manifest list: %w", err)
		}
		zap.L().Info("new manifest list",
			zap.String("digest", listDescriptor.Digest.String()),
			zap.String("manifest", manifestDescriptor.Digest.String()),
		)
		result.List = &listDescriptor
		rootDescriptor = listDescriptor
	} else if rootDescriptor.Platform != nil && rootDescriptor.Platform.Architecture == architecture {
		platform := *rootDescriptor.Platform
		platform.Variant = variant
		rootDescriptor.Platform = &platform
	}

	index := *chain.Index
	index.Manifests = slices.Clone(chain.Index.Manifests)
	index.Manifests[0] = rootDescriptor
	if err := store.WriteIndex(&index); err != nil {
		return result, err
	}
	zap.L().Info("index rewritten", zap.String("root", rootDescriptor.Digest.String()))

	result.Applied = true
	result.Root = rootDescriptor
	result.Manifest = manifestDescriptor
	result.Config = configDescriptor
	return result, nil
}

// referenced collects the manifest, list and config digests reachable from entries.
// Layers are never rewritten so they are not collected.
func referenced(store Reader, entries []v1.Descriptor) (map[v1.Hash]bool, error) {
	keep := make(map[v1.Hash]bool)
	var visit func(d v1.Descriptor) error
	visit = func(d v1.Descriptor) error {
		if keep[d.Digest] {
			return nil
		}
		keep[d.Digest] = true
		var probe struct {
			MediaType types.MediaType `json:"mediaType"`
		}
		if err := store.ReadJSON(d.Digest, &probe); err != nil {
			return err
		}
		if probe.MediaType.IsIndex() {
			list := &v1.IndexManifest{}
			if err := store.ReadJSON(d.Digest, list); err != nil {
				return err
			}
			for _, child := range list.Manifests {
				if err := visit(child); err != nil {
					return err
				}
			}
			return nil
		}
		manifest := &v1.Manifest{}
		if err := store.ReadJSON(d.Digest, manifest); err != nil {
			return err
		}
		keep[manifest.Config.Digest] = true
		return nil
	}
	for _, d := range entries {
		if err := visit(d); err != nil {
			return nil, err
		}
	}
	return keep, nil
}

// replace writes the new content for a descriptor, deletes the old blob unless keep has it
// and returns the descriptor updated with the new digest and size
func replace(store Store, keep map[v1.Hash]bool, old v1.Descriptor, value any) (v1.Descriptor, error) {
	content, err := json.Marshal(value)
	if err != nil {
		return v1.Descriptor{}, err
	}
	h, size, err := store.Write(content)
	if err != nil {
		return v1.Descriptor{}, err
	}
	if h != old.Digest && keep[old.Digest] {
		zap.L().Debug("superseded but still referenced", zap.String("digest", old.Digest.String()))
	} else if h != old.Digest {
		if err := store.Delete(old.Digest); err != nil {
			return v1.Descriptor{}, err
		}
		zap.L().Debug("superseded", zap.String("digest", old.Digest.String()), zap.String("by", h.String()))
	}
	next := old
	next.Digest = h
	next.Size = size
	next.Data = nil
	return next, nil
}
