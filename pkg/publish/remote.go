package publish

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/turbokube/rockrelease/pkg/multiarch"
	"github.com/turbokube/rockrelease/pkg/registry"
	"go.uber.org/zap"
)

// RemotePublisher pushes with go-containerregistry, using docker config credentials
type RemotePublisher struct {
}

var _ Publisher = (*RemotePublisher)(nil)

func (p *RemotePublisher) Publish(ctx context.Context, layoutDir string, target Target) error {
	c, err := registry.New(target.Primary)
	if err != nil {
		return err
	}
	ref, err := name.NewTag(target.Primary, c.CraneOptions.Name...)
	if err != nil {
		return err
	}
	options := append(slices.Clone(c.CraneOptions.Remote), remote.WithContext(ctx))

	idx, root, err := layoutRoot(layoutDir)
	if err != nil {
		return err
	}

	var pushed remote.Taggable
	switch {
	case root.MediaType.IsIndex():
		child, err := idx.ImageIndex(root.Digest)
		if err != nil {
			return err
		}
		if err := remote.WriteIndex(ref, child, options...); err != nil {
			return fmt.Errorf("push %s: %w", ref, err)
		}
		pushed = child
	case root.MediaType.IsImage():
		img, err := idx.Image(root.Digest)
		if err != nil {
			return err
		}
		if err := remote.Write(ref, img, options...); err != nil {
			return fmt.Errorf("push %s: %w", ref, err)
		}
		pushed = img
	default:
		return fmt.Errorf("unsupported root media type %s", root.MediaType)
	}
	zap.L().Info("pushed", zap.String("ref", ref.String()), zap.String("digest", root.Digest.String()))

	for _, add := range target.Additional {
		tag, err := name.NewTag(add, c.CraneOptions.Name...)
		if err != nil {
			return err
		}
		if err := remote.Tag(tag, pushed, options...); err != nil {
			return fmt.Errorf("tag %s: %w", tag, err)
		}
		zap.L().Info("tagged", zap.String("ref", tag.String()), zap.String("digest", root.Digest.String()))
	}
	return nil
}

func layoutRoot(layoutDir string) (v1.ImageIndex, v1.Descriptor, error) {
	path, err := layout.FromPath(layoutDir)
	if err != nil {
		return nil, v1.Descriptor{}, fmt.Errorf("layout %s: %w", layoutDir, err)
	}
	idx, err := path.ImageIndex()
	if err != nil {
		return nil, v1.Descriptor{}, err
	}
	index, err := idx.IndexManifest()
	if err != nil {
		return nil, v1.Descriptor{}, err
	}
	root, err := multiarch.RootDescriptor(index)
	return idx, root, err
}
