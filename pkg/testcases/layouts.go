package testcases

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path/filepath"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/types"
	specsv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"
)

// RefName is the ref.name annotation that fixture layouts carry on their index.json entry,
// like skopeo copy to oci:dir:tag does
const RefName = "edge"

// PlatformImage returns a random OCI image whose config has the platform's os, architecture and variant
func PlatformImage(platform v1.Platform) (v1.Image, error) {
	img, err := random.Image(256, 1)
	if err != nil {
		return nil, err
	}
	cf, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}
	cf = cf.DeepCopy()
	cf.OS = platform.OS
	cf.Architecture = platform.Architecture
	cf.Variant = platform.Variant
	img, err = mutate.ConfigFile(img, cf)
	if err != nil {
		return nil, err
	}
	img = mutate.MediaType(img, types.OCIManifestSchema1)
	img = mutate.ConfigMediaType(img, types.OCIConfigJSON)
	return img, nil
}

// MultiArchIndex returns an OCI image index with one image per platform, in order
func MultiArchIndex(platforms ...v1.Platform) (v1.ImageIndex, error) {
	var idx v1.ImageIndex = empty.Index
	for _, p := range platforms {
		img, err := PlatformImage(p)
		if err != nil {
			return nil, err
		}
		platform := p
		idx = mutate.AppendManifests(idx, mutate.IndexAddendum{
			Add: img,
			Descriptor: v1.Descriptor{
				MediaType: types.OCIManifestSchema1,
				Platform:  &platform,
			},
		})
	}
	return mutate.IndexMediaType(idx, types.OCIImageIndex), nil
}

// WriteMultiArchLayout writes an OCI layout at dir whose index.json has a single entry
// pointing to a manifest list, the shape that conversion of a multi-platform build produces
func WriteMultiArchLayout(dir string, platforms ...v1.Platform) (layout.Path, error) {
	idx, err := MultiArchIndex(platforms...)
	if err != nil {
		return "", err
	}
	p, err := layout.Write(dir, empty.Index)
	if err != nil {
		return "", err
	}
	err = p.AppendIndex(idx, layout.WithAnnotations(map[string]string{
		specsv1.AnnotationRefName: RefName,
	}))
	return p, err
}

// WriteSingleLayout writes an OCI layout at dir whose index.json points directly to an image manifest
func WriteSingleLayout(dir string, platform v1.Platform) (layout.Path, error) {
	img, err := PlatformImage(platform)
	if err != nil {
		return "", err
	}
	p, err := layout.Write(dir, empty.Index)
	if err != nil {
		return "", err
	}
	err = p.AppendImage(img,
		layout.WithPlatform(platform),
		layout.WithAnnotations(map[string]string{
			specsv1.AnnotationRefName: RefName,
		}),
	)
	return p, err
}

// TreeDigests maps every file under root to the sha256 of its content,
// for asserting that an operation left a directory unchanged
func TreeDigests(fsys afero.Fs, root string) (map[string]string, error) {
	digests := make(map[string]string)
	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		content, err := afero.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		digests[rel] = fmt.Sprintf("%x", sha256.Sum256(content))
		return nil
	})
	return digests, err
}
