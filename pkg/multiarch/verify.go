package multiarch

import (
	"fmt"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	specsv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/turbokube/rockrelease/pkg/ocilayout"
	"go.uber.org/zap"
)

const (
	// buildkit attestation manifests are listed with this platform
	attestationPlatform      = "unknown/unknown"
	referenceTypeAnnotation  = "vnd.docker.reference.type"
	referenceTypeAttestation = "attestation-manifest"
)

// Verifier is what Verify needs from a layout, see ocilayout.Store
type Verifier interface {
	Reader
	Verify(desc v1.Descriptor) error
}

var _ Verifier = (*ocilayout.Store)(nil)

// Report summarizes a verified layout
type Report struct {
	Root v1.Descriptor
	// RefName is the root's org.opencontainers.image.ref.name annotation, if any
	RefName string
	// Platforms are those of the root image, see Platforms
	Platforms []v1.Platform
	Manifests int
	Blobs     int
}

// Verify walks every entry in index.json down to configs and layers
// and checks that each referenced blob matches its descriptor's digest and size.
func Verify(store Verifier) (Report, error) {
	index, err := store.ReadIndex()
	if err != nil {
		return Report{}, err
	}
	root, err := RootDescriptor(index)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Root:    root,
		RefName: root.Annotations[specsv1.AnnotationRefName],
	}
	w := &walker{store: store, seen: make(map[v1.Hash]bool), report: &report}
	for _, d := range index.Manifests {
		if err := w.node(d); err != nil {
			return report, err
		}
	}
	report.Platforms, err = Platforms(store)
	if err != nil {
		return report, err
	}
	zap.L().Debug("verified",
		zap.String("root", root.Digest.String()),
		zap.Int("manifests", report.Manifests),
		zap.Int("blobs", report.Blobs),
	)
	return report, nil
}

type walker struct {
	store  Verifier
	seen   map[v1.Hash]bool
	report *Report
}

func (w *walker) blob(d v1.Descriptor) error {
	if w.seen[d.Digest] {
		return nil
	}
	w.seen[d.Digest] = true
	if err := w.store.Verify(d); err != nil {
		return err
	}
	w.report.Blobs++
	return nil
}

func (w *walker) node(d v1.Descriptor) error {
	if w.seen[d.Digest] {
		return nil
	}
	if err := w.blob(d); err != nil {
		return err
	}
	w.report.Manifests++
	var probe struct {
		MediaType types.MediaType `json:"mediaType"`
	}
	if err := w.store.ReadJSON(d.Digest, &probe); err != nil {
		return err
	}
	if probe.MediaType.IsIndex() {
		list := &v1.IndexManifest{}
		if err := w.store.ReadJSON(d.Digest, list); err != nil {
			return err
		}
		for _, child := range list.Manifests {
			if err := w.node(child); err != nil {
				return fmt.Errorf("in %s: %w", d.Digest, err)
			}
		}
		return nil
	}
	manifest := &v1.Manifest{}
	if err := w.store.ReadJSON(d.Digest, manifest); err != nil {
		return err
	}
	if err := w.blob(manifest.Config); err != nil {
		return fmt.Errorf("config of %s: %w", d.Digest, err)
	}
	for _, layer := range manifest.Layers {
		if err := w.blob(layer); err != nil {
			return fmt.Errorf("layer of %s: %w", d.Digest, err)
		}
	}
	return nil
}

// Platforms lists the image platforms of the root entry:
// manifest list entries except attestations, or the config platform of a single manifest.
func Platforms(store Reader) ([]v1.Platform, error) {
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
	if probe.MediaType == types.OCIImageIndex {
		list := &v1.IndexManifest{}
		if err := store.ReadJSON(root.Digest, list); err != nil {
			return nil, err
		}
		platforms := make([]v1.Platform, 0, len(list.Manifests))
		for _, d := range list.Manifests {
			if d.Platform == nil || d.MediaType.IsIndex() {
				continue
			}
			if d.Platform.String() == attestationPlatform && d.Annotations[referenceTypeAnnotation] == referenceTypeAttestation {
				continue
			}
			platforms = append(platforms, *d.Platform)
		}
		return platforms, nil
	}
	manifest := &v1.Manifest{}
	if err := store.ReadJSON(root.Digest, manifest); err != nil {
		return nil, err
	}
	config := &v1.ConfigFile{}
	if err := store.ReadJSON(manifest.Config.Digest, config); err != nil {
		return nil, err
	}
	platform := config.Platform()
	if platform == nil {
		return nil, nil
	}
	return []v1.Platform{*platform}, nil
}
