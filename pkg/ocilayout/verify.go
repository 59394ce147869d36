package ocilayout

import (
	"fmt"
	"io"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	digest "github.com/opencontainers/go-digest"
)

// Verify streams the blob a descriptor points to and checks both digest and size
func (s *Store) Verify(desc v1.Descriptor) error {
	d, err := digest.Parse(desc.Digest.String())
	if err != nil {
		return fmt.Errorf("descriptor digest %s: %w", desc.Digest, err)
	}
	r, err := s.Open(desc.Digest)
	if err != nil {
		return err
	}
	defer r.Close()
	verifier := d.Verifier()
	n, err := io.Copy(verifier, r)
	if err != nil {
		return fmt.Errorf("read blob %s: %w", s.BlobPath(desc.Digest), err)
	}
	if n != desc.Size || !verifier.Verified() {
		return &IntegrityError{
			Digest:   desc.Digest,
			Path:     s.BlobPath(desc.Digest),
			Size:     n,
			Expected: desc.Size,
		}
	}
	return nil
}
