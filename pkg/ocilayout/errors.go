package ocilayout

import (
	"fmt"
	"io/fs"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// NotFoundError means a referenced digest has no blob, or the layout has no index.json
type NotFoundError struct {
	// Digest is zero for index.json
	Digest v1.Hash
	Path   string
}

func (e *NotFoundError) Error() string {
	if e.Digest == (v1.Hash{}) {
		return fmt.Sprintf("not found: %s", e.Path)
	}
	return fmt.Sprintf("blob %s not found at %s", e.Digest, e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return fs.ErrNotExist
}

// DecodeError means a blob's content is not the JSON document it was expected to be
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IntegrityError means a blob doesn't match the descriptor that references it
type IntegrityError struct {
	Digest   v1.Hash
	Path     string
	Size     int64
	Expected int64
}

func (e *IntegrityError) Error() string {
	if e.Size != e.Expected {
		return fmt.Sprintf("blob %s at %s has size %d, descriptor says %d", e.Digest, e.Path, e.Size, e.Expected)
	}
	return fmt.Sprintf("blob %s at %s does not match its digest", e.Digest, e.Path)
}
