package buildx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/turbokube/rockrelease/pkg/run"
	"go.uber.org/zap"
)

// Request is one multi-platform build into an OCI archive
type Request struct {
	Dockerfile string
	Context    string
	// Archive is the oci-archive output path
	Archive string
	// Architectures are linux architectures, for example amd64, arm64
	Architectures []string
	// Tag is name:tag for the image in the archive
	Tag string
}

// Builder runs docker buildx
type Builder struct {
	Runner run.Runner
}

// Args returns buildx arguments, after the docker command
func (r Request) Args() []string {
	platforms := make([]string, len(r.Architectures))
	for i, a := range r.Architectures {
		platforms[i] = "linux/" + a
	}
	return []string{
		"buildx",
		"build",
		"--file=" + r.Dockerfile,
		"--output=type=oci,dest=" + r.Archive,
		"--platform=" + strings.Join(platforms, ","),
		"--tag=" + r.Tag,
		r.Context,
	}
}

func (b *Builder) Build(ctx context.Context, req Request) error {
	if len(req.Architectures) == 0 {
		return errors.New("no architectures to build for")
	}
	zap.L().Info("building", zap.String("tag", req.Tag), zap.String("archive", req.Archive))
	if _, err := b.Runner.Run(ctx, "docker", req.Args()...); err != nil {
		return fmt.Errorf("build %s: %w", req.Tag, err)
	}
	zap.L().Info("built", zap.String("archive", req.Archive))
	return nil
}
