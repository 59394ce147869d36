package skopeo

import (
	"context"
	"fmt"

	"github.com/turbokube/rockrelease/pkg/run"
	"go.uber.org/zap"
)

const command = "skopeo"

// Skopeo converts and copies images with the skopeo CLI.
// Policy checks are disabled, so sources must be trusted.
type Skopeo struct {
	Runner run.Runner
}

// Convert unpacks an oci-archive into an OCI layout directory, keeping digests
func (s *Skopeo) Convert(ctx context.Context, archive string, layoutDir string) error {
	args := []string{
		"--insecure-policy",
		"copy",
		"--multi-arch", "all",
		"--preserve-digests",
		"oci-archive:" + archive,
		"oci:" + layoutDir,
	}
	if _, err := s.Runner.Run(ctx, command, args...); err != nil {
		return fmt.Errorf("convert %s: %w", archive, err)
	}
	zap.L().Info("converted", zap.String("archive", archive), zap.String("layout", layoutDir))
	return nil
}

// Copy pushes a layout to a docker reference.
// With indexOnly the manifests are expected to exist already at dest's repository.
func (s *Skopeo) Copy(ctx context.Context, layoutDir string, dest string, indexOnly bool) error {
	multiArch := "all"
	if indexOnly {
		multiArch = "index-only"
	}
	args := []string{
		"--insecure-policy",
		"copy",
		"--preserve-digests",
		"oci:" + layoutDir,
		"--multi-arch", multiArch,
		"docker://" + dest,
	}
	if _, err := s.Runner.Run(ctx, command, args...); err != nil {
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	zap.L().Info("copied", zap.String("dest", dest), zap.String("multiArch", multiArch))
	return nil
}
