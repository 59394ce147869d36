package publish

import (
	"context"

	"github.com/turbokube/rockrelease/pkg/skopeo"
	"go.uber.org/zap"
)

// SkopeoPublisher copies with skopeo, which must already be logged in to the registries
type SkopeoPublisher struct {
	Skopeo *skopeo.Skopeo
}

var _ Publisher = (*SkopeoPublisher)(nil)

func (p *SkopeoPublisher) Publish(ctx context.Context, layoutDir string, target Target) error {
	zap.L().Info("publishing", zap.String("ref", target.Primary))
	if err := p.Skopeo.Copy(ctx, layoutDir, target.Primary, false); err != nil {
		return err
	}
	for _, add := range target.Additional {
		zap.L().Info("additional tag", zap.String("ref", add), zap.String("for", target.Primary))
		if err := p.Skopeo.Copy(ctx, layoutDir, add, true); err != nil {
			return err
		}
	}
	return nil
}
