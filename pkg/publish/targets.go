package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// DefaultRepos are the repository prefixes a release is published to
var DefaultRepos = []string{
	// Docker Hub
	"ubuntu/",
	// ACR
	"ubuntu.azurecr.io/",
}

// Target is one repository to publish a layout to
type Target struct {
	// Primary is <repo><name>:<tag>, pushed with all platforms
	Primary string
	// Additional are more tags in the same repository for the same index
	Additional []string
}

// Publisher pushes an OCI layout's root image to a target
type Publisher interface {
	Publish(ctx context.Context, layoutDir string, target Target) error
}

// References returns Primary followed by Additional
func (t Target) References() []string {
	return append([]string{t.Primary}, t.Additional...)
}

// Targets returns one target per repo prefix, with validated references
func Targets(repos []string, imageName string, tag string, additional []string) ([]Target, error) {
	targets := make([]Target, 0, len(repos))
	for _, repo := range repos {
		target := Target{Primary: fmt.Sprintf("%s%s:%s", repo, imageName, tag)}
		if _, err := name.NewTag(target.Primary); err != nil {
			return nil, fmt.Errorf("target %s: %w", target.Primary, err)
		}
		for _, add := range additional {
			add = strings.TrimSpace(add)
			if add == "" {
				continue
			}
			ref := fmt.Sprintf("%s%s:%s", repo, imageName, add)
			if _, err := name.NewTag(ref); err != nil {
				return nil, fmt.Errorf("additional tag %s: %w", ref, err)
			}
			target.Additional = append(target.Additional, ref)
		}
		targets = append(targets, target)
	}
	return targets, nil
}
