package registry

import (
	"regexp"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"go.uber.org/zap"
)

var (
	insecureAccessRefs = regexp.MustCompile(`^[^/]+\.local/`)
)

type RegistryConfig struct {
	CraneOptions crane.Options
}

// New returns registry access options for pushing to ref,
// with credentials from the docker config and plain http for .local hosts
func New(ref string) (*RegistryConfig, error) {
	c := &RegistryConfig{}
	// https://github.com/google/go-containerregistry/blob/v0.13.0/pkg/crane/options.go#L43
	c.CraneOptions = crane.Options{
		Remote: []remote.Option{
			remote.WithAuthFromKeychain(authn.DefaultKeychain),
		},
		Keychain: authn.DefaultKeychain,
	}

	if insecureAccessRefs.MatchString(ref) {
		zap.L().Debug("insecure access enabled", zap.String("ref", ref))
		crane.Insecure(&c.CraneOptions)
	}

	return c, nil
}
