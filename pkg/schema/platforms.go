package schema

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	v1 "github.com/turbokube/rockrelease/pkg/schema/v1"
	"go.uber.org/zap"
)

// SupportedArchitectures are the architectures a project may build on and for
var SupportedArchitectures = []string{"amd64", "arm", "arm64", "s390x", "ppc64le"}

// HostArchitecture is compared to build-on, a mismatch is only a warning
var HostArchitecture = runtime.GOARCH

// PlatformValidationError means that a project's platforms can't be built
type PlatformValidationError struct {
	Path  string
	Label string
	Msg   string
}

func (e *PlatformValidationError) Error() string {
	return fmt.Sprintf("%s: platform %s: %s", e.Path, e.Label, e.Msg)
}

func supported(archs []string) bool {
	for _, a := range archs {
		if !slices.Contains(SupportedArchitectures, a) {
			return false
		}
	}
	return true
}

// Validate checks the platforms of a parsed project
func Validate(project v1.Project) error {
	if len(project.Platforms) == 0 {
		return &PlatformValidationError{Path: project.Status.Path, Msg: "no platforms"}
	}
	for _, p := range project.Platforms {
		invalid := func(format string, a ...any) error {
			return &PlatformValidationError{
				Path:  project.Status.Path,
				Label: p.Label,
				Msg:   fmt.Sprintf(format, a...),
			}
		}
		buildFor := p.TargetArchitectures()
		if slices.Contains(SupportedArchitectures, p.Label) && !slices.Equal(buildFor, []string{p.Label}) {
			return invalid("the label is a valid architecture but build-for is %v", buildFor)
		}
		if !supported(buildFor) {
			return invalid("build-for %v is not supported, supported architectures are %s",
				buildFor, strings.Join(SupportedArchitectures, ","))
		}
		if len(p.BuildFor) > 0 && len(p.BuildOn) == 0 {
			return invalid("build-on is required when build-for is set")
		}
		buildOn := p.BuildArchitectures()
		if !supported(buildOn) {
			return invalid("build-on %v is not supported, supported architectures are %s",
				buildOn, strings.Join(SupportedArchitectures, ","))
		}
		if !slices.Contains(buildOn, HostArchitecture) {
			zap.L().Warn("no build-on architecture matches this machine, relying on emulation",
				zap.String("path", project.Status.Path),
				zap.String("label", p.Label),
				zap.Strings("buildOn", buildOn),
				zap.String("host", HostArchitecture),
			)
		}
	}
	return nil
}
