package v1

import "path/filepath"

// Project is a rockcraft project file, reduced to what a release needs
type Project struct {
	Status ProjectStatus `json:"-"`
	// Name is both the image name and the build context directory
	Name string `json:"name"`
	// Base is kept verbatim, for example 22.10 must not become 22.1
	Base    string `json:"base"`
	Version string `json:"version"`
	// Platforms in file order
	Platforms []Platform `json:"platforms"`
}

type ProjectStatus struct {
	// Path is the file the project was read from, empty for stdin
	Path   string
	Sha256 string
}

// Platform is an entry under platforms, keyed by Label in the file
type Platform struct {
	Label string `json:"label"`
	// BuildOn defaults to Label when not set
	BuildOn []string `json:"build-on,omitempty"`
	// BuildFor defaults to Label when not set. If set, BuildOn must be set too.
	BuildFor []string `json:"build-for,omitempty"`
}

// TargetArchitectures returns build-for or the label
func (p Platform) TargetArchitectures() []string {
	if len(p.BuildFor) > 0 {
		return p.BuildFor
	}
	return []string{p.Label}
}

// BuildArchitectures returns build-on or the label
func (p Platform) BuildArchitectures() []string {
	if len(p.BuildOn) > 0 {
		return p.BuildOn
	}
	return []string{p.Label}
}

func (p Project) dir() string {
	if p.Status.Path == "" {
		return ""
	}
	return filepath.Dir(p.Status.Path)
}

// BuildContext is the directory named after the project, next to the project file
func (p Project) BuildContext() string {
	return filepath.Join(p.dir(), p.Name)
}

// Dockerfile is <name>/Dockerfile.<base>
func (p Project) Dockerfile() string {
	return filepath.Join(p.BuildContext(), "Dockerfile."+p.Base)
}

// BuildFor concatenates the target architectures of all platforms, in order
func (p Project) BuildFor() []string {
	var archs []string
	for _, platform := range p.Platforms {
		archs = append(archs, platform.TargetArchitectures()...)
	}
	return archs
}
