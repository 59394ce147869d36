package schema_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"github.com/turbokube/rockrelease/pkg/schema"
	v1 "github.com/turbokube/rockrelease/pkg/schema/v1"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const rockcraft = `
name: mock-rock
summary: not parsed
base: 22.10
version: 1.0
platforms:
  amd64:
  arm64:
  s390x: {}
  ibm:
    build-on: [amd64]
    build-for: [ppc64le]
parts:
  hello:
    plugin: nil
`

func useFs(t *testing.T, files map[string]string) {
	memfs := afero.NewMemMapFs()
	for path, content := range files {
		Expect(afero.WriteFile(memfs, path, []byte(content), 0644)).To(Succeed())
	}
	original := schema.Fs
	schema.Fs = memfs
	t.Cleanup(func() { schema.Fs = original })
}

func useHost(t *testing.T, arch string) *observer.ObservedLogs {
	original := schema.HostArchitecture
	schema.HostArchitecture = arch
	core, logs := observer.New(zap.WarnLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(func() {
		schema.HostArchitecture = original
		undo()
	})
	return logs
}

func TestParseProject(t *testing.T) {
	RegisterTestingT(t)
	useHost(t, "amd64")
	useFs(t, map[string]string{"/src/rockcraft.yaml": rockcraft})

	p, err := schema.ParseProject("/src/rockcraft.yaml")
	Expect(err).NotTo(HaveOccurred())
	Expect(p.Name).To(Equal("mock-rock"))
	Expect(p.Base).To(Equal("22.10"))
	Expect(p.Version).To(Equal("1.0"))
	Expect(p.Platforms).To(HaveLen(4))
	Expect(p.Platforms[0].Label).To(Equal("amd64"))
	Expect(p.Platforms[3]).To(Equal(v1.Platform{
		Label:    "ibm",
		BuildOn:  []string{"amd64"},
		BuildFor: []string{"ppc64le"},
	}))
	Expect(p.BuildFor()).To(Equal([]string{"amd64", "arm64", "s390x", "ppc64le"}))
	Expect(p.BuildContext()).To(Equal("/src/mock-rock"))
	Expect(p.Dockerfile()).To(Equal("/src/mock-rock/Dockerfile.22.10"))
	Expect(p.Status.Sha256).To(HaveLen(64))
}

func TestParseProjectRelative(t *testing.T) {
	RegisterTestingT(t)
	useHost(t, "amd64")
	useFs(t, map[string]string{"rockcraft.yaml": rockcraft})

	p, err := schema.ParseProject("rockcraft.yaml")
	Expect(err).NotTo(HaveOccurred())
	Expect(p.Dockerfile()).To(Equal("mock-rock/Dockerfile.22.10"))
	Expect(p.BuildContext()).To(Equal("mock-rock"))
}

func TestParseProjectMissingFields(t *testing.T) {
	RegisterTestingT(t)
	useHost(t, "amd64")
	useFs(t, map[string]string{
		"/a.yaml": "name: x\nbase: ubuntu@22.04\nplatforms:\n  amd64:\n",
		"/b.yaml": "name: x\nbase: ubuntu@22.04\nversion: '1'\n",
		"/c.yaml": "- not a mapping\n",
	})
	_, err := schema.ParseProject("/a.yaml")
	Expect(err).To(MatchError(ContainSubstring("missing version")))
	_, err = schema.ParseProject("/b.yaml")
	Expect(err).To(MatchError(ContainSubstring("missing platforms")))
	_, err = schema.ParseProject("/c.yaml")
	Expect(err).To(MatchError(ContainSubstring("expected a mapping")))
	_, err = schema.ParseProject("/none.yaml")
	Expect(err).To(HaveOccurred())
}

func TestValidate(t *testing.T) {
	RegisterTestingT(t)
	useHost(t, "amd64")

	project := func(platforms ...v1.Platform) v1.Project {
		return v1.Project{
			Status:    v1.ProjectStatus{Path: "rockcraft.yaml"},
			Name:      "x",
			Base:      "22.04",
			Version:   "1",
			Platforms: platforms,
		}
	}
	cases := map[string]struct {
		project v1.Project
		msg     string
	}{
		"label differs from build-for": {
			project(v1.Platform{Label: "amd64", BuildOn: []string{"amd64"}, BuildFor: []string{"arm64"}}),
			"the label is a valid architecture",
		},
		"unsupported label": {
			project(v1.Platform{Label: "riscv64"}),
			"build-for [riscv64] is not supported",
		},
		"build-for without build-on": {
			project(v1.Platform{Label: "mine", BuildFor: []string{"arm64"}}),
			"build-on is required",
		},
		"unsupported build-on": {
			project(v1.Platform{Label: "mine", BuildOn: []string{"mips"}, BuildFor: []string{"arm64"}}),
			"build-on [mips] is not supported",
		},
		"no platforms": {
			project(),
			"no platforms",
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			RegisterTestingT(t)
			err := schema.Validate(c.project)
			var invalid *schema.PlatformValidationError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Path).To(Equal("rockcraft.yaml"))
			Expect(invalid.Msg).To(ContainSubstring(c.msg))
		})
	}
}

func TestValidateForeignBuildOnWarns(t *testing.T) {
	RegisterTestingT(t)
	logs := useHost(t, "amd64")

	err := schema.Validate(v1.Project{
		Name: "x", Base: "22.04", Version: "1",
		Platforms: []v1.Platform{{Label: "s390x"}},
	})
	Expect(err).NotTo(HaveOccurred())
	Expect(logs.FilterField(zap.String("label", "s390x")).Len()).To(Equal(1))
}

func TestDiscoverProjects(t *testing.T) {
	RegisterTestingT(t)
	useFs(t, map[string]string{
		"/src/rockcraft_b.yaml": rockcraft,
		"/src/rockcraft.yaml":   rockcraft,
		"/src/rockcraft_a.yaml": rockcraft,
		"/src/other.yaml":       rockcraft,
	})
	files, err := schema.DiscoverProjects("/src")
	Expect(err).NotTo(HaveOccurred())
	Expect(files).To(Equal([]string{
		"/src/rockcraft.yaml",
		"/src/rockcraft_a.yaml",
		"/src/rockcraft_b.yaml",
	}))
}
