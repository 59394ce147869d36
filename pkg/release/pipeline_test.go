package release_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	. "github.com/onsi/gomega"
	"github.com/turbokube/rockrelease/pkg/buildx"
	"github.com/turbokube/rockrelease/pkg/multiarch"
	"github.com/turbokube/rockrelease/pkg/ocilayout"
	"github.com/turbokube/rockrelease/pkg/publish"
	"github.com/turbokube/rockrelease/pkg/release"
	"github.com/turbokube/rockrelease/pkg/skopeo"
	"github.com/turbokube/rockrelease/pkg/testcases"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const rockcraft = `name: mock-rock
base: "22.04"
version: "1.0"
platforms:
  amd64:
  arm64:
`

func useTestLogger(t *testing.T) {
	undo := zap.ReplaceGlobals(zaptest.NewLogger(t))
	t.Cleanup(undo)
}

// converting writes a layout for the platforms that a fake skopeo convert is called with
func converting(platforms ...v1.Platform) func(name string, args []string) ([]byte, error) {
	return func(name string, args []string) ([]byte, error) {
		if name != "skopeo" || !strings.HasPrefix(args[len(args)-2], "oci-archive:") {
			return nil, nil
		}
		dir := strings.TrimPrefix(args[len(args)-1], "oci:")
		_, err := testcases.WriteMultiArchLayout(dir, platforms...)
		return nil, err
	}
}

func writeProject(t *testing.T, dir string, file string) string {
	path := filepath.Join(dir, file)
	Expect(os.WriteFile(path, []byte(rockcraft), 0644)).To(Succeed())
	return path
}

var (
	linuxAmd64 = v1.Platform{OS: "linux", Architecture: "amd64"}
	linuxArm64 = v1.Platform{OS: "linux", Architecture: "arm64"}
)

func TestPipelineCommands(t *testing.T) {
	RegisterTestingT(t)
	useTestLogger(t)

	src := t.TempDir()
	project := writeProject(t, src, "rockcraft.yaml")
	out := filepath.Join(t.TempDir(), "_build")
	Expect(os.MkdirAll(filepath.Join(out, "stale"), 0755)).To(Succeed())

	runner := &testcases.Runner{OnRun: converting(linuxArm64, linuxAmd64)}
	p := &release.Pipeline{
		Builder:        &buildx.Builder{Runner: runner},
		Converter:      &skopeo.Skopeo{Runner: runner},
		Publisher:      &publish.SkopeoPublisher{Skopeo: &skopeo.Skopeo{Runner: runner}},
		Workdir:        release.Workdir{Dir: out},
		Risk:           "edge",
		AdditionalTags: []string{"latest"},
		Repos:          publish.DefaultRepos,
	}
	output, err := p.Run(context.Background(), []string{project})
	Expect(err).NotTo(HaveOccurred())

	Expect(filepath.Join(out, "stale")).NotTo(BeADirectory())
	archive := filepath.Join(out, "mock-rock_1.0_22.04_edge.rock")
	layoutDir := filepath.Join(out, "mock-rock_1.0_22.04_edge")

	calls := runner.Calls()
	Expect(calls).To(HaveLen(6))
	Expect(calls[0]).To(Equal([]string{
		"docker", "buildx", "build",
		"--file=" + filepath.Join(src, "mock-rock", "Dockerfile.22.04"),
		"--output=type=oci,dest=" + archive,
		"--platform=linux/amd64,linux/arm64",
		"--tag=mock-rock:1.0-22.04_edge",
		filepath.Join(src, "mock-rock"),
	}))
	Expect(calls[1][len(calls[1])-2:]).To(Equal([]string{"oci-archive:" + archive, "oci:" + layoutDir}))
	Expect(calls[2]).To(ContainElement("docker://ubuntu/mock-rock:1.0-22.04_edge"))
	Expect(calls[3]).To(ContainElement("docker://ubuntu/mock-rock:latest"))
	Expect(calls[4]).To(ContainElement("docker://ubuntu.azurecr.io/mock-rock:1.0-22.04_edge"))
	Expect(calls[5]).To(ContainElements("index-only", "docker://ubuntu.azurecr.io/mock-rock:latest"))

	platforms, err := multiarch.Platforms(ocilayout.NewOs(layoutDir))
	Expect(err).NotTo(HaveOccurred())
	Expect(platforms).To(ConsistOf(
		v1.Platform{OS: "linux", Architecture: "arm64", Variant: "v8"},
		linuxAmd64,
	))

	Expect(output.Builds).To(HaveLen(4))
	Expect(output.Builds[0].ImageName).To(Equal("ubuntu/mock-rock"))
	Expect(output.Builds[0].TagRef).To(HavePrefix("ubuntu/mock-rock:1.0-22.04_edge@sha256:"))
	Expect(output.Builds[0].Platforms).To(HaveLen(2))
	Expect(output.Trace.Projects).To(Equal([]string{project}))
	Expect(output.Trace.End).NotTo(BeNil())
}

func TestPipelineSortsProjects(t *testing.T) {
	RegisterTestingT(t)
	useTestLogger(t)

	src := t.TempDir()
	b := writeProject(t, src, "rockcraft_b.yaml")
	a := writeProject(t, src, "rockcraft_a.yaml")
	var built []string
	runner := &testcases.Runner{OnRun: converting(linuxAmd64)}
	p := &release.Pipeline{
		Builder:   &buildx.Builder{Runner: runner},
		Converter: &skopeo.Skopeo{Runner: runner},
		Publisher: &publish.SkopeoPublisher{Skopeo: &skopeo.Skopeo{Runner: runner}},
		Workdir:   release.Workdir{Dir: filepath.Join(t.TempDir(), "out")},
		Risk:      "stable",
		Repos:     []string{"ubuntu/"},
	}
	output, err := p.Run(context.Background(), []string{b, a})
	Expect(err).NotTo(HaveOccurred())
	Expect(output.Trace.Projects).To(Equal([]string{a, b}))
	for _, c := range runner.Calls() {
		if c[0] == "docker" {
			built = append(built, c[len(c)-1])
		}
	}
	Expect(built).To(HaveLen(2))
}

func TestPipelineAbortsOnBuildFailure(t *testing.T) {
	RegisterTestingT(t)
	useTestLogger(t)

	src := t.TempDir()
	project := writeProject(t, src, "rockcraft.yaml")
	failed := errors.New("buildx failed")
	runner := &testcases.Runner{OnRun: func(name string, args []string) ([]byte, error) {
		if name == "docker" {
			return nil, failed
		}
		return nil, nil
	}}
	p := &release.Pipeline{
		Builder:   &buildx.Builder{Runner: runner},
		Converter: &skopeo.Skopeo{Runner: runner},
		Publisher: &publish.SkopeoPublisher{Skopeo: &skopeo.Skopeo{Runner: runner}},
		Workdir:   release.Workdir{Dir: filepath.Join(t.TempDir(), "out")},
		Risk:      "edge",
		Repos:     publish.DefaultRepos,
	}
	_, err := p.Run(context.Background(), []string{project})
	Expect(err).To(MatchError(failed))
	Expect(runner.Calls()).To(HaveLen(1))

	p.Risk = ""
	_, err = p.Run(context.Background(), []string{project})
	Expect(err).To(MatchError(ContainSubstring("risk")))
}

func TestPipelineRemote(t *testing.T) {
	RegisterTestingT(t)
	useTestLogger(t)

	r := testcases.NewTestregistry(context.Background())
	Expect(r.Start()).To(Succeed())

	project := writeProject(t, t.TempDir(), "rockcraft.yaml")
	runner := &testcases.Runner{OnRun: converting(linuxAmd64, linuxArm64)}
	p := &release.Pipeline{
		Builder:        &buildx.Builder{Runner: runner},
		Converter:      &skopeo.Skopeo{Runner: runner},
		Publisher:      &publish.RemotePublisher{},
		Workdir:        release.Workdir{Dir: filepath.Join(t.TempDir(), "_build")},
		Risk:           "edge",
		AdditionalTags: []string{"1.0"},
		Repos:          []string{r.Host + "/ubuntu/"},
		Fixes:          []release.VariantFix{{Architecture: "arm64", Variant: "v8"}},
	}
	output, err := p.Run(context.Background(), []string{project})
	Expect(err).NotTo(HaveOccurred())
	Expect(output.Builds).To(HaveLen(2))

	for _, a := range output.Builds {
		tag, err := name.NewTag(strings.Split(a.TagRef, "@")[0])
		Expect(err).NotTo(HaveOccurred())
		desc, err := remote.Get(tag, r.Config.CraneOptions.Remote...)
		Expect(err).NotTo(HaveOccurred())
		Expect(desc.Digest).To(Equal(a.Digest()))
	}
	idx, err := remote.Index(output.Builds[0].Reference(), r.Config.CraneOptions.Remote...)
	Expect(err).NotTo(HaveOccurred())
	im, err := idx.IndexManifest()
	Expect(err).NotTo(HaveOccurred())
	Expect(im.Manifests[1].Platform.Variant).To(Equal("v8"))
}
