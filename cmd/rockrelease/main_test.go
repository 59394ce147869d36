package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	. "github.com/onsi/gomega"
	"github.com/turbokube/rockrelease/pkg/pushed"
	"github.com/turbokube/rockrelease/pkg/testcases"
)

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInjectThenVerify(t *testing.T) {
	RegisterTestingT(t)

	dir := filepath.Join(t.TempDir(), "mock-rock_1.0_22.04_edge")
	_, err := testcases.WriteMultiArchLayout(dir,
		v1.Platform{OS: "linux", Architecture: "amd64"},
		v1.Platform{OS: "linux", Architecture: "arm64"},
	)
	Expect(err).NotTo(HaveOccurred())

	out, err := execute(t, "--logger=plain", "inject-variant", dir)
	Expect(err).NotTo(HaveOccurred())
	root := strings.TrimSpace(out)
	Expect(root).To(HavePrefix("sha256:"))

	out, err = execute(t, "--logger=plain", "verify", dir)
	Expect(err).NotTo(HaveOccurred())
	Expect(strings.Split(strings.TrimSpace(out), "\n")).To(Equal([]string{
		root + " " + testcases.RefName,
		"linux/amd64",
		"linux/arm64/v8",
	}))

	out, err = execute(t, "--logger=plain", "inject-variant", dir)
	Expect(err).NotTo(HaveOccurred())
	Expect(out).To(BeEmpty())
}

func TestReleaseRequiresRisk(t *testing.T) {
	RegisterTestingT(t)
	t.Setenv(envRisk, "")
	risk = ""
	_, err := execute(t, "release", "-C", t.TempDir())
	Expect(err).To(MatchError(ContainSubstring("risk")))
}

func TestReportOutputFileOutput(t *testing.T) {
	RegisterTestingT(t)
	h, err := v1.NewHash("sha256:deadb33fdeadb33fdeadb33fdeadb33fdeadb33fdeadb33fdeadb33fdeadb33f")
	Expect(err).NotTo(HaveOccurred())
	a, err := pushed.New("ubuntu/foo:1", v1.Descriptor{MediaType: types.OCIImageIndex, Digest: h}, nil)
	Expect(err).NotTo(HaveOccurred())
	output := &pushed.BuildOutput{}
	output.Add(a)

	saved := fileOutput
	t.Cleanup(func() { fileOutput = saved })

	t.Run("written", func(t *testing.T) {
		RegisterTestingT(t)
		fileOutput = filepath.Join(t.TempDir(), "builds.json")
		var out bytes.Buffer
		Expect(reportOutput(&out, output, nil)).To(Succeed())
		Expect(out.String()).To(Equal("ubuntu/foo:1@" + h.String() + "\n"))
		b, err := os.ReadFile(fileOutput)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(ContainSubstring(`"tag":"ubuntu/foo:1@` + h.String() + `"`))
	})

	t.Run("write failure fails the release", func(t *testing.T) {
		RegisterTestingT(t)
		fileOutput = filepath.Join(t.TempDir(), "missing", "builds.json")
		var out bytes.Buffer
		err := reportOutput(&out, output, nil)
		Expect(err).To(MatchError(ContainSubstring("file-output")))
		Expect(out.String()).NotTo(BeEmpty())
	})

	t.Run("run error wins", func(t *testing.T) {
		RegisterTestingT(t)
		fileOutput = filepath.Join(t.TempDir(), "missing", "builds.json")
		failed := errors.New("publish failed")
		Expect(reportOutput(&bytes.Buffer{}, output, failed)).To(MatchError(failed))
	})
}
