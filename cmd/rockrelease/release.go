package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/turbokube/rockrelease/pkg/buildx"
	"github.com/turbokube/rockrelease/pkg/publish"
	"github.com/turbokube/rockrelease/pkg/pushed"
	"github.com/turbokube/rockrelease/pkg/release"
	"github.com/turbokube/rockrelease/pkg/run"
	"github.com/turbokube/rockrelease/pkg/schema"
	"github.com/turbokube/rockrelease/pkg/skopeo"
	"go.uber.org/zap"
)

const envRisk = "ROCKRELEASE_RISK"

var (
	risk           string
	projectFiles   []string
	additionalTags []string
	outputDir      string
	repos          []string
	fixes          []string
	publisher      string
	fileOutput     string
	chdir          string
)

func newReleaseCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "release",
		Short: "Build rockcraft projects with buildx, inject platform variants and publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogger(func() error { return runRelease(cmd) })
		},
	}
	c.Flags().StringVar(&risk, "risk", os.Getenv(envRisk), fmt.Sprintf("risk under which to publish, for example edge (env %s)", envRisk))
	c.Flags().StringSliceVar(&projectFiles, "rockcraft-files", nil, "project files to build, default all "+schema.ProjectGlob)
	c.Flags().StringSliceVar(&additionalTags, "additional-tags", nil, "additional tags for each image")
	c.Flags().StringVar(&outputDir, "output-dir", "_build", "for archives and layouts, wiped at start")
	c.Flags().StringSliceVar(&repos, "repo", publish.DefaultRepos, "reference prefixes to publish to")
	c.Flags().StringSliceVar(&fixes, "fix", []string{"arm64=v8"}, "architecture=variant to set on images that lack a variant")
	c.Flags().StringVar(&publisher, "publisher", "skopeo", "skopeo|remote")
	c.Flags().StringVar(&fileOutput, "file-output", "", "produce a builds JSON like Skaffold does")
	c.Flags().StringVarP(&chdir, "C", "C", "", "directory with project files")
	return c
}

func runRelease(cmd *cobra.Command) error {
	if risk == "" {
		return fmt.Errorf("--risk or env %s is required", envRisk)
	}
	if chdir != "" {
		abs, err := filepath.Abs(chdir)
		if err != nil {
			return err
		}
		c, err := release.NewChdir(abs)
		if err != nil {
			return err
		}
		defer c.Cleanup()
	}

	files := projectFiles
	if len(files) == 0 {
		var err error
		files, err = schema.DiscoverProjects(".")
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no %s found", schema.ProjectGlob)
		}
	}
	variantFixes, err := release.ParseVariantFixes(fixes)
	if err != nil {
		return err
	}
	if variantFixes == nil {
		variantFixes = []release.VariantFix{}
	}

	runner := &run.ExecRunner{}
	tool := &skopeo.Skopeo{Runner: runner}
	var pub publish.Publisher
	switch publisher {
	case "skopeo":
		pub = &publish.SkopeoPublisher{Skopeo: tool}
	case "remote":
		pub = &publish.RemotePublisher{}
	default:
		return fmt.Errorf("unknown publisher %q", publisher)
	}

	p := &release.Pipeline{
		Builder:        &buildx.Builder{Runner: runner},
		Converter:      tool,
		Publisher:      pub,
		Workdir:        release.Workdir{Dir: outputDir},
		Risk:           risk,
		AdditionalTags: additionalTags,
		Repos:          repos,
		Fixes:          variantFixes,
	}
	output, err := p.Run(cmd.Context(), files)
	return reportOutput(cmd.OutOrStdout(), output, err)
}

// reportOutput prints what was pushed and writes --file-output even if the run failed.
// A failed write fails an otherwise successful run.
func reportOutput(w io.Writer, output *pushed.BuildOutput, err error) error {
	if output == nil {
		return err
	}
	output.Print(w)
	if werr := writeBuildOutput(output); werr != nil {
		zap.L().Error("file-output", zap.String("path", fileOutput), zap.Error(werr))
		if err == nil {
			return fmt.Errorf("file-output %s: %w", fileOutput, werr)
		}
	}
	return err
}

func writeBuildOutput(output *pushed.BuildOutput) error {
	if fileOutput == "" {
		return nil
	}
	f, err := os.OpenFile(fileOutput, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return output.WriteJSON(f)
}
