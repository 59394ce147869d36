package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/turbokube/rockrelease/pkg/buildx"
	"github.com/turbokube/rockrelease/pkg/multiarch"
	"github.com/turbokube/rockrelease/pkg/ocilayout"
	"github.com/turbokube/rockrelease/pkg/publish"
	"github.com/turbokube/rockrelease/pkg/pushed"
	"github.com/turbokube/rockrelease/pkg/schema"
	v1 "github.com/turbokube/rockrelease/pkg/schema/v1"
	"go.uber.org/zap"
)

// Builder produces a multi-platform oci-archive, see buildx.Builder
type Builder interface {
	Build(ctx context.Context, req buildx.Request) error
}

// Converter unpacks an oci-archive to an OCI layout directory, see skopeo.Skopeo
type Converter interface {
	Convert(ctx context.Context, archive string, layoutDir string) error
}

// Pipeline builds, fixes and publishes projects.
// Any error aborts the run. Outputs from a failed run are not reused, run again from source.
type Pipeline struct {
	Builder   Builder
	Converter Converter
	Publisher publish.Publisher
	Workdir   Workdir
	// Risk is part of tags and archive names, for example edge
	Risk           string
	AdditionalTags []string
	// Repos are reference prefixes, see publish.DefaultRepos
	Repos []string
	// Fixes are applied in order, see DefaultFixes
	Fixes []VariantFix
}

// Release is the outcome for one project
type Release struct {
	Project   v1.Project
	Archive   string
	Layout    string
	Tag       string
	Targets   []publish.Target
	Fixes     []multiarch.Result
	Verified  multiarch.Report
	Artifacts []*pushed.Artifact
}

// Run releases every project file in sorted order
func (p *Pipeline) Run(ctx context.Context, projectFiles []string) (*pushed.BuildOutput, error) {
	if len(projectFiles) == 0 {
		return nil, errors.New("no project files")
	}
	if p.Risk == "" {
		return nil, errors.New("risk is required")
	}
	files := slices.Clone(projectFiles)
	slices.Sort(files)

	start := time.Now()
	output := &pushed.BuildOutput{
		Trace: &pushed.BuildTrace{
			Start:    &start,
			Env:      pushed.BuildTraceEnv(os.Environ()),
			Projects: files,
		},
	}
	if err := p.Workdir.Prepare(); err != nil {
		return nil, err
	}
	for _, file := range files {
		r, err := p.Release(ctx, file)
		if err != nil {
			return output, err
		}
		output.Add(r.Artifacts...)
	}
	end := time.Now()
	output.Trace.End = &end
	zap.L().Info("released",
		zap.Int("projects", len(files)),
		zap.Int("references", len(output.Builds)),
		zap.Duration("duration", end.Sub(start)),
	)
	return output, nil
}

// Release builds, fixes and publishes one project, assuming a prepared workdir
func (p *Pipeline) Release(ctx context.Context, projectFile string) (*Release, error) {
	zap.L().Info("prepare to build", zap.String("project", projectFile))
	project, err := schema.ParseProject(projectFile)
	if err != nil {
		return nil, err
	}
	r := &Release{
		Project: project,
		Archive: p.Workdir.Archive(project, p.Risk),
		Tag:     Tag(project, p.Risk),
	}
	r.Layout = Layout(r.Archive)
	r.Targets, err = publish.Targets(p.Repos, project.Name, r.Tag, p.AdditionalTags)
	if err != nil {
		return nil, err
	}

	err = p.Builder.Build(ctx, buildx.Request{
		Dockerfile:    project.Dockerfile(),
		Context:       project.BuildContext(),
		Archive:       r.Archive,
		Architectures: project.BuildFor(),
		Tag:           project.Name + ":" + r.Tag,
	})
	if err != nil {
		return nil, err
	}
	if err := p.Converter.Convert(ctx, r.Archive, r.Layout); err != nil {
		return nil, err
	}

	store := ocilayout.NewOs(r.Layout)
	fixes := p.Fixes
	if fixes == nil {
		fixes = DefaultFixes
	}
	for _, fix := range fixes {
		result, err := multiarch.InjectVariant(store, fix.Architecture, fix.Variant)
		if err != nil {
			return nil, fmt.Errorf("%s in %s: %w", fix, r.Layout, err)
		}
		r.Fixes = append(r.Fixes, result)
	}
	r.Verified, err = multiarch.Verify(store)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", r.Layout, err)
	}

	zap.L().Info("publishing", zap.String("layout", r.Layout), zap.Int("targets", len(r.Targets)))
	for _, target := range r.Targets {
		if err := p.Publisher.Publish(ctx, r.Layout, target); err != nil {
			return nil, err
		}
		for _, ref := range target.References() {
			a, err := pushed.New(ref, r.Verified.Root, r.Verified.Platforms)
			if err != nil {
				return nil, err
			}
			r.Artifacts = append(r.Artifacts, a)
		}
	}
	return r, nil
}
