package release

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	v1 "github.com/turbokube/rockrelease/pkg/schema/v1"
	"go.uber.org/zap"
)

// ArchiveSuffix is the extension of build output archives
const ArchiveSuffix = ".rock"

// Workdir is where build archives and OCI layouts go
type Workdir struct {
	Dir string
	// Fs defaults to the host filesystem
	Fs afero.Fs
}

func (w Workdir) fs() afero.Fs {
	if w.Fs == nil {
		return afero.NewOsFs()
	}
	return w.Fs
}

// Prepare removes everything in the directory from earlier runs and recreates it
func (w Workdir) Prepare() error {
	clean := filepath.Clean(w.Dir)
	if w.Dir == "" || clean == "." || clean == string(filepath.Separator) {
		return fmt.Errorf("refusing to wipe output directory %q", w.Dir)
	}
	fsys := w.fs()
	if err := fsys.RemoveAll(clean); err != nil {
		return err
	}
	if err := fsys.MkdirAll(clean, 0755); err != nil {
		return err
	}
	zap.L().Debug("output directory prepared", zap.String("dir", clean))
	return nil
}

// Archive is <dir>/<name>_<version>_<base>_<risk>.rock
func (w Workdir) Archive(project v1.Project, risk string) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%s_%s_%s%s",
		project.Name, project.Version, project.Base, risk, ArchiveSuffix))
}

// Layout is the OCI layout directory for an archive, the archive path without its suffix
func Layout(archive string) string {
	return strings.TrimSuffix(archive, ArchiveSuffix)
}

// Tag is <version>-<base>_<risk>
func Tag(project v1.Project, risk string) string {
	return fmt.Sprintf("%s-%s_%s", project.Version, project.Base, risk)
}

type Chdir struct {
	pwd string
}

// NewChdir changes current working directory to dir, until Cleanup
func NewChdir(dir string) (*Chdir, error) {
	if !filepath.IsAbs(dir) {
		return nil, errors.New("chdir should be absolute: " + dir)
	}
	pwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get cwd: %w", err)
	}
	if pwd == dir {
		zap.L().Warn("chdir change to current", zap.String("dir", dir))
	}
	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("change cwd: %w", err)
	}
	zap.L().Debug("cwd changed",
		zap.String("to", dir),
		zap.String("from", pwd),
	)
	return &Chdir{
		pwd: pwd,
	}, nil
}

// Cleanup restores working directory based on the result of NewChdir
func (c *Chdir) Cleanup() {
	if err := os.Chdir(c.pwd); err != nil {
		zap.L().Error("restore cwd",
			zap.String("to", c.pwd),
			zap.Error(err),
		)
		return
	}
	zap.L().Debug("cwd restored",
		zap.String("dir", c.pwd),
	)
}
