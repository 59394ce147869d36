package schema

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	v1 "github.com/turbokube/rockrelease/pkg/schema/v1"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
)

// ProjectGlob matches project files in a directory
const ProjectGlob = "rockcraft*.yaml"

// Fs is the underlying filesystem to use for reading project files. OS FS by default
var Fs = afero.NewOsFs()

var stdin []byte

// ParseProject reads and validates a project file, "-" for stdin
func ParseProject(filename string) (v1.Project, error) {
	noproject := v1.Project{}
	buf, err := ReadConfiguration(filename)
	if err != nil {
		return noproject, fmt.Errorf("read project %s: %w", filename, err)
	}
	project, err := parseProject(buf)
	if err != nil {
		return noproject, fmt.Errorf("parse project %s: %w", filename, err)
	}
	if filename != "-" {
		project.Status.Path = filename
	}
	if err := Validate(project); err != nil {
		return noproject, err
	}
	zap.L().Debug("project",
		zap.String("path", filename),
		zap.String("name", project.Name),
		zap.String("base", project.Base),
		zap.String("version", project.Version),
		zap.Strings("buildFor", project.BuildFor()),
	)
	return project, nil
}

// parseProject walks the yaml nodes instead of decoding to a struct
// so that scalars stay verbatim and platforms keep their file order
func parseProject(buf []byte) (v1.Project, error) {
	project := v1.Project{}
	var doc yaml.Node
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return project, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return project, errors.New("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return project, fmt.Errorf("line %d: expected a mapping", root.Line)
	}
	var platforms *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "name":
			project.Name = value.Value
		case "base":
			project.Base = value.Value
		case "version":
			project.Version = value.Value
		case "platforms":
			platforms = value
		}
	}
	for field, value := range map[string]string{
		"name":    project.Name,
		"base":    project.Base,
		"version": project.Version,
	} {
		if value == "" {
			return project, fmt.Errorf("missing %s", field)
		}
	}
	if platforms == nil || platforms.Kind != yaml.MappingNode {
		return project, errors.New("missing platforms")
	}
	for i := 0; i+1 < len(platforms.Content); i += 2 {
		label, values := platforms.Content[i], platforms.Content[i+1]
		platform := v1.Platform{Label: label.Value}
		if values.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(values.Content); j += 2 {
				var err error
				switch values.Content[j].Value {
				case "build-on":
					platform.BuildOn, err = scalars(values.Content[j+1])
				case "build-for":
					platform.BuildFor, err = scalars(values.Content[j+1])
				}
				if err != nil {
					return project, fmt.Errorf("platform %s: %w", label.Value, err)
				}
			}
		}
		project.Platforms = append(project.Platforms, platform)
	}
	project.Status.Sha256 = fmt.Sprintf("%x", sha256.Sum256(buf))
	return project, nil
}

// scalars accepts a sequence or a single scalar
func scalars(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: expected an architecture", item.Line)
			}
			values = append(values, item.Value)
		}
		return values, nil
	}
	return nil, fmt.Errorf("line %d: expected a list of architectures", n.Line)
}

// DiscoverProjects lists project files in dir, sorted
func DiscoverProjects(dir string) ([]string, error) {
	matches, err := afero.Glob(Fs, filepath.Join(dir, ProjectGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadConfiguration reads a file or stdin and returns content
func ReadConfiguration(filePath string) ([]byte, error) {
	switch {
	case filePath == "":
		return nil, errors.New("filename not specified")
	case filePath == "-":
		if len(stdin) == 0 {
			var err error
			stdin, err = io.ReadAll(os.Stdin)
			if err != nil {
				return []byte{}, err
			}
		}
		return stdin, nil
	default:
		return afero.ReadFile(Fs, filePath)
	}
}
