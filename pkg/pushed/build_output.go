package pushed

import (
	"encoding/json"
	"fmt"
	"io"
)

// BuildOutput is similar to skaffold's --file-output, with one build per published reference
type BuildOutput struct {
	Builds []Artifact `json:"builds"`
	// Trace is internal metadata such as start/end and env; optional
	Trace *BuildTrace `json:"trace,omitempty"`
}

// Add appends artifacts, nil entries are ignored
func (b *BuildOutput) Add(artifacts ...*Artifact) {
	for _, a := range artifacts {
		if a != nil {
			b.Builds = append(b.Builds, *a)
		}
	}
}

// Print writes the tag@digest for each published reference
func (b *BuildOutput) Print(w io.Writer) {
	if b == nil {
		return
	}
	for _, a := range b.Builds {
		fmt.Fprintln(w, a.TagRef)
	}
}

func (b *BuildOutput) WriteJSON(w io.Writer) error {
	if b.Builds == nil {
		b.Builds = []Artifact{}
	}
	j, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = w.Write(j)
	return err
}
