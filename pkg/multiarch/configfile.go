package multiarch

import (
	"encoding/json"
	"errors"
	"maps"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// ConfigFile is an image config that encodes back every field it was parsed from,
// including fields that v1.ConfigFile doesn't model.
// Values are immutable, use With* to derive a changed config.
type ConfigFile struct {
	v1.ConfigFile
	fields map[string]json.RawMessage
}

func ParseConfigFile(raw []byte) (*ConfigFile, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("image config is not a JSON object")
	}
	c := &ConfigFile{fields: fields}
	if err := json.Unmarshal(raw, &c.ConfigFile); err != nil {
		return nil, err
	}
	return c, nil
}

// WithVariant returns a copy with the platform variant set
func (c *ConfigFile) WithVariant(variant string) (*ConfigFile, error) {
	v, err := json.Marshal(variant)
	if err != nil {
		return nil, err
	}
	fields := maps.Clone(c.fields)
	fields["variant"] = v
	next := &ConfigFile{ConfigFile: c.ConfigFile, fields: fields}
	next.Variant = variant
	return next, nil
}

func (c *ConfigFile) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.fields)
}
