package release

import (
	"fmt"
	"strings"
)

// VariantFix sets Variant on images for Architecture that have none
type VariantFix struct {
	Architecture string
	Variant      string
}

// DefaultFixes are applied when none are configured
var DefaultFixes = []VariantFix{
	{Architecture: "arm64", Variant: "v8"},
}

func (f VariantFix) String() string {
	return f.Architecture + "=" + f.Variant
}

// ParseVariantFix parses architecture=variant, for example arm64=v8
func ParseVariantFix(s string) (VariantFix, error) {
	architecture, variant, ok := strings.Cut(s, "=")
	architecture = strings.TrimSpace(architecture)
	variant = strings.TrimSpace(variant)
	if !ok || architecture == "" || variant == "" {
		return VariantFix{}, fmt.Errorf("variant fix %q should be architecture=variant", s)
	}
	return VariantFix{Architecture: architecture, Variant: variant}, nil
}

// ParseVariantFixes parses each value, nil for no values
func ParseVariantFixes(values []string) ([]VariantFix, error) {
	var fixes []VariantFix
	for _, v := range values {
		f, err := ParseVariantFix(v)
		if err != nil {
			return nil, err
		}
		fixes = append(fixes, f)
	}
	return fixes, nil
}
