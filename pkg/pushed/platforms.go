package pushed

import (
	v1 "github.com/google/go-containerregistry/pkg/v1"
)

func toPlatforms(platforms []v1.Platform) []string {
	result := make([]string, 0, len(platforms))
	for _, pf := range platforms {
		result = append(result, pf.String())
	}
	return result
}

// platformsFromStrings parses platform strings like "linux/amd64" or "linux/arm64/v8"
func platformsFromStrings(names []string) ([]v1.Platform, error) {
	if len(names) == 0 {
		return nil, nil
	}
	res := make([]v1.Platform, 0, len(names))
	for _, s := range names {
		p, err := v1.ParsePlatform(s)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, nil
}
