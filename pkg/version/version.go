package version

import (
	"fmt"
)

// Set at build time via -ldflags "-X github.com/acorn-io/acorn-domains/pkg/version.Tag=..."
var (
	Tag    = "v0.0.0-dev"
	Commit = "HEAD"
)

type Version struct {
	Tag    string `json:"tag"`
	Commit string `json:"commit"`
}

func (v Version) String() string {
	if len(v.Commit) > 8 {
		return fmt.Sprintf("%s (%s)", v.Tag, v.Commit[:8])
	}
	return fmt.Sprintf("%s (%s)", v.Tag, v.Commit)
}

func Get() Version {
	return Version{
		Tag:    Tag,
		Commit: Commit,
	}
}
