// Package update checks GitHub releases for a newer hark build and
// swaps the running binary in place.
package update

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	Repo       = "sumerc/hark"
	BinaryName = "hark"
)

// Release is one published build newer than the running one.
type Release struct {
	Version     string
	AssetURL    string
	ChecksumURL string
}

type semver struct {
	major, minor, patch int
}

// parseSemver accepts "v1.2.3", "1.2.3" and tags with -pre or +build
// suffixes. Anything else, including "dev", is an error.
func parseSemver(v string) (semver, error) {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return semver{}, fmt.Errorf("invalid semver: %q", v)
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return semver{}, fmt.Errorf("invalid semver: %q", v)
		}
		out[i] = n
	}
	return semver{out[0], out[1], out[2]}, nil
}

func (s semver) greaterThan(o semver) bool {
	if s.major != o.major {
		return s.major > o.major
	}
	if s.minor != o.minor {
		return s.minor > o.minor
	}
	return s.patch > o.patch
}

// NewerThan reports whether the release outranks the running version.
// Unparseable versions on either side count as not newer.
func (r Release) NewerThan(current string) bool {
	cur, err := parseSemver(current)
	if err != nil {
		return false
	}
	rel, err := parseSemver(r.Version)
	if err != nil {
		return false
	}
	return rel.greaterThan(cur)
}
