package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the build's semantic version. The leading component is the
// schema major version the migration coordinator converges the databases to.
const Version = "4.2.0"

// Major returns the schema major version encoded in Version.
func Major() int {
	m, err := ParseMajor(Version)
	if err != nil {
		// Version is a compile-time constant; a bad value is a build defect.
		panic(err)
	}
	return m
}

// ParseMajor extracts the leading integer from a semantic version string,
// tolerating a "v" prefix.
func ParseMajor(v string) (int, error) {
	s := strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	m, err := strconv.Atoi(s)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("invalid version %q", v)
	}
	return m, nil
}
