package decl

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ZeroVersion is the version an unversioned declaration sorts as.
const ZeroVersion = "0.0.0"

// ParseVersion parses a declared version string. The empty string is
// accepted and means "unversioned", which orders as 0.0.0.
func ParseVersion(s string) (*semver.Version, error) {
	if s == "" {
		s = ZeroVersion
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", s, err)
	}
	return v, nil
}

// MustVersion is like ParseVersion but panics on error. Use only in
// tests or on already-validated declarations.
func MustVersion(s string) *semver.Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}
