// Package version implements the version/info surface of spec.md §4.8: a
// packed 32-bit version code, a build-commit id with dirty-tree marker, and
// a variant identifier naming the platform back-end compiled in.
//
// Compatible compares major versions directly. Constraint expresses the same
// rule with github.com/Masterminds/semver/v3, the way the teacher's package
// manager (internal/packagemanager/manager.go) expresses dependency-version
// constraints.
package version

import (
	"fmt"

	semver "github.com/Masterminds/semver/v3"
)

// Code is the packed (major<<16 | minor<<8 | revision) version code carried
// on every control-channel request.
type Code uint32

// Pack builds a Code from its components.
func Pack(major, minor, revision uint8) Code {
	return Code(uint32(major)<<16 | uint32(minor)<<8 | uint32(revision))
}

// Major, Minor, Revision unpack the components of a Code.
func (c Code) Major() uint8    { return uint8(c >> 16) }
func (c Code) Minor() uint8    { return uint8(c >> 8) }
func (c Code) Revision() uint8 { return uint8(c) }

func (c Code) String() string {
	return fmt.Sprintf("%d.%d.%d", c.Major(), c.Minor(), c.Revision())
}

// semverOf renders a Code as a semver.Version for constraint evaluation.
func (c Code) semverOf() *semver.Version {
	v, err := semver.NewVersion(c.String())
	if err != nil {
		// Pack() can only ever produce well-formed dotted-triples.
		panic(err)
	}
	return v
}

// Compatible implements spec.md §4.5/§4.8's compatibility rule: two codes
// are compatible iff their major versions are equal, or one of them is the
// bootstrap major 0 and the other is major 1.
func Compatible(a, b Code) bool {
	if a.Major() == b.Major() {
		return true
	}
	lo, hi := a.Major(), b.Major()
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo == 0 && hi == 1
}

// Constraint builds a semver constraint (e.g. "^1.0.0" style, loosened to
// the bootstrap rule above) that a peer's Code must satisfy relative to
// ours, the way internal/packagemanager/manager.go checks a dependency's
// resolved version against its declared constraint. The control-protocol
// handlers check incoming requests with Compatible, not with this.
func (c Code) Constraint() (*semver.Constraints, error) {
	expr := fmt.Sprintf(">=%d.0.0, <%d.0.0", c.Major(), c.Major()+1)
	if c.Major() <= 1 {
		expr = ">=0.0.0, <2.0.0"
	}
	return semver.NewConstraint(expr)
}

// Current is this build's own version code.
var Current = Pack(1, 0, 0)

// Commit is the build-commit hex hash, with a "(M)" suffix appended at
// build time (via -ldflags) when the working tree was dirty.
var Commit = "unknown"

// Variant names the platform back-end compiled into this build: "realtime"
// or "uio". Defaults to "uio"; cmd/cuddl-managerd sets it from the selected
// back-end's Variant() at startup.
var Variant = "uio"
