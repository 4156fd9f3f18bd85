package system

import (
	"errors"
	"fmt"
)

// ErrIncompatibleVersion is returned by CheckVersion when the installed API
// cannot serve the requested version.
var ErrIncompatibleVersion = errors.New("incompatible OS4 version")

// Version is a 12 bit API version: the top nibble is the major version,
// the low byte the minor version. A major change means nothing can be
// assumed to be the same; a minor change only adds.
type Version uint16

// MakeVersion builds a version from its parts.
func MakeVersion(major, minor int) Version {
	return Version((major&0xf)<<8 | minor&0xff)
}

// APIVersion is the version of this implementation.
var APIVersion = MakeVersion(0, 1)

// Major returns the major nibble.
func (v Version) Major() int { return int(v>>8) & 0xf }

// Minor returns the minor byte.
func (v Version) Minor() int { return int(v) & 0xff }

func (v Version) String() string { return fmt.Sprintf("%d.%02d", v.Major(), v.Minor()) }

// Supports reports whether an installed version v can serve a client built
// against required.
func (v Version) Supports(required Version) bool {
	return v.Major() == required.Major() && v.Minor() >= required.Minor()
}

// CheckVersion verifies that the installed API serves required. It must be
// the first call a ROM makes.
func CheckVersion(required Version) error {
	if !APIVersion.Supports(required) {
		return fmt.Errorf("%w: need %s, have %s", ErrIncompatibleVersion, required, APIVersion)
	}
	return nil
}
