// Package version provides firmware version parsing and comparison.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the library version.
const Current = "0.1"

// FirmwareVersion represents a parsed "major.minor" firmware version
// as reported by the glasses.
type FirmwareVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (FirmwareVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return FirmwareVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return FirmwareVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return FirmwareVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return FirmwareVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v FirmwareVersion) Compatible(other FirmwareVersion) bool {
	return v.Major == other.Major
}
