package frame

import (
	"fmt"
	"strconv"
	"strings"
)

// Service identifies a protocol service by its two id bytes.
// Request services use minor 0x20; the glasses answer on minor
// 0x00 or 0x01 of the same major.
type Service struct {
	Major uint8
	Minor uint8
}

// String returns the service in the conventional "0xMM-NN" notation.
func (s Service) String() string {
	return fmt.Sprintf("0x%02X-%02X", s.Major, s.Minor)
}

// IsRequest returns true if this is a request service (minor 0x20).
func (s Service) IsRequest() bool {
	return s.Minor == 0x20
}

// ParseService parses the "0xMM-NN" notation used in sequence files
// and on the command line. The 0x prefix is optional.
func ParseService(text string) (Service, error) {
	parts := strings.SplitN(text, "-", 2)
	if len(parts) != 2 {
		return Service{}, fmt.Errorf("invalid service %q: expected major-minor", text)
	}

	major, err := parseServiceByte(parts[0])
	if err != nil {
		return Service{}, fmt.Errorf("invalid service %q: bad major: %w", text, err)
	}
	minor, err := parseServiceByte(parts[1])
	if err != nil {
		return Service{}, fmt.Errorf("invalid service %q: bad minor: %w", text, err)
	}

	return Service{Major: major, Minor: minor}, nil
}

func parseServiceByte(text string) (uint8, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "0x")
	v, err := strconv.ParseUint(text, 16, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}
