package enum

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedPlatform is returned when a platform name cannot be parsed.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Platform represents an external service whose user statistics are mirrored locally.
type Platform int

const (
	// PlatformLeetCode tracks LeetCode problem-solving statistics.
	PlatformLeetCode Platform = iota
	// PlatformGitHub tracks GitHub repository and follower statistics.
	PlatformGitHub
	// PlatformCodeforces tracks Codeforces contest rating statistics.
	PlatformCodeforces
)

var platformNames = map[Platform]string{
	PlatformLeetCode:   "leetcode",
	PlatformGitHub:     "github",
	PlatformCodeforces: "codeforces",
}

// String returns the lowercase wire name of the platform.
func (p Platform) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Platform(%d)", int(p))
}

// MarshalText encodes the platform as its wire name for JSON and map keys.
func (p Platform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses the platform from its wire name.
func (p *Platform) UnmarshalText(text []byte) error {
	parsed, err := PlatformString(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// PlatformString parses a platform from its wire name.
func PlatformString(s string) (Platform, error) {
	for p, name := range platformNames {
		if name == strings.ToLower(s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, s)
}

// PlatformValues returns all platforms in declaration order.
func PlatformValues() []Platform {
	return []Platform{PlatformLeetCode, PlatformGitHub, PlatformCodeforces}
}
