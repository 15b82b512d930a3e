// Package semver validates handler versions and matches them against version ranges.
package semver

import (
	"fmt"
	"regexp"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:version"

var majorOnlyRegex = regexp.MustCompile(`^\d+$`)

// Parse validates a strict version string (e.g. "1.4.0", "2.0.0-beta.1").
func Parse(version string) (*masterminds.Version, error) {
	v := strings.TrimSpace(version)
	if v == "" {
		return nil, fmt.Errorf("%s - empty version", logPrefix)
	}
	sv, err := masterminds.StrictNewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version %q: %w", logPrefix, version, err)
	}
	return sv, nil
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}

// Satisfies checks version against rangeStr. A major-only range ("2") matches any version in
// that major, prereleases included; other ranges use SemVer constraint syntax ("^1.2", ">=2 <3").
func Satisfies(version, rangeStr string) (bool, error) {
	sv, err := Parse(version)
	if err != nil {
		return false, err
	}
	rangeStr = strings.TrimSpace(rangeStr)
	if rangeStr == "" {
		return true, nil
	}
	if IsMajorOnly(rangeStr) {
		return int(sv.Major()) == ExtractMajorFromRange(rangeStr), nil
	}
	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false, fmt.Errorf("%s - invalid range %q: %w", logPrefix, rangeStr, err)
	}
	return constraint.Check(sv), nil
}

// Compare orders two valid versions: -1, 0 or 1.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
