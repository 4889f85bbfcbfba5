package extension

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// Matches reports whether installed satisfies the required version range.
// Ranges use Masterminds constraint syntax ("1.2.3", ">=1.0.0", "^2.1",
// "~0.3", ...). Malformed input is a caller error and fails fast rather
// than silently passing.
func Matches(installed, required string) (bool, error) {
	v, err := semver.NewVersion(installed)
	if err != nil {
		return false, oops.With("version", installed).Hint("not a semantic version").Wrap(err)
	}
	c, err := semver.NewConstraint(required)
	if err != nil {
		return false, oops.With("range", required).Hint("not a version range").Wrap(err)
	}
	return c.Check(v), nil
}
