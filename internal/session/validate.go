package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under ~/.waddle/sessions and the
// daemon socket filename, so the alphabet is restricted to what every
// filesystem tolerates.
var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is usable as a waddle session name.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 lowercase letters, digits, - or _", name)
	}
	return nil
}
