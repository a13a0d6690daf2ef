package decl

import (
	"fmt"
	"regexp"
)

// Class and role names follow the host convention of ::-separated
// identifier segments ("Cache", "My::Cache"). Member names (fields,
// methods, accessors) are single identifiers.
var (
	nameRE   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(::[A-Za-z_][A-Za-z0-9_]*)*$`)
	memberRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidName reports whether s is a well-formed class or role name.
func ValidName(s string) bool {
	return nameRE.MatchString(s)
}

// ValidMemberName reports whether s is a well-formed field, method or
// accessor name.
func ValidMemberName(s string) bool {
	return memberRE.MatchString(s)
}

// ValidationError is a structural problem in a declaration, with the
// field path that triggered it.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// JoinValidationErrors folds a validation result into one error, nil if
// the slice is empty.
func JoinValidationErrors(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
