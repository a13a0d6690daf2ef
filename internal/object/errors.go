package object

import (
	"errors"
	"fmt"
	"strings"
)

// RegistrationError reports a declaration that cannot be registered or
// linearized. Registration errors poison only the offending
// declaration; everything already registered stays usable.
type RegistrationError struct {
	// Code identifies the error category.
	Code RegistrationErrorCode

	// Message is a human-readable description.
	Message string

	// Class is the declaration being registered or linearized.
	Class string

	// Roles names the roles involved (for ambiguity errors).
	Roles []string

	// Method names the method involved (for ambiguity and override errors).
	Method string

	// Field names the field involved (for parameter-name errors).
	Field string

	// Chain is the inheritance path for cycle errors.
	Chain []string

	// Required and Actual carry version details for constraint errors.
	Required string
	Actual   string
}

// RegistrationErrorCode categorizes registration errors.
type RegistrationErrorCode string

const (
	// ErrCodeDuplicateDeclaration indicates name+version is already registered.
	ErrCodeDuplicateDeclaration RegistrationErrorCode = "DUPLICATE_DECLARATION"

	// ErrCodeCyclicInheritance indicates the parent chain loops back on itself.
	ErrCodeCyclicInheritance RegistrationErrorCode = "CYCLIC_INHERITANCE"

	// ErrCodeAmbiguousRoleMethod indicates two consumed roles define the
	// same method and the class does not override it.
	ErrCodeAmbiguousRoleMethod RegistrationErrorCode = "AMBIGUOUS_ROLE_METHOD"

	// ErrCodeMissingOverrideTarget indicates an overriding method has no
	// same-named method anywhere in the parent chain.
	ErrCodeMissingOverrideTarget RegistrationErrorCode = "MISSING_OVERRIDE_TARGET"

	// ErrCodeVersionConstraintViolated indicates the resolved parent
	// version is below the declared minimum.
	ErrCodeVersionConstraintViolated RegistrationErrorCode = "VERSION_CONSTRAINT_VIOLATED"

	// ErrCodeInvalidDeclaration indicates the declaration record itself
	// is structurally invalid.
	ErrCodeInvalidDeclaration RegistrationErrorCode = "INVALID_DECLARATION"

	// ErrCodeDuplicateParamName indicates two constructor-parameter
	// fields in the flattened chain carry the same name, which would
	// make one argument key bind ambiguously.
	ErrCodeDuplicateParamName RegistrationErrorCode = "DUPLICATE_PARAM_NAME"
)

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	switch {
	case len(e.Chain) > 0:
		return fmt.Sprintf("%s: %s (chain=%s)", e.Code, e.Message, strings.Join(e.Chain, " -> "))
	case e.Method != "":
		return fmt.Sprintf("%s: %s (class=%s, method=%s)", e.Code, e.Message, e.Class, e.Method)
	case e.Class != "":
		return fmt.Sprintf("%s: %s (class=%s)", e.Code, e.Message, e.Class)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// ConstructionError reports a failed instantiation. No partially
// constructed instance is ever observable after one.
type ConstructionError struct {
	Code    ConstructionErrorCode
	Message string

	// Class is the class being instantiated.
	Class string

	// Field names the field involved, when one is.
	Field string

	// Cause wraps the underlying error when a hook or an
	// argument-transform method failed.
	Cause error
}

// ConstructionErrorCode categorizes construction errors.
type ConstructionErrorCode string

const (
	// ErrCodeAbstractInstantiation indicates new was called on an
	// abstract class.
	ErrCodeAbstractInstantiation ConstructionErrorCode = "ABSTRACT_INSTANTIATION"

	// ErrCodeDuplicateConstructorArgument indicates a key appeared twice
	// in the argument pairs.
	ErrCodeDuplicateConstructorArgument ConstructionErrorCode = "DUPLICATE_CONSTRUCTOR_ARGUMENT"

	// ErrCodeInvalidConstructorArguments indicates the arguments were
	// not a flat even-length key/value sequence with string keys.
	ErrCodeInvalidConstructorArguments ConstructionErrorCode = "INVALID_CONSTRUCTOR_ARGUMENTS"

	// ErrCodeMissingRequiredField indicates a required parameter was
	// absent.
	ErrCodeMissingRequiredField ConstructionErrorCode = "MISSING_REQUIRED_FIELD"

	// ErrCodeUnexpectedConstructorArgument indicates a key named a
	// non-parameter field or no field at all.
	ErrCodeUnexpectedConstructorArgument ConstructionErrorCode = "UNEXPECTED_CONSTRUCTOR_ARGUMENT"

	// ErrCodeAdjustFailed indicates an adjust hook returned an error,
	// aborting construction after validation had passed.
	ErrCodeAdjustFailed ConstructionErrorCode = "ADJUST_FAILED"
)

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (class=%s, field=%s)", e.Code, e.Message, e.Class, e.Field)
	}
	return fmt.Sprintf("%s: %s (class=%s)", e.Code, e.Message, e.Class)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *ConstructionError) Unwrap() error {
	return e.Cause
}

// DispatchError reports a failed method invocation.
type DispatchError struct {
	Code    DispatchErrorCode
	Message string

	// Class is the dispatch target's class.
	Class string

	// Method is the requested method name.
	Method string
}

// DispatchErrorCode categorizes dispatch errors.
type DispatchErrorCode string

const (
	// ErrCodeMethodNotFound indicates the method is absent from the
	// resolved table. Methods and free-standing callables are disjoint
	// name spaces; there is no fallback.
	ErrCodeMethodNotFound DispatchErrorCode = "METHOD_NOT_FOUND"

	// ErrCodeNoNextMethod indicates the next-implementation cursor ran
	// past the end of the dispatch list.
	ErrCodeNoNextMethod DispatchErrorCode = "NO_NEXT_METHOD"

	// ErrCodeInstanceMethodOnClass indicates an instance-scoped method
	// was invoked on a class value.
	ErrCodeInstanceMethodOnClass DispatchErrorCode = "INSTANCE_METHOD_ON_CLASS"

	// ErrCodeArityMismatch indicates the argument count does not match
	// the invoked implementation's declared arity.
	ErrCodeArityMismatch DispatchErrorCode = "ARITY_MISMATCH"

	// ErrCodeInstanceReleased indicates an invocation through a handle
	// whose instance has been torn down or whose handle was released.
	ErrCodeInstanceReleased DispatchErrorCode = "INSTANCE_RELEASED"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s: %s (class=%s, method=%s)", e.Code, e.Message, e.Class, e.Method)
	}
	return fmt.Sprintf("%s: %s (class=%s)", e.Code, e.Message, e.Class)
}

// LookupError reports a failed declaration lookup. Lookups are neither
// registrations nor dispatches, so they carry their own type.
type LookupError struct {
	Code LookupErrorCode

	// Name is the class that was looked up.
	Name string

	// Required is the minimum version asked for, if any.
	Required string

	// Highest is the highest registered version, for VERSION_TOO_LOW.
	Highest string
}

// LookupErrorCode categorizes lookup errors.
type LookupErrorCode string

const (
	// ErrCodeUnknownClass indicates no declaration under that name.
	ErrCodeUnknownClass LookupErrorCode = "UNKNOWN_CLASS"

	// ErrCodeVersionTooLow indicates every registered version is below
	// the requested minimum.
	ErrCodeVersionTooLow LookupErrorCode = "VERSION_TOO_LOW"
)

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.Code == ErrCodeVersionTooLow {
		return fmt.Sprintf("%s: class %q highest registered version %s is below required %s", e.Code, e.Name, e.Highest, e.Required)
	}
	return fmt.Sprintf("%s: class %q is not registered", e.Code, e.Name)
}

// IsDuplicateDeclaration returns true for DUPLICATE_DECLARATION errors.
// Uses errors.As to handle wrapped errors.
func IsDuplicateDeclaration(err error) bool {
	return registrationCode(err) == ErrCodeDuplicateDeclaration
}

// IsCyclicInheritance returns true for CYCLIC_INHERITANCE errors.
func IsCyclicInheritance(err error) bool {
	return registrationCode(err) == ErrCodeCyclicInheritance
}

// IsAmbiguousRoleMethod returns true for AMBIGUOUS_ROLE_METHOD errors.
func IsAmbiguousRoleMethod(err error) bool {
	return registrationCode(err) == ErrCodeAmbiguousRoleMethod
}

// IsMissingOverrideTarget returns true for MISSING_OVERRIDE_TARGET errors.
func IsMissingOverrideTarget(err error) bool {
	return registrationCode(err) == ErrCodeMissingOverrideTarget
}

// IsVersionConstraintViolated returns true for VERSION_CONSTRAINT_VIOLATED errors.
func IsVersionConstraintViolated(err error) bool {
	return registrationCode(err) == ErrCodeVersionConstraintViolated
}

func registrationCode(err error) RegistrationErrorCode {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsAbstractInstantiation returns true for ABSTRACT_INSTANTIATION errors.
func IsAbstractInstantiation(err error) bool {
	return constructionCode(err) == ErrCodeAbstractInstantiation
}

// IsMissingRequiredField returns true for MISSING_REQUIRED_FIELD errors.
func IsMissingRequiredField(err error) bool {
	return constructionCode(err) == ErrCodeMissingRequiredField
}

func constructionCode(err error) ConstructionErrorCode {
	var ce *ConstructionError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsMethodNotFound returns true for METHOD_NOT_FOUND errors.
func IsMethodNotFound(err error) bool {
	return dispatchCode(err) == ErrCodeMethodNotFound
}

// IsNoNextMethod returns true for NO_NEXT_METHOD errors.
func IsNoNextMethod(err error) bool {
	return dispatchCode(err) == ErrCodeNoNextMethod
}

// IsInstanceReleased returns true for INSTANCE_RELEASED errors.
func IsInstanceReleased(err error) bool {
	return dispatchCode(err) == ErrCodeInstanceReleased
}

func dispatchCode(err error) DispatchErrorCode {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsUnknownClass returns true for UNKNOWN_CLASS lookup errors.
func IsUnknownClass(err error) bool {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Code == ErrCodeUnknownClass
	}
	return false
}

// IsVersionTooLow returns true for VERSION_TOO_LOW lookup errors.
func IsVersionTooLow(err error) bool {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Code == ErrCodeVersionTooLow
	}
	return false
}

// NewCyclicInheritanceError builds the registration error for a parent
// chain that loops, with the chain in resolution order.
func NewCyclicInheritanceError(chain []string) *RegistrationError {
	return &RegistrationError{
		Code:    ErrCodeCyclicInheritance,
		Message: "inheritance chain forms a cycle",
		Class:   chain[0],
		Chain:   chain,
	}
}

// NewAmbiguousRoleMethodError builds the registration error for a role
// method collision the class does not resolve.
func NewAmbiguousRoleMethodError(class, roleA, roleB, method string) *RegistrationError {
	return &RegistrationError{
		Code:    ErrCodeAmbiguousRoleMethod,
		Message: fmt.Sprintf("roles %q and %q both define %q and the class does not override it", roleA, roleB, method),
		Class:   class,
		Roles:   []string{roleA, roleB},
		Method:  method,
	}
}

// NewMissingOverrideTargetError builds the registration error for an
// override marker with nothing to override.
func NewMissingOverrideTargetError(class, method string) *RegistrationError {
	return &RegistrationError{
		Code:    ErrCodeMissingOverrideTarget,
		Message: "method declares an override but no parent declares it",
		Class:   class,
		Method:  method,
	}
}

// NewVersionConstraintError builds the registration error for a parent
// below its declared minimum version.
func NewVersionConstraintError(class, parent, required, actual string) *RegistrationError {
	return &RegistrationError{
		Code:     ErrCodeVersionConstraintViolated,
		Message:  fmt.Sprintf("parent %q version %s is below required %s", parent, actual, required),
		Class:    class,
		Required: required,
		Actual:   actual,
	}
}
