package object

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/rwp0/Cor/internal/decl"
)

// DeclStore is the append-only declaration store. Classes are keyed by
// name+version, roles by name; the two share one name space, the way
// the host's packages do. Declarations are never mutated or removed
// after registration - the store holds the caller's record and relies
// on the documented immutability contract.
type DeclStore struct {
	mu      sync.RWMutex
	classes map[string][]storedClass // name -> versions, ascending
	roles   map[string]*decl.RoleDecl
}

type storedClass struct {
	version *semver.Version
	d       *decl.ClassDecl
}

// NewDeclStore creates an empty declaration store.
func NewDeclStore() *DeclStore {
	return &DeclStore{
		classes: make(map[string][]storedClass),
		roles:   make(map[string]*decl.RoleDecl),
	}
}

// RegisterClass validates and appends a class declaration. Fails with
// INVALID_DECLARATION for structural problems and
// DUPLICATE_DECLARATION when name+version is already present or the
// name is taken by a role.
func (s *DeclStore) RegisterClass(d *decl.ClassDecl) error {
	if errs := d.Validate(); len(errs) > 0 {
		return &RegistrationError{
			Code:    ErrCodeInvalidDeclaration,
			Message: decl.JoinValidationErrors(errs).Error(),
			Class:   d.Name,
		}
	}
	v := decl.MustVersion(d.Version)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.roles[d.Name]; taken {
		return &RegistrationError{
			Code:    ErrCodeDuplicateDeclaration,
			Message: "name is already registered as a role",
			Class:   d.Name,
		}
	}
	versions := s.classes[d.Name]
	for _, sc := range versions {
		if sc.version.Equal(v) {
			return &RegistrationError{
				Code:    ErrCodeDuplicateDeclaration,
				Message: "class version is already registered",
				Class:   d.Name,
				Actual:  v.String(),
			}
		}
	}

	// Keep versions ascending so lookup can scan from the back.
	insert := len(versions)
	for i, sc := range versions {
		if v.LessThan(sc.version) {
			insert = i
			break
		}
	}
	versions = append(versions, storedClass{})
	copy(versions[insert+1:], versions[insert:])
	versions[insert] = storedClass{version: v, d: d}
	s.classes[d.Name] = versions

	return nil
}

// RegisterRole validates and appends a role declaration.
func (s *DeclStore) RegisterRole(d *decl.RoleDecl) error {
	if errs := d.Validate(); len(errs) > 0 {
		return &RegistrationError{
			Code:    ErrCodeInvalidDeclaration,
			Message: decl.JoinValidationErrors(errs).Error(),
			Class:   d.Name,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.roles[d.Name]; taken {
		return &RegistrationError{
			Code:    ErrCodeDuplicateDeclaration,
			Message: "role is already registered",
			Class:   d.Name,
		}
	}
	if _, taken := s.classes[d.Name]; taken {
		return &RegistrationError{
			Code:    ErrCodeDuplicateDeclaration,
			Message: "name is already registered as a class",
			Class:   d.Name,
		}
	}

	s.roles[d.Name] = d
	return nil
}

// LookupClass returns the highest registered version of name that is
// >= min. A nil min accepts any version. Fails with UNKNOWN_CLASS when
// nothing is registered under the name and VERSION_TOO_LOW when every
// registered version is below min.
func (s *DeclStore) LookupClass(name string, min *semver.Version) (*decl.ClassDecl, *semver.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.classes[name]
	if len(versions) == 0 {
		return nil, nil, &LookupError{Code: ErrCodeUnknownClass, Name: name}
	}

	highest := versions[len(versions)-1]
	if min != nil && highest.version.LessThan(min) {
		return nil, nil, &LookupError{
			Code:     ErrCodeVersionTooLow,
			Name:     name,
			Required: min.String(),
			Highest:  highest.version.String(),
		}
	}
	return highest.d, highest.version, nil
}

// LookupRole returns a registered role declaration.
func (s *DeclStore) LookupRole(name string) (*decl.RoleDecl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.roles[name]
	if !ok {
		return nil, &LookupError{Code: ErrCodeUnknownClass, Name: name}
	}
	return d, nil
}

// ClassNames returns all registered class names, sorted.
func (s *DeclStore) ClassNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
