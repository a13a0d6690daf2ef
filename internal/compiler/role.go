package compiler

import (
	"cuelang.org/go/cue"

	"github.com/rwp0/Cor/internal/decl"
)

// CompileRole parses a CUE value into a role declaration.
//
// Roles carry fields and methods only: no version, no parent, no
// hooks. A shared field in a role is decoded as written and rejected
// later by decl.Validate, so the error carries the structural rule
// rather than a parse failure.
func CompileRole(v cue.Value) (*decl.RoleDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	d := &decl.RoleDecl{Name: declName(v)}

	var err error
	d.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}
	d.Methods, err = parseMethods(v)
	if err != nil {
		return nil, err
	}

	return d, nil
}
