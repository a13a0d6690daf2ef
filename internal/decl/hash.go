package decl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for declaration fingerprints. The version suffix
// leaves room for algorithm migration.
const (
	DomainClass = "cor/class/v1"
	DomainRole  = "cor/role/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data); the null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ClassCanonical renders the fingerprinted surface of a class
// declaration as RFC 8785 canonical JSON. Bodies and default thunks
// are code, not data: the canonical form covers their presence, never
// their behavior, so two declarations with identical shapes and
// different bodies collide on purpose - the fingerprint identifies
// the declared surface.
func ClassCanonical(d *ClassDecl) ([]byte, error) {
	obj := Object{
		"name":     String(d.Name),
		"version":  String(d.Version),
		"abstract": Bool(d.Abstract),
		"fields":   fieldsCanonical(d.Fields),
		"methods":  methodsCanonical(d.Methods),
		"hooks":    hooksCanonical(d.Hooks),
	}
	if d.Parent != nil {
		obj["parent"] = Object{
			"name":        String(d.Parent.Name),
			"min_version": String(d.Parent.MinVersion),
		}
	}
	if len(d.Roles) > 0 {
		roles := make(Array, len(d.Roles))
		for i, r := range d.Roles {
			roles[i] = String(r)
		}
		obj["roles"] = roles
	}

	return MarshalCanonical(obj)
}

// ClassFingerprint computes the content-addressed identity of a class
// declaration: the domain-separated hash of its canonical form.
func ClassFingerprint(d *ClassDecl) (string, error) {
	canonical, err := ClassCanonical(d)
	if err != nil {
		return "", fmt.Errorf("ClassFingerprint: %w", err)
	}
	return hashWithDomain(DomainClass, canonical), nil
}

// RoleCanonical renders the fingerprinted surface of a role
// declaration as RFC 8785 canonical JSON.
func RoleCanonical(d *RoleDecl) ([]byte, error) {
	obj := Object{
		"name":    String(d.Name),
		"fields":  fieldsCanonical(d.Fields),
		"methods": methodsCanonical(d.Methods),
	}

	return MarshalCanonical(obj)
}

// RoleFingerprint computes the content-addressed identity of a role
// declaration.
func RoleFingerprint(d *RoleDecl) (string, error) {
	canonical, err := RoleCanonical(d)
	if err != nil {
		return "", fmt.Errorf("RoleFingerprint: %w", err)
	}
	return hashWithDomain(DomainRole, canonical), nil
}

// MustClassFingerprint is like ClassFingerprint but panics on error.
// Use only in tests or when the declaration is known valid.
func MustClassFingerprint(d *ClassDecl) string {
	fp, err := ClassFingerprint(d)
	if err != nil {
		panic(err)
	}
	return fp
}

// MustRoleFingerprint is like RoleFingerprint but panics on error.
func MustRoleFingerprint(d *RoleDecl) string {
	fp, err := RoleFingerprint(d)
	if err != nil {
		panic(err)
	}
	return fp
}

func fieldsCanonical(fields []FieldDecl) Array {
	arr := make(Array, len(fields))
	for i, f := range fields {
		arr[i] = Object{
			"name":        String(f.Name),
			"scope":       String(f.Scope),
			"policy":      String(f.Policy),
			"kind":        String(f.Kind),
			"has_default": Bool(f.Default != nil),
			"reader":      String(f.Reader),
			"writer":      String(f.Writer),
		}
	}
	return arr
}

func methodsCanonical(methods []MethodDecl) Array {
	arr := make(Array, len(methods))
	for i, m := range methods {
		arr[i] = Object{
			"name":      String(m.Name),
			"arity":     Int(m.Arity),
			"scope":     String(m.Scope),
			"overrides": Bool(m.Overrides),
		}
	}
	return arr
}

func hooksCanonical(hooks []HookDecl) Array {
	arr := make(Array, len(hooks))
	for i, h := range hooks {
		arr[i] = Object{"kind": String(h.Kind)}
	}
	return arr
}
