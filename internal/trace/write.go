package trace

import (
	"context"
	"fmt"

	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/object"
)

// Declaration is one registered declaration as recorded in the trace.
// Canonical holds the RFC 8785 JSON whose domain-separated SHA-256 is
// Fingerprint.
type Declaration struct {
	Kind        string // "class" or "role"
	Name        string
	Version     string // empty for roles and unversioned classes
	Fingerprint string
	Canonical   string
}

// WriteDeclaration inserts a declaration record.
// Uses ON CONFLICT DO NOTHING for idempotency - re-recording the same
// declaration is silently ignored.
func (s *Store) WriteDeclaration(ctx context.Context, d Declaration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO declarations
		(kind, name, version, fingerprint, canonical)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		d.Kind,
		d.Name,
		d.Version,
		d.Fingerprint,
		d.Canonical,
	)
	if err != nil {
		return fmt.Errorf("write declaration: %w", err)
	}

	return nil
}

// WriteEvent inserts a lifecycle event record.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - replaying a
// runtime's events into the same database is silently ignored. The
// event's Detail is serialized to canonical JSON per RFC 8785 so
// traces diff cleanly.
func (s *Store) WriteEvent(ctx context.Context, ev object.Event) error {
	detailJSON, err := marshalDetail(ev.Detail)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(seq, kind, class, method, owner, handle, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		ev.Seq,
		string(ev.Kind),
		ev.Class,
		ev.Method,
		ev.Owner,
		ev.Handle,
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// marshalDetail converts an event detail to canonical JSON TEXT.
func marshalDetail(detail decl.Object) (string, error) {
	if detail == nil {
		return "{}", nil
	}
	data, err := decl.MarshalCanonical(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}

// unmarshalDetail parses canonical JSON TEXT back into a detail object.
func unmarshalDetail(data string) (decl.Object, error) {
	if data == "" || data == "{}" {
		return decl.Object{}, nil
	}
	v, err := decl.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	obj, ok := v.(decl.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal detail: got %T, not an object", v)
	}
	return obj, nil
}
