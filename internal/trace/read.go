package trace

import (
	"context"
	"fmt"
	"strings"

	"github.com/rwp0/Cor/internal/object"
)

// EventFilter selects events by exact match. Zero-value fields match
// everything; the zero filter reads the whole trace.
type EventFilter struct {
	Kind   string
	Class  string
	Handle string
}

func (f EventFilter) clauses() (string, []any) {
	var conds []string
	var args []any
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Class != "" {
		conds = append(conds, "class = ?")
		args = append(args, f.Class)
	}
	if f.Handle != "" {
		conds = append(conds, "handle = ?")
		args = append(args, f.Handle)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ReadEvents returns matching events ordered by seq ASC - the logical
// clock is the only ordering, never wall time.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadEvents(ctx context.Context, f EventFilter) ([]object.Event, error) {
	where, args := f.clauses()
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, class, method, owner, handle, detail
		FROM events`+where+`
		ORDER BY seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []object.Event{}
	for rows.Next() {
		var (
			ev     object.Event
			kind   string
			detail string
		)
		if err := rows.Scan(&ev.Seq, &kind, &ev.Class, &ev.Method, &ev.Owner, &ev.Handle, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = object.EventKind(kind)
		ev.Detail, err = unmarshalDetail(detail)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// CountEvents returns how many events match the filter.
func (s *Store) CountEvents(ctx context.Context, f EventFilter) (int, error) {
	where, args := f.clauses()
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events`+where+`
	`, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// ReadDeclarations returns recorded declarations in registration
// order.
//
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadDeclarations(ctx context.Context) ([]Declaration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, name, version, fingerprint, canonical
		FROM declarations
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query declarations: %w", err)
	}
	defer rows.Close()

	decls := []Declaration{}
	for rows.Next() {
		var d Declaration
		if err := rows.Scan(&d.Kind, &d.Name, &d.Version, &d.Fingerprint, &d.Canonical); err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		decls = append(decls, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate declarations: %w", err)
	}

	return decls, nil
}
