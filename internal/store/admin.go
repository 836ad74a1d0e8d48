package store

import (
	"context"
	"fmt"
)

// pipelineTables in child-first order so deletes never trip foreign keys.
var pipelineTables = []string{
	"invoices",
	"retest_requests",
	"reports",
	"lab_transfers",
	"labtests",
	"receipts",
}

// ResetPipeline wipes all sample pipeline data. Users and owner preferences
// survive so logins keep working after a demo reset.
func (s *Store) ResetPipeline(ctx context.Context) error {
	for _, table := range pipelineTables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// ResetAll wipes every table, pipeline data and users alike.
func (s *Store) ResetAll(ctx context.Context) error {
	if err := s.ResetPipeline(ctx); err != nil {
		return err
	}
	for _, table := range []string{"owner_preferences", "users"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

var inspectableTables = map[string]bool{
	"users":             true,
	"receipts":          true,
	"labtests":          true,
	"lab_transfers":     true,
	"reports":           true,
	"retest_requests":   true,
	"invoices":          true,
	"owner_preferences": true,
}

// TableColumn is one row of PRAGMA table_info.
type TableColumn struct {
	Name    string
	Type    string
	NotNull bool
	PK      bool
}

// TableColumns returns the schema of one of the known tables. The name is
// checked against a whitelist before it is interpolated into the PRAGMA.
func (s *Store) TableColumns(ctx context.Context, table string) ([]TableColumn, error) {
	if !inspectableTables[table] {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []TableColumn
	for rows.Next() {
		var (
			cid     int
			col     TableColumn
			dflt    any
			notNull int
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		col.NotNull = notNull != 0
		col.PK = pk != 0
		cols = append(cols, col)
	}
	return cols, rows.Err()
}
