package queue

import (
	"context"
	"database/sql"
)

// ExecForTest runs raw SQL against the store's database.
func (s *Store) ExecForTest(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// PragmaPerConnForTest checks out n connections at once and reads pragma on
// each, so every value comes from a distinct pooled connection.
func (s *Store) PragmaPerConnForTest(ctx context.Context, n int, pragma string) ([]int64, error) {
	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	values := make([]int64, 0, n)
	for range n {
		c, err := s.db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
		var v int64
		if err := c.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
