package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is the transaction manager: it wraps a single dedicated connection and
// exposes nested begin/commit/rollback via named savepoints, so a top-level
// request transaction can contain operation-level transactions without one
// failing operation aborting unrelated work.
//
// Nesting is only safe because every nested scope shares this one connection
// and executes sequentially. Callers must pair each Begin with exactly one
// Commit or Rollback using the handle Begin returned.
type Tx struct {
	conn  *sql.Conn
	depth int
}

// NewTx acquires a dedicated connection from the pool and returns a store
// view bound to it. The caller owns the connection until Release.
func (s *Store) NewTx(ctx context.Context) (*Store, *Tx, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx := &Tx{conn: conn}
	view := &Store{db: s.db, q: tx, tx: tx, logger: s.logger}
	return view, tx, nil
}

// Begin opens a transaction scope and returns its handle.
// At depth 0 this issues a real BEGIN; deeper scopes get a named savepoint.
func (t *Tx) Begin(ctx context.Context) (int, error) {
	handle := t.depth
	var stmt string
	if handle == 0 {
		stmt = "BEGIN"
	} else {
		stmt = fmt.Sprintf("SAVEPOINT sp_%d", handle)
	}
	if _, err := t.conn.ExecContext(ctx, stmt); err != nil {
		return 0, fmt.Errorf("begin scope %d: %w", handle, err)
	}
	t.depth = handle + 1
	return handle, nil
}

// Commit terminates the scope opened with the given handle.
// Handle 0 issues a real COMMIT; deeper handles release their savepoint.
func (t *Tx) Commit(ctx context.Context, handle int) error {
	var stmt string
	if handle == 0 {
		stmt = "COMMIT"
	} else {
		stmt = fmt.Sprintf("RELEASE SAVEPOINT sp_%d", handle)
	}
	if _, err := t.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("commit scope %d: %w", handle, err)
	}
	t.depth = handle
	return nil
}

// Rollback aborts the scope opened with the given handle, leaving any outer
// scopes' uncommitted work intact.
func (t *Tx) Rollback(ctx context.Context, handle int) error {
	if handle == 0 {
		if _, err := t.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
			return fmt.Errorf("rollback scope 0: %w", err)
		}
		t.depth = 0
		return nil
	}
	// ROLLBACK TO leaves the savepoint on the stack; release it so the
	// depth counter and the savepoint stack stay in step.
	if _, err := t.conn.ExecContext(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT sp_%d", handle)); err != nil {
		return fmt.Errorf("rollback scope %d: %w", handle, err)
	}
	if _, err := t.conn.ExecContext(ctx, fmt.Sprintf("RELEASE SAVEPOINT sp_%d", handle)); err != nil {
		return fmt.Errorf("release scope %d: %w", handle, err)
	}
	t.depth = handle
	return nil
}

// Release returns the dedicated connection to the pool.
func (t *Tx) Release() error {
	return t.conn.Close()
}

// ExecContext implements querier on the transaction connection.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

// QueryContext implements querier on the transaction connection.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext implements querier on the transaction connection.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.conn.QueryRowContext(ctx, query, args...)
}

// RunInTx runs fn inside a transaction scope, committing on success and
// rolling back to the starting savepoint on error or panic.
//
// On a plain store this acquires a connection, opens a real transaction and
// releases the connection afterwards. On a store view already bound to a
// transaction it opens a nested savepoint scope on the same connection, so
// independently-written operations compose transactionally.
func (s *Store) RunInTx(ctx context.Context, fn func(*Store) error) error {
	if s.tx != nil {
		return s.tx.run(ctx, s, fn)
	}

	view, tx, err := s.NewTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Release()

	return tx.run(ctx, view, fn)
}

// run pairs Begin with exactly one terminal Commit/Rollback on every exit
// path, including panics.
func (t *Tx) run(ctx context.Context, view *Store, fn func(*Store) error) error {
	handle, err := t.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback(ctx, handle)
			panic(p)
		}
	}()

	if err := fn(view); err != nil {
		if rbErr := t.Rollback(ctx, handle); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	return t.Commit(ctx, handle)
}

// NewTestTx returns a store view whose outermost transaction is owned by the
// test harness: nothing the view does is ever truly committed, and the
// returned cleanup rolls the whole chain back, so integration tests are
// hermetic. Nested RunInTx calls on the view work normally via savepoints.
func (s *Store) NewTestTx(ctx context.Context) (*Store, func(), error) {
	view, tx, err := s.NewTx(ctx)
	if err != nil {
		return nil, nil, err
	}

	handle, err := tx.Begin(ctx)
	if err != nil {
		tx.Release()
		return nil, nil, err
	}

	cleanup := func() {
		_ = tx.Rollback(context.Background(), handle)
		_ = tx.Release()
	}
	return view, cleanup, nil
}
