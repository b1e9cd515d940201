package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// fakeRow satisfies pgx.Row with a scripted Scan.
type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// errRow always fails with err.
func errRow(err error) fakeRow {
	return fakeRow{scan: func(...any) error { return err }}
}

// jobRow scans the given job in jobColumns order.
func jobRow(j domain.EvaluationJob) fakeRow {
	return fakeRow{scan: func(dest ...any) error {
		*(dest[0].(*string)) = j.ID
		*(dest[1].(*string)) = j.JobID
		*(dest[2].(*string)) = j.OwnerID
		*(dest[3].(*string)) = j.JobTitle
		*(dest[4].(*string)) = j.CVID
		*(dest[5].(*string)) = j.ProjectID
		*(dest[6].(*domain.JobStatus)) = j.Status
		*(dest[7].(*int64)) = j.Version
		*(dest[8].(*int)) = j.RetryCount
		*(dest[9].(*string)) = j.Error
		*(dest[10].(*[]byte)) = nil
		*(dest[11].(*time.Time)) = j.CreatedAt
		*(dest[12].(**time.Time)) = j.ProcessingStartedAt
		*(dest[13].(**time.Time)) = j.ProcessingCompletedAt
		return nil
	}}
}

// fakeRows satisfies pgx.Rows over a fixed slice of rows.
type fakeRows struct {
	rows []fakeRow
	i    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.i < len(r.rows) {
		r.i++
		return true
	}
	return false
}
func (r *fakeRows) Scan(dest ...any) error { return r.rows[r.i-1].scan(dest...) }
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

// call records one statement issued against the fake pool.
type call struct {
	sql  string
	args []any
}

// fakePool scripts responses in issue order and records every statement.
type fakePool struct {
	mu sync.Mutex

	execErrs  []error    // popped per Exec; nil entries mean success
	rowQueue  []pgx.Row  // popped per QueryRow
	rowsQueue []pgx.Rows // popped per Query

	execs     []call
	queryRows []call
	queries   []call
}

func (p *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.execs = append(p.execs, call{sql, args})
	if len(p.execErrs) > 0 {
		err := p.execErrs[0]
		p.execErrs = p.execErrs[1:]
		return pgconn.CommandTag{}, err
	}
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryRows = append(p.queryRows, call{sql, args})
	if len(p.rowQueue) == 0 {
		return errRow(pgx.ErrNoRows)
	}
	row := p.rowQueue[0]
	p.rowQueue = p.rowQueue[1:]
	return row
}

func (p *fakePool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, call{sql, args})
	if len(p.rowsQueue) == 0 {
		return &fakeRows{}, nil
	}
	rows := p.rowsQueue[0]
	p.rowsQueue = p.rowsQueue[1:]
	return rows, nil
}
