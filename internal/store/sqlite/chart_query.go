package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	apperrors "github.com/chordseqapp/chordseq-server/internal/errors"
)

// ChartOrder selects the sort key for chart queries.
type ChartOrder string

const (
	// OrderCreated sorts by creation time (the default).
	OrderCreated ChartOrder = "created"
	// OrderReactions sorts by total reaction count.
	OrderReactions ChartOrder = "reactions"
	// OrderPosition sorts by the chart's stored position within a tag.
	// Only honored when the query names exactly one tag.
	OrderPosition ChartOrder = "position"
	// OrderRandom returns a fresh uniform sample on every call; no cursor.
	OrderRandom ChartOrder = "random"
)

// Query limits. Limit is clamped server-side.
const (
	DefaultChartLimit = 50
	MaxChartLimit     = 100
)

// ChartQuery is the declarative input of the content query engine.
type ChartQuery struct {
	// ID, when set, resolves that single chart; all other filters are ignored.
	ID string
	// TagIDs restricts results to charts tagged with any of the given tags.
	TagIDs []string
	// Kinds restricts results to the given chart kinds; empty means all.
	Kinds []domain.ChartKind
	// Order selects the sort key; zero value means OrderCreated.
	Order ChartOrder
	// Ascending flips the direction; the default is descending (newest /
	// most-reacted first).
	Ascending bool
	// After is an opaque pagination cursor: the ID of the last chart of the
	// previous page.
	After string
	// Limit is the page size, clamped to [1, MaxChartLimit]; zero means
	// DefaultChartLimit.
	Limit int
}

// chartVisibility is the uniform visibility filter: a chart is visible to
// the caller if they own it, it is public, or one of its tags grants them at
// least read access via an active policy. The policy set is computed inside
// one statement, never per row. Bind args: ownerID, scope, granteeID, now.
const chartVisibility = `(c.owner_id = ? OR c.scope = ? OR EXISTS (
	SELECT 1 FROM chart_tags vt
	JOIN policies vp ON vp.resource_type = 'tag' AND vp.resource_id = vt.tag_id
		AND vp.grantee_id = ? AND vp.deleted_at IS NULL
		AND (vp.expires_at IS NULL OR vp.expires_at > ?)
	WHERE vt.chart_id = c.id))`

// QueryCharts resolves a chart query for the given caller, applying the
// visibility filter on every path.
func (s *Store) QueryCharts(ctx context.Context, callerID string, q ChartQuery) ([]*domain.Chart, error) {
	now := formatTime(time.Now())

	if q.ID != "" {
		return s.queryChartByID(ctx, callerID, q.ID, now)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultChartLimit
	}
	if limit > MaxChartLimit {
		limit = MaxChartLimit
	}

	where := "c.deleted_at IS NULL AND " + chartVisibility
	args := []any{callerID, domain.ScopePublic, callerID, now}

	if len(q.Kinds) > 0 {
		where += " AND c.kind IN (" + placeholders(len(q.Kinds)) + ")"
		for _, k := range q.Kinds {
			args = append(args, string(k))
		}
	}

	if len(q.TagIDs) > 0 {
		where += " AND EXISTS (SELECT 1 FROM chart_tags ft WHERE ft.chart_id = c.id AND ft.tag_id IN (" +
			placeholders(len(q.TagIDs)) + "))"
		for _, id := range q.TagIDs {
			args = append(args, id)
		}
	}

	if q.Order == OrderRandom {
		// Each call is an independent uniform sample; cursors do not apply.
		rows, err := s.q.QueryContext(ctx, `
			SELECT `+chartColumnsAliased+` FROM charts c
			WHERE `+where+`
			ORDER BY RANDOM() LIMIT ?`, append(args, limit)...)
		if err != nil {
			return nil, fmt.Errorf("query charts (random): %w", err)
		}
		defer rows.Close()
		return collectCharts(rows)
	}

	keyExpr, keyArgs := s.sortKeyExpr(q)

	if q.After != "" {
		cursorWhere, cursorArgs, err := s.cursorClause(ctx, q, keyExpr, keyArgs)
		if err != nil {
			return nil, err
		}
		where += " AND " + cursorWhere
		args = append(args, cursorArgs...)
	}

	// The sort key expression appears once more in ORDER BY, so its bind
	// arguments go last before the limit.
	args = append(args, keyArgs...)

	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+chartColumnsAliased+` FROM charts c
		WHERE `+where+`
		ORDER BY `+keyExpr+` `+dir+`, c.id `+dir+`
		LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("query charts: %w", err)
	}
	defer rows.Close()
	return collectCharts(rows)
}

// queryChartByID resolves the exact-ID path: a singleton if the chart is
// visible to the caller, an empty result otherwise. Invisible and missing
// are indistinguishable.
func (s *Store) queryChartByID(ctx context.Context, callerID, chartID, now string) ([]*domain.Chart, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+chartColumnsAliased+` FROM charts c
		WHERE c.id = ? AND c.deleted_at IS NULL AND `+chartVisibility,
		chartID, callerID, domain.ScopePublic, callerID, now)
	chart, err := scanChart(row)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []*domain.Chart{chart}, nil
}

// sortKeyExpr returns the SQL expression computing the sort key for the
// requested ordering, plus its bind arguments.
//
// A position ordering with anything other than exactly one tag falls back to
// creation time. The original system did this silently; we log it so the
// fallback is at least observable.
func (s *Store) sortKeyExpr(q ChartQuery) (string, []any) {
	switch q.Order {
	case OrderReactions:
		return "(SELECT COUNT(*) FROM reactions r WHERE r.chart_id = c.id)", nil
	case OrderPosition:
		if len(q.TagIDs) == 1 {
			return "(SELECT ct.position FROM chart_tags ct WHERE ct.chart_id = c.id AND ct.tag_id = ?)",
				[]any{q.TagIDs[0]}
		}
		if s.logger != nil {
			s.logger.Warn("position ordering requires exactly one tag; falling back to creation time",
				"tag_count", len(q.TagIDs))
		}
		return "c.created_at", nil
	default:
		return "c.created_at", nil
	}
}

// cursorClause computes the sort rank of the cursor row and returns a clause
// matching only rows strictly beyond it in the requested direction, with a
// deterministic tie-break on chart ID.
func (s *Store) cursorClause(ctx context.Context, q ChartQuery, keyExpr string, keyArgs []any) (string, []any, error) {
	var cursorKey any
	args := append(append([]any{}, keyArgs...), q.After)
	err := s.q.QueryRowContext(ctx, `
		SELECT `+keyExpr+` FROM charts c WHERE c.id = ? AND c.deleted_at IS NULL`, args...).
		Scan(&cursorKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, apperrors.Validation("unknown pagination cursor")
	}
	if err != nil {
		return "", nil, fmt.Errorf("resolve cursor rank: %w", err)
	}

	cmp := "<"
	if q.Ascending {
		cmp = ">"
	}
	clause := fmt.Sprintf("(%s %s ? OR (%s = ? AND c.id %s ?))", keyExpr, cmp, keyExpr, cmp)

	out := append(append([]any{}, keyArgs...), cursorKey)
	out = append(out, keyArgs...)
	out = append(out, cursorKey, q.After)
	return clause, out, nil
}

func collectCharts(rows *sql.Rows) ([]*domain.Chart, error) {
	var charts []*domain.Chart
	for rows.Next() {
		c, err := scanChart(rows)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}
	return charts, rows.Err()
}
