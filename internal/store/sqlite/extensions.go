package sqlite

import (
	"context"
	"fmt"

	"github.com/chordseqapp/chordseq-server/internal/domain"
)

// ListExtensions returns the fixed chord-extension reference rows.
func (s *Store) ListExtensions(ctx context.Context) ([]*domain.Extension, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, symbol FROM extensions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query extensions: %w", err)
	}
	defer rows.Close()

	var exts []*domain.Extension
	for rows.Next() {
		var e domain.Extension
		if err := rows.Scan(&e.ID, &e.Name, &e.Symbol); err != nil {
			return nil, fmt.Errorf("scan extension: %w", err)
		}
		exts = append(exts, &e)
	}
	return exts, rows.Err()
}

// AddChartExtension attaches an extension to a chart. Duplicate attachments
// are absorbed.
func (s *Store) AddChartExtension(ctx context.Context, chartID, extensionID string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO chart_extensions (chart_id, extension_id) VALUES (?, ?)
		ON CONFLICT (chart_id, extension_id) DO NOTHING`,
		chartID, extensionID)
	if err != nil {
		return fmt.Errorf("insert chart extension: %w", err)
	}
	return nil
}

// RemoveChartExtension detaches an extension from a chart.
func (s *Store) RemoveChartExtension(ctx context.Context, chartID, extensionID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM chart_extensions WHERE chart_id = ? AND extension_id = ?`,
		chartID, extensionID)
	if err != nil {
		return fmt.Errorf("delete chart extension: %w", err)
	}
	return nil
}

// GetExtensionsByChartIDs returns the extensions attached to each of the
// given charts, keyed by chart ID, in one batched query.
func (s *Store) GetExtensionsByChartIDs(ctx context.Context, chartIDs []string) (map[string][]*domain.Extension, error) {
	result := make(map[string][]*domain.Extension, len(chartIDs))
	if len(chartIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(chartIDs))
	for i, id := range chartIDs {
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT ce.chart_id, e.id, e.name, e.symbol
		FROM chart_extensions ce
		JOIN extensions e ON e.id = ce.extension_id
		WHERE ce.chart_id IN (`+placeholders(len(chartIDs))+`)
		ORDER BY e.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query extensions by chart ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chartID string
		var e domain.Extension
		if err := rows.Scan(&chartID, &e.ID, &e.Name, &e.Symbol); err != nil {
			return nil, fmt.Errorf("scan chart extension: %w", err)
		}
		result[chartID] = append(result[chartID], &e)
	}
	return result, rows.Err()
}
