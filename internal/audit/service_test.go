package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows       []TimelineRow
	lastWindow WindowParams
}

func (s *stubRepo) TimelineWindow(_ context.Context, params WindowParams) ([]TimelineRow, error) {
	s.lastWindow = params
	end := params.Offset + params.Limit
	if params.Offset >= len(s.rows) {
		return []TimelineRow{}, nil
	}
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[params.Offset:end], nil
}

func (s *stubRepo) TimelineAll(_ context.Context, _ WindowParams) ([]TimelineRow, error) {
	return s.rows, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			ActorID:  1,
			Action:   "inventory:adjust",
			Entity:   "inventory_log",
			EntityID: "42",
		}
	}
	return rows
}

func TestTimelineReportsNextPage(t *testing.T) {
	repo := &stubRepo{rows: makeRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	require.Equal(t, 21, repo.lastWindow.Limit)
}

func TestTimelineLastPageHasNoNext(t *testing.T) {
	repo := &stubRepo{rows: makeRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{rows: makeRows(80)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
	require.Equal(t, 50, result.Paging.PageSize)
}

func TestWriteCSVIncludesHeaderAndRows(t *testing.T) {
	rows := []TimelineRow{
		{
			At:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			ActorID:   7,
			ActorName: "budi",
			Action:    "sales:checkout",
			Entity:    "transaction",
			EntityID:  "12",
			Meta:      `{"total":15000}`,
		},
	}
	out, err := WriteCSV(rows)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "occurred_at,actor_id,actor_name,action,entity,entity_id,meta", lines[0])
	require.Contains(t, lines[1], "2026-03-01T10:00:00Z")
	require.Contains(t, lines[1], "budi")
	require.Contains(t, lines[1], "sales:checkout")
}
