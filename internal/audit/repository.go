package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WindowParams describes one page of the timeline query.
type WindowParams struct {
	From   time.Time
	To     time.Time
	Actor  string
	Entity string
	Action string
	Offset int
	Limit  int
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	TimelineWindow(ctx context.Context, params WindowParams) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, params WindowParams) ([]TimelineRow, error)
}

// Repository reads audit_logs joined with the actor's username.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const timelineSelect = `SELECT a.occurred_at, a.actor_id, COALESCE(u.username, ''), a.action, a.entity, a.entity_id, COALESCE(a.meta::text, '')
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id
WHERE a.occurred_at >= $1 AND a.occurred_at < $2
  AND ($3 = '' OR u.username ILIKE '%' || $3 || '%')
  AND ($4 = '' OR a.entity = $4)
  AND ($5 = '' OR a.action ILIKE '%' || $5 || '%')
ORDER BY a.occurred_at DESC, a.id DESC`

// TimelineWindow returns one page of entries, newest first.
func (r *Repository) TimelineWindow(ctx context.Context, params WindowParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineSelect+` OFFSET $6 LIMIT $7`,
		params.From, params.To, params.Actor, params.Entity, params.Action, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// TimelineAll returns every matching entry without paging, for exports.
func (r *Repository) TimelineAll(ctx context.Context, params WindowParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineSelect,
		params.From, params.To, params.Actor, params.Entity, params.Action)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRows(rows rowScanner) ([]TimelineRow, error) {
	result := []TimelineRow{}
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.ActorID, &row.ActorName, &row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
