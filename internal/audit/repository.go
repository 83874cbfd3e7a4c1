package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*PagedEntries, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, e *Entry) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO audit_log (id, actor_id, action_type, entity_type, entity_id, description, created_at)
		VALUES (:id, :actor_id, :action_type, :entity_type, :entity_id, :description, :created_at)`, e)
	if err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

func (r *postgresRepository) List(ctx context.Context, filter Filter) (*PagedEntries, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 200 {
		filter.PageSize = 50
	}

	clauses := []string{"1=1"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ActorID != nil {
		clauses = append(clauses, "actor_id = "+arg(*filter.ActorID))
	}
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type = "+arg(filter.EntityType))
	}
	if filter.EntityID != nil {
		clauses = append(clauses, "entity_id = "+arg(*filter.EntityID))
	}
	if filter.FromDate != nil {
		clauses = append(clauses, "created_at >= "+arg(*filter.FromDate))
	}
	if filter.ToDate != nil {
		clauses = append(clauses, "created_at <= "+arg(*filter.ToDate))
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_log `+where, args...); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	query := `
		SELECT id, actor_id, action_type, entity_type, entity_id, description, created_at
		FROM audit_log ` + where + `
		ORDER BY created_at DESC
		LIMIT ` + arg(filter.PageSize) + ` OFFSET ` + arg((filter.Page-1)*filter.PageSize)

	items := []Entry{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	return &PagedEntries{
		Items:      items,
		TotalItems: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}
