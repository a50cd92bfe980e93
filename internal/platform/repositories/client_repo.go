package repositories

import (
	"context"

	"controlhub/internal/platform/database"
	"controlhub/internal/platform/models"
)

type ClientRepository struct {
	db *database.DB
}

func NewClientRepository(db *database.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, c *models.Client) error {
	query, args, err := r.db.Builder().
		Insert("clients").
		Columns("id", "name", "created_at").
		Values(c.ID, c.Name, c.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *ClientRepository) List(ctx context.Context) ([]*models.Client, error) {
	query, args, err := r.db.Builder().
		Select("id", "name", "created_at").
		From("clients").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []*models.Client{}
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, &c)
	}
	return clients, rows.Err()
}
