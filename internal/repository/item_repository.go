package repository

import (
	"context"
	"database/sql"
	"errors"

	"rosegold/market-service/internal/models"

	"github.com/lib/pq"
)

// ErrNoItem is returned when a lookup matches no item row.
var ErrNoItem = errors.New("item not found")

type ItemRepository interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, itemID int64) (*models.Item, error)
	GetItemsForAccount(ctx context.Context, accountID int64) ([]models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	SetCategories(ctx context.Context, itemID int64, categories []int64) error
	DeleteItems(ctx context.Context, accountID int64, itemIDs []int64) (int64, error)
	SetAvailability(ctx context.Context, itemID int64, isAvailable, pickedUp bool) error
	InitializeTables() error
}

type itemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) ItemRepository {
	return &itemRepository{
		db: db,
	}
}

func (r *itemRepository) InitializeTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image1 TEXT NOT NULL DEFAULT '',
		image2 TEXT NOT NULL DEFAULT '',
		image3 TEXT NOT NULL DEFAULT '',
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		picked_up BOOLEAN NOT NULL DEFAULT FALSE,
		zipcode TEXT NOT NULL DEFAULT '',
		date_posted TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS item_categories (
		item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		category BIGINT NOT NULL,
		PRIMARY KEY (item_id, category)
	);

	CREATE INDEX IF NOT EXISTS idx_items_account ON items(account_id);
	`

	_, err := r.db.Exec(query)
	return err
}

func (r *itemRepository) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
	INSERT INTO items (account_id, name, description, image1, image2, image3, is_available, picked_up, zipcode)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, date_posted
	`

	err := r.db.QueryRowContext(ctx, query,
		item.AccountID, item.Name, item.Description,
		item.Image1, item.Image2, item.Image3,
		item.IsAvailable, item.PickedUp, item.Zipcode,
	).Scan(&item.ID, &item.DatePosted)
	if err != nil {
		return err
	}

	if len(item.Categories) > 0 {
		return r.SetCategories(ctx, item.ID, item.Categories)
	}
	return nil
}

func (r *itemRepository) GetItem(ctx context.Context, itemID int64) (*models.Item, error) {
	query := `
	SELECT id, account_id, name, description, image1, image2, image3, is_available, picked_up, zipcode, date_posted
	FROM items
	WHERE id = $1
	`

	var item models.Item
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&item.ID, &item.AccountID, &item.Name, &item.Description,
		&item.Image1, &item.Image2, &item.Image3,
		&item.IsAvailable, &item.PickedUp, &item.Zipcode, &item.DatePosted,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoItem
		}
		return nil, err
	}

	categories, err := r.categoriesFor(ctx, itemID)
	if err != nil {
		return nil, err
	}
	item.Categories = categories

	return &item, nil
}

func (r *itemRepository) GetItemsForAccount(ctx context.Context, accountID int64) ([]models.Item, error) {
	query := `
	SELECT id, account_id, name, description, image1, image2, image3, is_available, picked_up, zipcode, date_posted
	FROM items
	WHERE account_id = $1
	ORDER BY date_posted DESC
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		err := rows.Scan(
			&item.ID, &item.AccountID, &item.Name, &item.Description,
			&item.Image1, &item.Image2, &item.Image3,
			&item.IsAvailable, &item.PickedUp, &item.Zipcode, &item.DatePosted,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		categories, err := r.categoriesFor(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Categories = categories
	}

	return items, nil
}

func (r *itemRepository) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `
	UPDATE items
	SET name = $1, description = $2, image1 = $3, image2 = $4, image3 = $5,
	    is_available = $6, picked_up = $7, zipcode = $8
	WHERE id = $9 AND account_id = $10
	`

	result, err := r.db.ExecContext(ctx, query,
		item.Name, item.Description, item.Image1, item.Image2, item.Image3,
		item.IsAvailable, item.PickedUp, item.Zipcode, item.ID, item.AccountID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoItem
	}
	return nil
}

func (r *itemRepository) SetCategories(ctx context.Context, itemID int64, categories []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_categories WHERE item_id = $1`, itemID); err != nil {
		return err
	}

	for _, category := range categories {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO item_categories (item_id, category) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			itemID, category)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteItems removes only rows owned by accountID; ids belonging to someone
// else are silently skipped.
func (r *itemRepository) DeleteItems(ctx context.Context, accountID int64, itemIDs []int64) (int64, error) {
	query := `DELETE FROM items WHERE account_id = $1 AND id = ANY($2)`

	result, err := r.db.ExecContext(ctx, query, accountID, pq.Array(itemIDs))
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *itemRepository) SetAvailability(ctx context.Context, itemID int64, isAvailable, pickedUp bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET is_available = $1, picked_up = $2 WHERE id = $3`,
		isAvailable, pickedUp, itemID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoItem
	}
	return nil
}

func (r *itemRepository) categoriesFor(ctx context.Context, itemID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category FROM item_categories WHERE item_id = $1 ORDER BY category`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []int64
	for rows.Next() {
		var c int64
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}
