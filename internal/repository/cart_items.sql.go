package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const findCartItemsByUserId = `
SELECT id, user_id, variant_id, product_id, quantity, product_data, created_at, updated_at
FROM cart_items
WHERE user_id = $1
ORDER BY created_at, variant_id
`

func (q *Queries) FindCartItemsByUserId(c context.Context, userID uuid.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(c, findCartItemsByUserId, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CartItem{}
	for rows.Next() {
		var i CartItem
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.VariantID,
			&i.ProductID,
			&i.Quantity,
			&i.ProductData,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteCartItemsByUserId = `
DELETE FROM cart_items
WHERE user_id = $1
`

func (q *Queries) DeleteCartItemsByUserId(c context.Context, userID uuid.UUID) (int64, error) {
	result, err := q.db.Exec(c, deleteCartItemsByUserId, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

type InsertCartItemsParams struct {
	UserID      uuid.UUID `json:"user_id"`
	VariantID   string    `json:"variant_id"`
	ProductID   string    `json:"product_id"`
	Quantity    int32     `json:"quantity"`
	ProductData []byte    `json:"product_data"`
}

func (q *Queries) InsertCartItems(c context.Context, arg []InsertCartItemsParams) (int64, error) {
	return q.db.CopyFrom(
		c,
		pgx.Identifier{"cart_items"},
		[]string{"user_id", "variant_id", "product_id", "quantity", "product_data"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]interface{}, error) {
			return []interface{}{
				arg[i].UserID,
				arg[i].VariantID,
				arg[i].ProductID,
				arg[i].Quantity,
				arg[i].ProductData,
			}, nil
		}),
	)
}
