package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertOrder = `
INSERT INTO orders (id, user_id, checkout_url, total_amount, currency_code, status, order_data)
VALUES ($1, $2, $3, $4, $5, $6::order_status, $7)
RETURNING id, user_id, checkout_url, total_amount, currency_code, status::text, order_data, created_at, updated_at
`

type InsertOrderParams struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	CheckoutUrl  string         `json:"checkout_url"`
	TotalAmount  pgtype.Numeric `json:"total_amount"`
	CurrencyCode string         `json:"currency_code"`
	Status       OrderStatus    `json:"status"`
	OrderData    []byte         `json:"order_data"`
}

func (q *Queries) InsertOrder(c context.Context, arg InsertOrderParams) (Order, error) {
	row := q.db.QueryRow(c, insertOrder,
		arg.ID,
		arg.UserID,
		arg.CheckoutUrl,
		arg.TotalAmount,
		arg.CurrencyCode,
		string(arg.Status),
		arg.OrderData,
	)
	var i Order
	var status string
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CheckoutUrl,
		&i.TotalAmount,
		&i.CurrencyCode,
		&status,
		&i.OrderData,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	i.Status = OrderStatus(status)
	return i, err
}

const findOrdersByUserId = `
SELECT id, user_id, checkout_url, total_amount, currency_code, status::text, order_data, created_at, updated_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) FindOrdersByUserId(c context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(c, findOrdersByUserId, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		var i Order
		var status string
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.CheckoutUrl,
			&i.TotalAmount,
			&i.CurrencyCode,
			&status,
			&i.OrderData,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		i.Status = OrderStatus(status)
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
