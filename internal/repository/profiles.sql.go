package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const findProfileByUserId = `
SELECT user_id, phone_number, shopify_customer_id, created_at, updated_at
FROM profiles
WHERE user_id = $1
`

func (q *Queries) FindProfileByUserId(c context.Context, userID uuid.UUID) (Profile, error) {
	row := q.db.QueryRow(c, findProfileByUserId, userID)
	var i Profile
	err := row.Scan(
		&i.UserID,
		&i.PhoneNumber,
		&i.ShopifyCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertProfilePhoneNumber = `
INSERT INTO profiles (user_id, phone_number)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET phone_number = EXCLUDED.phone_number, updated_at = NOW()
RETURNING user_id, phone_number, shopify_customer_id, created_at, updated_at
`

type UpsertProfilePhoneNumberParams struct {
	UserID      uuid.UUID   `json:"user_id"`
	PhoneNumber pgtype.Text `json:"phone_number"`
}

func (q *Queries) UpsertProfilePhoneNumber(
	c context.Context,
	arg UpsertProfilePhoneNumberParams,
) (Profile, error) {
	row := q.db.QueryRow(c, upsertProfilePhoneNumber, arg.UserID, arg.PhoneNumber)
	var i Profile
	err := row.Scan(
		&i.UserID,
		&i.PhoneNumber,
		&i.ShopifyCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
