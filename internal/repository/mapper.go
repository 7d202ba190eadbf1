package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func NumericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Exp:              d.Exponent(),
		InfinityModifier: pgtype.Finite,
		Int:              d.Coefficient(),
		NaN:              false,
		Valid:            true,
	}
}

func DecimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func TextFromString(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func (o Order) Total() decimal.Decimal {
	return DecimalFromNumeric(o.TotalAmount)
}

func (p Profile) Phone() string {
	if !p.PhoneNumber.Valid {
		return ""
	}
	return p.PhoneNumber.String
}
