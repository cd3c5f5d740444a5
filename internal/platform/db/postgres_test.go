package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestConstraintViolations(t *testing.T) {
	fk := fmt.Errorf("delete user: %w", &pgconn.PgError{Code: "23503", ConstraintName: "sales_cashier_id_fkey"})
	require.True(t, IsForeignKeyViolation(fk))
	require.False(t, IsUniqueViolation(fk, ""))

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"}
	require.True(t, IsUniqueViolation(unique, "products_sku_key"))
	require.False(t, IsUniqueViolation(unique, "users_username_key"))
	require.False(t, IsForeignKeyViolation(unique))

	require.True(t, IsCheckViolation(&pgconn.PgError{Code: "23514"}))
	require.False(t, IsForeignKeyViolation(errors.New("boom")))
}
