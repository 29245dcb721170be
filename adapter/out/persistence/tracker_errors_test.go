package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"tracker_server/core/port/out"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	boom := errors.New("boom")
	fk := &pgconn.PgError{Code: "23503"}
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, out.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), out.ErrNotFound},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, out.ErrDuplicate},
		{"pq unique", &pq.Error{Code: "23505"}, out.ErrDuplicate},
		{"pgx fk violation", fk, fk},
		{"other", boom, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
