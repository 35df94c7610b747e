package resilience

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("boom")), true},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("boom")), "outer"), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"pg query canceled", &pgconn.PgError{Code: "57014"}, true},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"pg too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"io timeout string", errors.New("read tcp 10.0.0.1:5432: i/o timeout"), true},
		{"not found", cadastre.ErrNotFound, false},
		{"invalid query", cadastre.ErrInvalidQuery, false},
		{"plain error", errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	te := NewTransientError(inner)
	assert.Equal(t, "boom", te.Error())
	assert.True(t, errors.Is(te, inner))
}
