package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTransaction(t *testing.T) {
	t.Parallel()

	fnErr := errors.New("function failed")

	tests := []struct {
		name      string
		setup     func(mock sqlmock.Sqlmock)
		fn        TxFn
		wantErr   bool
		wantIs    []error
		wantInMsg string
	}{
		{
			name: "commits on success",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit()
			},
			fn: func(ctx context.Context, tx *sql.Tx) error { return nil },
		},
		{
			name: "rolls back and returns function error unchanged",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			fn:      func(ctx context.Context, tx *sql.Tx) error { return fnErr },
			wantErr: true,
			wantIs:  []error{fnErr},
		},
		{
			name: "begin failure is a storage fault",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
			},
			fn:        func(ctx context.Context, tx *sql.Tx) error { return nil },
			wantErr:   true,
			wantIs:    []error{ErrStorage},
			wantInMsg: "failed to begin transaction",
		},
		{
			name: "commit failure is a storage fault",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit().WillReturnError(errors.New("commit failed"))
			},
			fn:      func(ctx context.Context, tx *sql.Tx) error { return nil },
			wantErr: true,
			wantIs:  []error{ErrStorage, ErrTransactionFailed},
		},
		{
			name: "rollback failure keeps original error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback().WillReturnError(errors.New("rollback failed"))
			},
			fn:        func(ctx context.Context, tx *sql.Tx) error { return fnErr },
			wantErr:   true,
			wantIs:    []error{fnErr},
			wantInMsg: "rollback failed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			tc.setup(mock)
			err = RunInTransaction(context.Background(), db, tc.fn)

			if !tc.wantErr {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				for _, target := range tc.wantIs {
					assert.ErrorIs(t, err, target)
				}
				if tc.wantInMsg != "" {
					assert.Contains(t, err.Error(), tc.wantInMsg)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunInTransaction_Panic(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			panic("test panic")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreErrors(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFoundError(ErrRequestNotFound))
	assert.True(t, IsNotFoundError(ErrMessageNotFound))
	assert.False(t, IsNotFoundError(ErrResponseExists))
	assert.True(t, IsDuplicateError(ErrResponseExists))
	assert.False(t, IsNotFoundError(nil))

	cause := errors.New("boom")
	storeErr := NewStoreError("request", "transition", "failed to lock row", cause)
	assert.Equal(t, "transition operation on request failed: failed to lock row: boom", storeErr.Error())
	assert.ErrorIs(t, storeErr, cause)

	var target *StoreError
	assert.True(t, errors.As(error(storeErr), &target))
	assert.Equal(t, "request", target.Entity)
}
