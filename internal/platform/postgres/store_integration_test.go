//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/platform/postgres"
	"github.com/phrazzld/puris-api/internal/store"
	"github.com/phrazzld/puris-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLifecycleIntegration(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		requests := postgres.NewPostgresRequestStore(tx, nil)
		responses := postgres.NewPostgresResponseStore(tx, nil)

		req, err := domain.NewRequest(testPartnerBPNL, json.RawMessage(`{"materials":[]}`))
		require.NoError(t, err)
		require.NoError(t, requests.Create(ctx, req))

		locked, err := requests.GetForUpdate(ctx, req.ID)
		require.NoError(t, err)
		require.NoError(t, locked.TransitionTo(domain.RequestStateProcessing))
		require.NoError(t, requests.UpdateState(ctx, locked, 1))

		// A writer holding the old version loses.
		stale := *req
		require.NoError(t, stale.TransitionTo(domain.RequestStateProcessing))
		assert.ErrorIs(t, requests.UpdateState(ctx, &stale, 1), store.ErrUpdateFailed)

		msg, err := domain.NewMessage(req.ID, domain.MessageKindResponse, json.RawMessage(`{"stocks":[]}`))
		require.NoError(t, err)
		require.NoError(t, responses.SaveMessage(ctx, msg))
		require.NoError(t, responses.SaveReportedProductStocks(ctx, msg.ID,
			[]*domain.ReportedProductStock{testStock()}))

		again, err := domain.NewMessage(req.ID, domain.MessageKindResponse, json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.ErrorIs(t, responses.SaveMessage(ctx, again), store.ErrResponseExists)

		stocks, err := responses.ListReportedProductStocks(ctx, testPartnerBPNL)
		require.NoError(t, err)
		require.NotEmpty(t, stocks)
		assert.Equal(t, "CO-1", *stocks[0].CustomerOrderNumber)

		processing, err := requests.ListByState(ctx, domain.RequestStateProcessing, 0, 50)
		require.NoError(t, err)
		found := false
		for _, r := range processing {
			found = found || r.ID == req.ID
		}
		assert.True(t, found)

		_, err = requests.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrRequestNotFound)
	})
}
