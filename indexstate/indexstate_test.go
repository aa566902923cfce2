package indexstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/recordgraph/errs"
	"github.com/dolthub/recordgraph/fakekv"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/subspace"
)

func withTxn(t *testing.T, db *fakekv.DB, f func(ctx context.Context, txn kv.Transaction) error) {
	t.Helper()
	_, err := db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		return nil, f(ctx, txn)
	})
	require.NoError(t, err)
}

func TestNewIndexStartsDisabled(t *testing.T) {
	db := fakekv.New()
	m := NewManager(subspace.New([]byte("s")), nil)
	withTxn(t, db, func(ctx context.Context, txn kv.Transaction) error {
		st, err := m.Get(ctx, txn, "byName")
		require.NoError(t, err)
		assert.Equal(t, Disabled, st)
		return nil
	})
}

func TestValidLifecycle(t *testing.T) {
	db := fakekv.New()
	m := NewManager(subspace.New([]byte("s")), nil)
	withTxn(t, db, func(ctx context.Context, txn kv.Transaction) error {
		require.NoError(t, m.Enable(ctx, txn, "idx"))
		st, err := m.Get(ctx, txn, "idx")
		require.NoError(t, err)
		assert.Equal(t, WriteOnly, st)

		require.NoError(t, m.MakeReadable(ctx, txn, "idx"))
		st, err = m.Get(ctx, txn, "idx")
		require.NoError(t, err)
		assert.Equal(t, Readable, st)

		// idempotent at readable
		require.NoError(t, m.MakeReadable(ctx, txn, "idx"))
		return nil
	})
}

func TestInvalidTransitions(t *testing.T) {
	db := fakekv.New()
	m := NewManager(subspace.New([]byte("s")), nil)
	withTxn(t, db, func(ctx context.Context, txn kv.Transaction) error {
		err := m.MakeReadable(ctx, txn, "idx")
		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
		return nil
	})
}

func TestReadsRefuseNonReadable(t *testing.T) {
	db := fakekv.New()
	m := NewManager(subspace.New([]byte("s")), nil)
	withTxn(t, db, func(ctx context.Context, txn kv.Transaction) error {
		require.Error(t, m.RequireReadable(ctx, txn, "idx"))
		require.NoError(t, m.Enable(ctx, txn, "idx"))
		require.NoError(t, m.RequireWritable(ctx, txn, "idx"))
		require.Error(t, m.RequireReadable(ctx, txn, "idx"))
		require.NoError(t, m.MakeReadable(ctx, txn, "idx"))
		require.NoError(t, m.RequireReadable(ctx, txn, "idx"))
		return nil
	})
}
