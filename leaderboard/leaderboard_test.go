package leaderboard

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/recordgraph/fakekv"
	"github.com/dolthub/recordgraph/index"
	"github.com/dolthub/recordgraph/indexstate"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/subspace"
	"github.com/dolthub/recordgraph/val"
)

func newReadyMaintainer(t *testing.T, windowSeconds int64) (*fakekv.DB, *Maintainer) {
	t.Helper()
	db := fakekv.New()
	states := indexstate.NewManager(subspace.New([]byte("lb-test/state/")), nil)
	m, err := NewMaintainer("scores", subspace.New([]byte("lb-test/idx/")), "score", "ts", windowSeconds, states, nil)
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		if err := states.Enable(ctx, txn, "scores"); err != nil {
			return nil, err
		}
		return nil, states.MakeReadable(ctx, txn, "scores")
	})
	require.NoError(t, err)
	return db, m
}

func rec(pk int64, score float64, ts int64) index.Record {
	return index.MapRecord{
		TypeName: "player",
		Key:      val.Tuple{pk},
		Fields:   map[string]any{"score": score, "ts": ts},
	}
}

// Scenario 5 / P11: entries are ordered by descending score within a
// window, ties broken by ascending PK.
func TestGetTopKOrdersByDescendingScore(t *testing.T) {
	db, m := newReadyMaintainer(t, 3600)
	_, err := db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		for pk, score := range map[int64]float64{1: 50, 2: 90, 3: 70, 4: 90} {
			if err := m.UpdateIndex(ctx, txn, nil, rec(pk, score, 1000)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		top, err := m.GetTopK(ctx, txn, m.WindowID(1000), 10)
		if err != nil {
			return nil, err
		}
		require.Len(t, top, 4)
		assert.Equal(t, val.Tuple{int64(2)}, top[0].PK) // score 90, lower pk wins tie
		assert.Equal(t, val.Tuple{int64(4)}, top[1].PK) // score 90, pk tiebreak
		assert.Equal(t, val.Tuple{int64(3)}, top[2].PK) // score 70
		assert.Equal(t, val.Tuple{int64(1)}, top[3].PK) // score 50
		assert.Equal(t, 90.0, top[0].Score)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestGetRankFindsPosition(t *testing.T) {
	db, m := newReadyMaintainer(t, 3600)
	_, err := db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		for pk, score := range map[int64]float64{1: 10, 2: 20, 3: 30} {
			if err := m.UpdateIndex(ctx, txn, nil, rec(pk, score, 5)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		rank, score, ok, err := m.GetRank(ctx, txn, m.WindowID(5), val.Tuple{int64(2)})
		if err != nil {
			return nil, err
		}
		require.True(t, ok)
		assert.Equal(t, 2, rank) // 30 (rank 1), 20 (rank 2), 10 (rank 3)
		assert.Equal(t, 20.0, score)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestScoreUpdateMovesEntryWithinWindow(t *testing.T) {
	db, m := newReadyMaintainer(t, 3600)
	_, err := db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		return nil, m.UpdateIndex(ctx, txn, nil, rec(1, 10, 100))
	})
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		return nil, m.UpdateIndex(ctx, txn, rec(1, 10, 100), rec(1, 99, 100))
	})
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		top, err := m.GetTopK(ctx, txn, m.WindowID(100), 10)
		if err != nil {
			return nil, err
		}
		require.Len(t, top, 1)
		assert.Equal(t, 99.0, top[0].Score)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestWindowsPartitionEntries(t *testing.T) {
	db, m := newReadyMaintainer(t, 100)
	_, err := db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		if err := m.UpdateIndex(ctx, txn, nil, rec(1, 5, 50)); err != nil {
			return nil, err
		}
		return nil, m.UpdateIndex(ctx, txn, nil, rec(2, 5, 250))
	})
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		windows, err := m.GetAvailableWindows(ctx, txn)
		if err != nil {
			return nil, err
		}
		assert.ElementsMatch(t, []int64{0, 2}, windows)

		w0, err := m.GetTopK(ctx, txn, 0, 10)
		if err != nil {
			return nil, err
		}
		require.Len(t, w0, 1)
		assert.Equal(t, val.Tuple{int64(1)}, w0[0].PK)
		return nil, nil
	})
	require.NoError(t, err)
}

// Distinct UUID-keyed players collide as readily as sequential integer
// PKs would; this just exercises that a realistic key domain works end
// to end without relying on the tuple codec's int64 ordering.
func TestUUIDKeyedPlayersRankByScore(t *testing.T) {
	db, m := newReadyMaintainer(t, 3600)
	pks := make([]string, 5)
	for i := range pks {
		pks[i] = uuid.NewString()
	}

	_, err := db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		for i, pk := range pks {
			r := index.MapRecord{
				TypeName: "player",
				Key:      val.Tuple{pk},
				Fields:   map[string]any{"score": float64(i * 10), "ts": int64(1000)},
			}
			if err := m.UpdateIndex(ctx, txn, nil, r); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		top, err := m.GetTopK(ctx, txn, m.WindowID(1000), 10)
		if err != nil {
			return nil, err
		}
		require.Len(t, top, len(pks))
		assert.Equal(t, 40.0, top[0].Score)
		assert.Equal(t, val.Tuple{pks[4]}, top[0].PK)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestRemovalClearsWindowWhenEmpty(t *testing.T) {
	db, m := newReadyMaintainer(t, 100)
	_, err := db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		return nil, m.UpdateIndex(ctx, txn, nil, rec(1, 5, 50))
	})
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		return nil, m.UpdateIndex(ctx, txn, rec(1, 5, 50), nil)
	})
	require.NoError(t, err)

	_, err = db.WithTransaction(context.Background(), func(ctx context.Context, txn kv.Transaction) (any, error) {
		windows, err := m.GetAvailableWindows(ctx, txn)
		if err != nil {
			return nil, err
		}
		assert.Empty(t, windows)
		return nil, nil
	})
	require.NoError(t, err)
}
