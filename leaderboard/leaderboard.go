// Package leaderboard implements the time-windowed, score-ordered
// leaderboard maintainer (component J): records are bucketed into fixed
// windows and ordered within each window by score descending, tie-broken
// by primary key ascending, using the tuple codec's sign-preserving
// float encoding to store the negated score as the ordering key.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/dolthub/recordgraph/index"
	"github.com/dolthub/recordgraph/indexstate"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/subspace"
	"github.com/dolthub/recordgraph/val"
)

// Maintainer keeps a score-ordered index per time window.
type Maintainer struct {
	IndexName      string
	Sub            subspace.Subspace
	ScoreField     string
	TimestampField string
	WindowSeconds  int64
	States         *indexstate.Manager
	Log            *zap.Logger

	entries subspace.Subspace
	windows subspace.Subspace
}

// NewMaintainer constructs a ready-to-register leaderboard maintainer.
// windowSeconds must be positive; a record's window is
// floor(timestamp / windowSeconds).
func NewMaintainer(name string, sub subspace.Subspace, scoreField, timestampField string, windowSeconds int64, states *indexstate.Manager, log *zap.Logger) (*Maintainer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if windowSeconds <= 0 {
		return nil, fmt.Errorf("leaderboard %q: windowSeconds must be positive", name)
	}
	entries, err := sub.Sub("e")
	if err != nil {
		return nil, err
	}
	windows, err := sub.Sub("w")
	if err != nil {
		return nil, err
	}
	return &Maintainer{
		IndexName:      name,
		Sub:            sub,
		ScoreField:     scoreField,
		TimestampField: timestampField,
		WindowSeconds:  windowSeconds,
		States:         states,
		Log:            log,
		entries:        entries,
		windows:        windows,
	}, nil
}

// WindowID returns the window a given timestamp falls into, so callers
// can compute the argument GetTopK/GetRank/GetAvailableWindows expect
// without duplicating the bucketing rule.
func (m *Maintainer) WindowID(timestamp int64) int64 {
	if timestamp < 0 {
		// floor division toward negative infinity for pre-epoch timestamps.
		return -(((-timestamp) + m.WindowSeconds - 1) / m.WindowSeconds)
	}
	return timestamp / m.WindowSeconds
}

type entry struct {
	window int64
	score  float64
	pk     val.Tuple
}

func (m *Maintainer) entryOf(r index.Record) (entry, bool) {
	scoreV, ok := r.Field(m.ScoreField)
	if !ok {
		return entry{}, false
	}
	tsV, ok := r.Field(m.TimestampField)
	if !ok {
		return entry{}, false
	}
	score, ok := toFloat(scoreV)
	if !ok {
		return entry{}, false
	}
	ts, ok := toInt(tsV)
	if !ok {
		return entry{}, false
	}
	return entry{window: m.WindowID(ts), score: score, pk: r.PK()}, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	default:
		return 0, false
	}
}

func (m *Maintainer) entryKey(e entry) ([]byte, error) {
	return m.entries.Pack(val.Tuple{e.window, -e.score, e.pk})
}

func (m *Maintainer) windowCountKey(window int64) ([]byte, error) {
	return m.windows.Pack(val.Tuple{window})
}

// UpdateIndex removes oldRecord's leaderboard entry (if any) and writes
// newRecord's, short-circuiting when window and score are unchanged.
func (m *Maintainer) UpdateIndex(ctx context.Context, txn kv.Transaction, oldRecord, newRecord index.Record) error {
	if err := m.requireWritable(ctx, txn); err != nil {
		return err
	}

	var oldE, newE entry
	var haveOld, haveNew bool
	if oldRecord != nil {
		oldE, haveOld = m.entryOf(oldRecord)
	}
	if newRecord != nil {
		newE, haveNew = m.entryOf(newRecord)
	}

	if haveOld && haveNew && oldE.window == newE.window && oldE.score == newE.score {
		return nil
	}
	if haveOld {
		key, err := m.entryKey(oldE)
		if err != nil {
			return err
		}
		txn.Clear(key)
		if err := m.adjustWindowCount(ctx, txn, oldE.window, -1); err != nil {
			return err
		}
	}
	if haveNew {
		key, err := m.entryKey(newE)
		if err != nil {
			return err
		}
		txn.Set(key, []byte{})
		if err := m.adjustWindowCount(ctx, txn, newE.window, 1); err != nil {
			return err
		}
	}
	fields := []zap.Field{zap.String("index", m.IndexName), zap.Bool("hadOld", haveOld), zap.Bool("hasNew", haveNew)}
	if haveNew {
		windowStart := time.Unix(newE.window*m.WindowSeconds, 0)
		fields = append(fields, zap.String("windowAge", humanize.Time(windowStart)))
	}
	m.Log.Debug("leaderboard index updated", fields...)
	return nil
}

// ScanItem writes newRecord's entry unconditionally, for index backfill.
func (m *Maintainer) ScanItem(ctx context.Context, txn kv.Transaction, record index.Record) error {
	if err := m.requireWritable(ctx, txn); err != nil {
		return err
	}
	e, ok := m.entryOf(record)
	if !ok {
		return nil
	}
	key, err := m.entryKey(e)
	if err != nil {
		return err
	}
	txn.Set(key, []byte{})
	return m.adjustWindowCount(ctx, txn, e.window, 1)
}

func (m *Maintainer) adjustWindowCount(ctx context.Context, txn kv.Transaction, window int64, delta int64) error {
	key, err := m.windowCountKey(window)
	if err != nil {
		return err
	}
	raw, ok, err := txn.Get(ctx, key)
	if err != nil {
		return err
	}
	var count int64
	if ok {
		t, err := val.Unpack(raw)
		if err != nil {
			return err
		}
		count = t[0].(int64)
	}
	count += delta
	if count <= 0 {
		txn.Clear(key)
		return nil
	}
	packed, err := val.Pack(val.Tuple{count})
	if err != nil {
		return err
	}
	txn.Set(key, packed)
	return nil
}

func (m *Maintainer) requireWritable(ctx context.Context, txn kv.Transaction) error {
	if m.States == nil {
		return nil
	}
	if err := m.States.RequireWritable(ctx, txn, m.IndexName); err != nil {
		return fmt.Errorf("leaderboard maintainer %q: %w", m.IndexName, err)
	}
	return nil
}

func (m *Maintainer) requireReadable(ctx context.Context, txn kv.Transaction) error {
	if m.States == nil {
		return nil
	}
	if err := m.States.RequireReadable(ctx, txn, m.IndexName); err != nil {
		return fmt.Errorf("leaderboard maintainer %q: %w", m.IndexName, err)
	}
	return nil
}

// Entry is one ranked leaderboard result.
type Entry struct {
	PK    val.Tuple
	Score float64
	Rank  int // 1-indexed
}

// GetTopK returns the k highest-scoring entries in window, in descending
// score order, ties broken by ascending PK.
func (m *Maintainer) GetTopK(ctx context.Context, txn kv.Transaction, window int64, k int) ([]Entry, error) {
	if err := m.requireReadable(ctx, txn); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	begin, end, err := m.entries.PrefixRange(val.Tuple{window})
	if err != nil {
		return nil, err
	}
	it, err := txn.GetRange(ctx, begin, end, false)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Entry
	rank := 0
	for len(out) < k {
		kvp, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tup, err := m.entries.Unpack(kvp.Key)
		if err != nil {
			return nil, err
		}
		rank++
		negScore := tup[1].(float64)
		pk, ok := tup[2].(val.Tuple)
		if !ok {
			pk = val.Tuple{tup[2]}
		}
		out = append(out, Entry{PK: pk, Score: -negScore, Rank: rank})
	}
	return out, nil
}

// GetRank returns the 1-indexed rank of pk within window, or ok=false if
// pk has no entry in that window. This scans entries preceding pk's
// position; the index does not maintain order-statistics counters.
func (m *Maintainer) GetRank(ctx context.Context, txn kv.Transaction, window int64, pk val.Tuple) (rank int, score float64, ok bool, err error) {
	if err := m.requireReadable(ctx, txn); err != nil {
		return 0, 0, false, err
	}
	begin, end, err := m.entries.PrefixRange(val.Tuple{window})
	if err != nil {
		return 0, 0, false, err
	}
	it, err := txn.GetRange(ctx, begin, end, false)
	if err != nil {
		return 0, 0, false, err
	}
	defer it.Close()

	pos := 0
	for {
		kvp, more, iterErr := it.Next(ctx)
		if iterErr != nil {
			return 0, 0, false, iterErr
		}
		if !more {
			return 0, 0, false, nil
		}
		pos++
		tup, unpackErr := m.entries.Unpack(kvp.Key)
		if unpackErr != nil {
			return 0, 0, false, unpackErr
		}
		candidate, isTuple := tup[2].(val.Tuple)
		if !isTuple {
			candidate = val.Tuple{tup[2]}
		}
		if tuplesEqual(candidate, pk) {
			return pos, -tup[1].(float64), true, nil
		}
	}
}

func tuplesEqual(a, b val.Tuple) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetAvailableWindows returns every window ID with at least one entry,
// ascending.
func (m *Maintainer) GetAvailableWindows(ctx context.Context, txn kv.Transaction) ([]int64, error) {
	if err := m.requireReadable(ctx, txn); err != nil {
		return nil, err
	}
	begin, end := m.windows.Range()
	it, err := txn.GetRange(ctx, begin, end, false)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []int64
	for {
		kvp, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tup, err := m.windows.Unpack(kvp.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, tup[0].(int64))
	}
	return out, nil
}
