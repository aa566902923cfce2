// Command enginedemo wires every component of the record-and-graph engine
// together against the in-memory fake KV: a few graph edges, a handful of
// spatial points, a one-window leaderboard, and a small ontology run
// through the tableau reasoner. It is a fixed smoke-test program, not an
// interactive shell.
package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/dolthub/recordgraph/fakekv"
	"github.com/dolthub/recordgraph/graph"
	"github.com/dolthub/recordgraph/index"
	"github.com/dolthub/recordgraph/indexstate"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/leaderboard"
	"github.com/dolthub/recordgraph/reasoner"
	"github.com/dolthub/recordgraph/spatial"
	"github.com/dolthub/recordgraph/subspace"
	"github.com/dolthub/recordgraph/val"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db := fakekv.New()

	if err := runGraph(ctx, db, logger); err != nil {
		log.Fatalf("graph demo: %v", err)
	}
	if err := runSpatial(ctx, db, logger); err != nil {
		log.Fatalf("spatial demo: %v", err)
	}
	if err := runLeaderboard(ctx, db, logger); err != nil {
		log.Fatalf("leaderboard demo: %v", err)
	}
	runReasoner(logger)
}

func runGraph(ctx context.Context, db *fakekv.DB, logger *zap.Logger) error {
	states := indexstate.NewManager(subspace.New([]byte("demo/graph/state/")), logger)
	m := graph.NewMaintainer("follows", subspace.New([]byte("demo/graph/idx/")), graph.Hexastore, false, []string{"since"}, states, logger)

	_, err := db.WithTransaction(ctx, func(ctx context.Context, txn kv.Transaction) (any, error) {
		if err := states.Enable(ctx, txn, "follows"); err != nil {
			return nil, err
		}
		if err := states.MakeReadable(ctx, txn, "follows"); err != nil {
			return nil, err
		}
		edges := []index.MapRecord{
			{TypeName: "edge", Key: val.Tuple{int64(1)}, Fields: map[string]any{"from": "alice", "predicate": "follows", "to": "bob", "since": int64(2019)}},
			{TypeName: "edge", Key: val.Tuple{int64(2)}, Fields: map[string]any{"from": "bob", "predicate": "follows", "to": "carol", "since": int64(2021)}},
		}
		for _, e := range edges {
			if err := m.UpdateIndex(ctx, txn, nil, e); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	_, err = db.WithTransaction(ctx, func(ctx context.Context, txn kv.Transaction) (any, error) {
		it, _, err := m.ScanEdges(ctx, txn, graph.Pattern{From: graph.BindValue("alice")}, nil)
		if err != nil {
			return nil, err
		}
		defer it.Close()
		for {
			res, ok, err := it.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			fmt.Printf("graph: %v -[%v]-> %v (since %v)\n", res.From, res.Predicate, res.To, res.StoredProps["since"])
		}
		return nil, nil
	})
	return err
}

func runSpatial(ctx context.Context, db *fakekv.DB, logger *zap.Logger) error {
	states := indexstate.NewManager(subspace.New([]byte("demo/spatial/state/")), logger)
	m := spatial.NewMaintainer("places", subspace.New([]byte("demo/spatial/idx/")), spatial.S2, 18, "lat", "lon", states, logger)

	cityHall := spatial.Point{Lat: 37.7793, Lon: -122.4193}
	_, err := db.WithTransaction(ctx, func(ctx context.Context, txn kv.Transaction) (any, error) {
		if err := states.Enable(ctx, txn, "places"); err != nil {
			return nil, err
		}
		if err := states.MakeReadable(ctx, txn, "places"); err != nil {
			return nil, err
		}
		points := []index.MapRecord{
			{TypeName: "place", Key: val.Tuple{"city-hall"}, Fields: map[string]any{"lat": cityHall.Lat, "lon": cityHall.Lon}},
			{TypeName: "place", Key: val.Tuple{"ferry-building"}, Fields: map[string]any{"lat": 37.7955, "lon": -122.3937}},
			{TypeName: "place", Key: val.Tuple{"oakland"}, Fields: map[string]any{"lat": 37.8044, "lon": -122.2712}},
		}
		for _, p := range points {
			if err := m.UpdateIndex(ctx, txn, nil, p); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	_, err = db.WithTransaction(ctx, func(ctx context.Context, txn kv.Transaction) (any, error) {
		res, err := m.ExecuteKNN(ctx, txn, cityHall, 2, 0.2, 10, 2.0)
		if err != nil {
			return nil, err
		}
		for _, h := range res.Hits {
			fmt.Printf("spatial: %v at %.0fm\n", h.PK, h.DistanceMeters)
		}
		return nil, nil
	})
	return err
}

func runLeaderboard(ctx context.Context, db *fakekv.DB, logger *zap.Logger) error {
	states := indexstate.NewManager(subspace.New([]byte("demo/leaderboard/state/")), logger)
	m, err := leaderboard.NewMaintainer("weekly", subspace.New([]byte("demo/leaderboard/idx/")), "score", "ts", 604800, states, logger)
	if err != nil {
		return err
	}

	_, err = db.WithTransaction(ctx, func(ctx context.Context, txn kv.Transaction) (any, error) {
		if err := states.Enable(ctx, txn, "weekly"); err != nil {
			return nil, err
		}
		if err := states.MakeReadable(ctx, txn, "weekly"); err != nil {
			return nil, err
		}
		scores := []index.MapRecord{
			{TypeName: "player", Key: val.Tuple{"alice"}, Fields: map[string]any{"score": 120.0, "ts": int64(1000)}},
			{TypeName: "player", Key: val.Tuple{"bob"}, Fields: map[string]any{"score": 95.0, "ts": int64(1000)}},
			{TypeName: "player", Key: val.Tuple{"carol"}, Fields: map[string]any{"score": 150.0, "ts": int64(1000)}},
		}
		for _, s := range scores {
			if err := m.UpdateIndex(ctx, txn, nil, s); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	_, err = db.WithTransaction(ctx, func(ctx context.Context, txn kv.Transaction) (any, error) {
		top, err := m.GetTopK(ctx, txn, m.WindowID(1000), 10)
		if err != nil {
			return nil, err
		}
		for _, e := range top {
			fmt.Printf("leaderboard: #%d %v (%.0f)\n", e.Rank, e.PK, e.Score)
		}
		return nil, nil
	})
	return err
}

func runReasoner(logger *zap.Logger) {
	dog, mammal, animal, plant := reasoner.Atomic{Name: "Dog"}, reasoner.Atomic{Name: "Mammal"}, reasoner.Atomic{Name: "Animal"}, reasoner.Atomic{Name: "Plant"}
	onto := &reasoner.Ontology{
		TBox: []reasoner.Axiom{
			{Sub: dog, Super: mammal},
			{Sub: mammal, Super: animal},
			{Sub: reasoner.And{Left: animal, Right: plant}, Super: reasoner.Bottom{}},
		},
	}
	cfg := reasoner.Config{MaxExpansionSteps: 2000}

	classifier, err := reasoner.NewClassifier(onto, cfg, 64, logger)
	if err != nil {
		log.Fatalf("build classifier: %v", err)
	}
	taxonomy := classifier.Classify([]string{"Dog", "Mammal", "Animal", "Plant"})
	fmt.Printf("reasoner: Dog's parents = %v\n", taxonomy["Dog"].Parents)

	r := reasoner.Satisfiable(onto, reasoner.And{Left: dog, Right: plant}, cfg, logger)
	fmt.Printf("reasoner: Dog ⊓ Plant is %s\n", r.Status)
}
