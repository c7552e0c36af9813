// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Key layout inside BadgerDB. Node records are JSON-encoded Node values;
// edge records are JSON-encoded neighbor maps (id -> relation).
const (
	nodeKeyPrefix = "kg:node:"
	edgeKeyPrefix = "kg:edge:"
	propKeyPrefix = "kg:prop:"
)

// BadgerConfig holds configuration for the embedded graph store.
type BadgerConfig struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode. Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for a persistent graph.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerKG is a KnowledgeGraph persisted in an embedded BadgerDB instance.
//
// # Description
//
// Stores nodes, properties, and adjacency as JSON values under prefixed
// keys. Lookup latency is in the ~100µs range, which keeps frontier
// expansion cheap relative to the LLM and reranker calls that dominate a
// hop. Suitable for knowledge bases built once at ingest time and read by
// many concurrent reasoning sessions.
//
// # Thread Safety
//
// All methods are safe for concurrent use; BadgerDB transactions provide
// isolation.
type BadgerKG struct {
	db *badger.DB
}

// OpenBadgerKG opens (creating if necessary) a graph store with the given
// configuration. The caller must Close it when done.
func OpenBadgerKG(cfg BadgerConfig) (*BadgerKG, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent graph store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create graph store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	return &BadgerKG{db: db}, nil
}

// Close releases the underlying database.
func (g *BadgerKG) Close() error {
	return g.db.Close()
}

// AddNode writes a node record and optional properties.
func (g *BadgerKG) AddNode(node Node, props map[string]string) error {
	if node.ID == "" {
		return errors.New("node id must not be empty")
	}
	node.Relation = ""
	nodeBytes, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.ID, err)
	}
	return g.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(nodeKeyPrefix+node.ID), nodeBytes); err != nil {
			return err
		}
		if len(props) > 0 {
			propBytes, err := json.Marshal(props)
			if err != nil {
				return fmt.Errorf("marshal properties for %s: %w", node.ID, err)
			}
			return txn.Set([]byte(propKeyPrefix+node.ID), propBytes)
		}
		return nil
	})
}

// AddEdge records an undirected, labeled edge between two nodes. Endpoints
// that do not exist yet are created as bare nodes.
func (g *BadgerKG) AddEdge(edge Edge) error {
	if edge.From == "" || edge.To == "" {
		return errors.New("edge endpoints must not be empty")
	}
	relation := edge.Relation
	if relation == "" {
		relation = "connected_to"
	}
	return g.db.Update(func(txn *badger.Txn) error {
		for _, id := range []string{edge.From, edge.To} {
			key := []byte(nodeKeyPrefix + id)
			if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
				nodeBytes, merr := json.Marshal(Node{ID: id, Name: id})
				if merr != nil {
					return merr
				}
				if serr := txn.Set(key, nodeBytes); serr != nil {
					return serr
				}
			} else if err != nil {
				return err
			}
		}
		if err := appendNeighbor(txn, edge.From, edge.To, relation); err != nil {
			return err
		}
		return appendNeighbor(txn, edge.To, edge.From, relation)
	})
}

// appendNeighbor merges one neighbor into a node's adjacency record.
func appendNeighbor(txn *badger.Txn, from, to, relation string) error {
	key := []byte(edgeKeyPrefix + from)
	neighbors := make(map[string]string)

	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		// First edge for this node.
	case err != nil:
		return err
	default:
		if verr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &neighbors)
		}); verr != nil {
			return fmt.Errorf("decode adjacency for %s: %w", from, verr)
		}
	}

	neighbors[to] = relation
	encoded, err := json.Marshal(neighbors)
	if err != nil {
		return err
	}
	return txn.Set(key, encoded)
}

// Neighbors implements KnowledgeGraph.
func (g *BadgerKG) Neighbors(ctx context.Context, nodeID string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var neighbors []Node
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(edgeKeyPrefix + nodeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		adjacency := make(map[string]string)
		if verr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &adjacency)
		}); verr != nil {
			return fmt.Errorf("decode adjacency for %s: %w", nodeID, verr)
		}
		for id, relation := range adjacency {
			node, lerr := loadNode(txn, id)
			if lerr != nil {
				return lerr
			}
			node.Relation = relation
			neighbors = append(neighbors, node)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
	}
	return neighbors, nil
}

// SearchNodes implements KnowledgeGraph with a case-insensitive substring
// scan over node names. A full scan is acceptable at the corpus sizes this
// store targets; larger deployments use the vector index as the entry point.
func (g *BadgerKG) SearchNodes(ctx context.Context, query string, limit int) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	needle := strings.ToLower(query)

	var results []Node
	err := g.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(nodeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var node Node
			if verr := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &node)
			}); verr != nil {
				return verr
			}
			name := strings.ToLower(node.Name)
			if strings.Contains(name, needle) || strings.Contains(needle, name) {
				results = append(results, node)
				if len(results) >= limit {
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search nodes %q: %w", query, err)
	}
	return results, nil
}

// NodeProperties implements KnowledgeGraph.
func (g *BadgerKG) NodeProperties(ctx context.Context, nodeID string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var props map[string]string
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(propKeyPrefix + nodeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &props)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("properties of %s: %w", nodeID, err)
	}
	return props, nil
}

func loadNode(txn *badger.Txn, id string) (Node, error) {
	item, err := txn.Get([]byte(nodeKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Node{ID: id, Name: id}, nil
	}
	if err != nil {
		return Node{}, err
	}
	var node Node
	if verr := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	}); verr != nil {
		return Node{}, verr
	}
	return node, nil
}
