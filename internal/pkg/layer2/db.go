// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

// Package layer2 is the layer2 information database: per interface and per
// neighbor metrics, each tagged with the origin that wrote it.
package layer2

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type DB struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	logger  *zap.Logger
	origins *OriginRegistry
	nets    map[string]*Network
}

type Option func(*DB)

func WithClock(c clockwork.Clock) Option {
	return func(db *DB) {
		db.clock = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

func NewDB(opts ...Option) *DB {
	db := &DB{
		clock:   clockwork.NewRealClock(),
		logger:  zap.NewNop(),
		origins: NewOriginRegistry(),
		nets:    make(map[string]*Network),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *DB) Origins() *OriginRegistry {
	return db.origins
}

func (db *DB) Clock() clockwork.Clock {
	return db.clock
}

// Update runs fn with exclusive access to the database. Records obtained
// through tx must not be used after fn returns.
func (db *DB) Update(fn func(tx *Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(&Tx{db: db, writable: true})
}

// View runs fn with shared read access.
func (db *DB) View(fn func(tx *Tx) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(&Tx{db: db})
}

// Tx is the handle passed to Update and View closures.
type Tx struct {
	db       *DB
	writable bool
}

func (tx *Tx) Now() time.Time {
	return tx.db.clock.Now()
}

func (tx *Tx) Origins() *OriginRegistry {
	return tx.db.origins
}

func (tx *Tx) Network(name string) (*Network, bool) {
	n, ok := tx.db.nets[name]
	return n, ok
}

// AddNetwork returns the network called name, creating it if necessary.
func (tx *Tx) AddNetwork(name string) *Network {
	tx.mustWrite()
	if n, ok := tx.db.nets[name]; ok {
		return n
	}
	n := newNetwork(name, tx.db.clock.Now)
	tx.db.nets[name] = n
	tx.db.logger.Debug("add layer2 network", zap.String("network", name))
	return n
}

func (tx *Tx) RemoveNetwork(name string) bool {
	tx.mustWrite()
	if _, ok := tx.db.nets[name]; !ok {
		return false
	}
	delete(tx.db.nets, name)
	tx.db.logger.Debug("remove layer2 network", zap.String("network", name))
	return true
}

// Networks returns all networks ordered by name.
func (tx *Tx) Networks() []*Network {
	all := make([]*Network, 0, len(tx.db.nets))
	for _, n := range tx.db.nets {
		all = append(all, n)
	}
	slices.SortFunc(all, func(a, b *Network) int {
		return strings.Compare(a.Name, b.Name)
	})
	return all
}

// RemoveOrigin removes every metric and address written by o. Neighbors and
// networks that are left without any data are removed as well.
func (tx *Tx) RemoveOrigin(o *Origin) {
	tx.mustWrite()
	for name, n := range tx.db.nets {
		if n.removeOrigin(o) {
			delete(tx.db.nets, name)
		}
	}
	tx.db.logger.Debug("remove layer2 origin", zap.Stringer("origin", o))
}

func (tx *Tx) mustWrite() {
	if !tx.writable {
		panic("layer2: write in read-only transaction")
	}
}
