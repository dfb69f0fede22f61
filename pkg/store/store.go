// Package store keeps the cell history of the kernel in a bbolt database.
package store

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"src.swiftkernel.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[store] ")

// ErrNoMatchingCell is returned when a queried cell does not exist.
var ErrNoMatchingCell = errors.New("no matching cell")

// Store is the interface of the history store.
type Store interface {
	// AddCell records a submitted cell and returns its sequence number,
	// starting from 1.
	AddCell(cell Cell) (int, error)
	// Cell returns the cell with the given sequence number.
	Cell(seq int) (Cell, error)
	// Cells returns the cells with sequence numbers in [from, upto).
	Cells(from, upto int) ([]Cell, error)
	// LastCells returns up to n most recent cells, oldest first.
	LastCells(n int) ([]Cell, error)
	// CellCount returns the number of cells.
	CellCount() (int, error)
	// Close closes the store.
	Close() error
}

// Cell is an entry in the history.
type Cell struct {
	Seq     int       `json:"-"`
	Code    string    `json:"code"`
	Session string    `json:"session,omitempty"`
	Time    time.Time `json:"time"`
}

var initDB = map[string]func(*bolt.Tx) error{}

type dbStore struct {
	db *bolt.DB
}

// NewStore opens the database at the given path, creating it if needed.
func NewStore(dbname string) (Store, error) {
	db, err := bolt.Open(dbname, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			if err := fn(tx); err != nil {
				return fmt.Errorf("failed to %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Infow("opened history store", "path", dbname)
	return &dbStore{db}, nil
}

func (s *dbStore) Close() error {
	return s.db.Close()
}
