package store

import (
	"encoding/binary"
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

const bucketCell = "cell"

func init() {
	initDB["initialize cell history table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketCell))
		return err
	}
}

func (s *dbStore) AddCell(cell Cell) (int, error) {
	value, err := json.Marshal(cell)
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketCell))
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), value)
	})
	return int(seq), err
}

func (s *dbStore) Cell(seq int) (Cell, error) {
	var cell Cell
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketCell)).Get(marshalSeq(uint64(seq)))
		if v == nil {
			return ErrNoMatchingCell
		}
		return unmarshalCell(seq, v, &cell)
	})
	return cell, err
}

func (s *dbStore) Cells(from, upto int) ([]Cell, error) {
	var cells []Cell
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketCell)).Cursor()
		for k, v := c.Seek(marshalSeq(uint64(from))); k != nil && unmarshalSeq(k) < uint64(upto); k, v = c.Next() {
			var cell Cell
			if err := unmarshalCell(int(unmarshalSeq(k)), v, &cell); err != nil {
				return err
			}
			cells = append(cells, cell)
		}
		return nil
	})
	return cells, err
}

func (s *dbStore) LastCells(n int) ([]Cell, error) {
	if n <= 0 {
		return nil, nil
	}
	var cells []Cell
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketCell)).Cursor()
		for k, v := c.Last(); k != nil && len(cells) < n; k, v = c.Prev() {
			var cell Cell
			if err := unmarshalCell(int(unmarshalSeq(k)), v, &cell); err != nil {
				return err
			}
			cells = append(cells, cell)
		}
		return nil
	})
	// Reverse into chronological order.
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells, err
}

func (s *dbStore) CellCount() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketCell)).Stats().KeyN
		return nil
	})
	return n, err
}

func unmarshalCell(seq int, v []byte, cell *Cell) error {
	if err := json.Unmarshal(v, cell); err != nil {
		return err
	}
	cell.Seq = seq
	return nil
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
