// Package store persists split operations between invocations in a badger database, so that a split can be advanced a bounded amount per invocation.
package store

import (
	"bytes"
	"encoding/gob"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no operation is stored under an ID.
var ErrNotFound = errors.New("split operation not found")

const (
	opPrefix   = "split/op/"
	infoPrefix = "split/info/"
)

// Info describes a stored operation without decoding it.
type Info struct {
	ID      string
	Stage   parcel.Stage
	Failed  bool
	Updated time.Time
}

// Store holds serialized split operations keyed by ID.
type Store struct {
	db *badger.DB
}

// Open opens or creates the database in dir. An empty dir keeps everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{parcel.Logger().Sugar()})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %q", dir)
	}
	return &Store{db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the operation under id, replacing a previous snapshot.
func (s *Store) Save(id string, op *parcel.SplitOperation) error {
	b, err := op.MarshalBinary()
	if err != nil {
		return err
	}
	info := Info{
		ID:      id,
		Stage:   op.DoneStage(),
		Failed:  op.Failed(),
		Updated: time.Now().UTC(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(info); err != nil {
		return errors.Wrap(err, "encode info")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(opPrefix+id), b); err != nil {
			return err
		}
		return txn.Set([]byte(infoPrefix+id), buf.Bytes())
	})
	if err != nil {
		return errors.Wrapf(err, "save %q", id)
	}
	parcel.Logger().Debug("saved split operation",
		zap.String("id", id),
		zap.Stringer("stage", info.Stage),
		zap.Int("bytes", len(b)))
	return nil
}

// Load restores the operation stored under id. A geohash decoder is not restored, but none is needed after construction.
func (s *Store) Load(id string) (*parcel.SplitOperation, error) {
	var b []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(opPrefix + id))
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "%q", id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "load %q", id)
	}

	op := &parcel.SplitOperation{}
	if err := op.UnmarshalBinary(b); err != nil {
		return nil, errors.Wrapf(err, "load %q", id)
	}
	return op, nil
}

// Delete removes the operation stored under id. Deleting a missing ID is not an error.
func (s *Store) Delete(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(opPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(infoPrefix + id))
	})
	return errors.Wrapf(err, "delete %q", id)
}

// List returns the stored operations ordered by ID.
func (s *Store) List() ([]Info, error) {
	infos := []Info{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(infoPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var info Info
			err := it.Item().Value(func(b []byte) error {
				return gob.NewDecoder(bytes.NewReader(b)).Decode(&info)
			})
			if err != nil {
				return errors.Wrapf(err, "decode %s", strings.TrimPrefix(string(it.Item().Key()), infoPrefix))
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list")
	}
	return infos, nil
}

// badgerLogger routes badger's logging to zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
