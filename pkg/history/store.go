// Package history persists browser-style navigation history of query
// strings in a bbolt database, so back/forward survive across CLI runs.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
)

// ErrNoEntry is returned when there is nothing to move to.
var ErrNoEntry = errors.New("no history entry")

// DefaultMaxEntries bounds the stored history.
const DefaultMaxEntries = 1000

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")
	keyCursor     = []byte("cursor")
)

// Entry is one visited query.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Query     string    `json:"query"`
	VisitedAt time.Time `json:"visited_at"`
}

// Store is a bbolt-backed history stack with a cursor.
type Store struct {
	db         *bolt.DB
	maxEntries int
	logger     zerolog.Logger
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:         db,
		maxEntries: DefaultMaxEntries,
		logger:     logging.NewLogger(logging.ComponentHistory).With().Str("path", path).Logger(),
	}, nil
}

// SetMaxEntries changes the retention bound. Oldest entries are dropped first.
func (s *Store) SetMaxEntries(n int) {
	if n > 0 {
		s.maxEntries = n
	}
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func cursorOf(tx *bolt.Tx) uint64 {
	v := tx.Bucket(bucketMeta).Get(keyCursor)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func setCursor(tx *bolt.Tx, seq uint64) error {
	return tx.Bucket(bucketMeta).Put(keyCursor, itob(seq))
}

func decodeEntry(v []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(v, &e); err != nil {
		return Entry{}, fmt.Errorf("decode history entry: %w", err)
	}
	return e, nil
}

// Push records query as the current entry, discarding forward entries.
// Pushing the current query again is a no-op.
func (s *Store) Push(query string) error {
	var seq uint64
	var dropped int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		cursor := cursorOf(tx)

		if cursor > 0 {
			if v := b.Get(itob(cursor)); v != nil {
				current, err := decodeEntry(v)
				if err != nil {
					return err
				}
				if current.Query == query {
					return nil
				}
			}
		}

		// Truncate forward entries.
		var forward [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(itob(cursor + 1)); k != nil; k, _ = c.Next() {
			forward = append(forward, append([]byte(nil), k...))
		}
		for _, k := range forward {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("truncate history: %w", err)
			}
		}

		entry := Entry{Seq: cursor + 1, Query: query, VisitedAt: time.Now().UTC()}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode history entry: %w", err)
		}
		if err := b.Put(itob(entry.Seq), data); err != nil {
			return fmt.Errorf("put history entry: %w", err)
		}
		if err := setCursor(tx, entry.Seq); err != nil {
			return err
		}
		seq = entry.Seq
		dropped = len(forward)

		// Sequences are contiguous up to the cursor, so the oldest kept one
		// is Seq-maxEntries+1.
		for k, _ := b.Cursor().First(); k != nil && binary.BigEndian.Uint64(k)+uint64(s.maxEntries) <= entry.Seq; k, _ = b.Cursor().First() {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("trim history: %w", err)
			}
		}
		return nil
	})
	if err == nil && seq > 0 {
		s.logger.Debug().
			Uint64("seq", seq).
			Str("query", query).
			Int("forward_dropped", dropped).
			Msg("Recorded history entry")
	}
	return err
}

// Current returns the entry under the cursor.
func (s *Store) Current() (Entry, error) {
	var entry Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := cursorOf(tx)
		v := tx.Bucket(bucketEntries).Get(itob(cursor))
		if cursor == 0 || v == nil {
			return ErrNoEntry
		}
		var err error
		entry, err = decodeEntry(v)
		return err
	})
	return entry, err
}

// Back moves the cursor to the previous entry and returns it.
func (s *Store) Back() (Entry, error) {
	return s.move(func(c *bolt.Cursor, cursor uint64) ([]byte, []byte) {
		if k, _ := c.Seek(itob(cursor)); k == nil {
			return c.Last()
		}
		return c.Prev()
	})
}

// Forward moves the cursor to the next entry and returns it.
func (s *Store) Forward() (Entry, error) {
	return s.move(func(c *bolt.Cursor, cursor uint64) ([]byte, []byte) {
		return c.Seek(itob(cursor + 1))
	})
}

func (s *Store) move(step func(c *bolt.Cursor, cursor uint64) ([]byte, []byte)) (Entry, error) {
	var entry Entry
	err := s.db.Update(func(tx *bolt.Tx) error {
		cursor := cursorOf(tx)
		if cursor == 0 {
			return ErrNoEntry
		}

		k, v := step(tx.Bucket(bucketEntries).Cursor(), cursor)
		if k == nil {
			return ErrNoEntry
		}

		var err error
		entry, err = decodeEntry(v)
		if err != nil {
			return err
		}
		return setCursor(tx, binary.BigEndian.Uint64(k))
	})
	return entry, err
}

// Entries returns every stored entry, oldest first.
func (s *Store) Entries() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}
