package outbox

import (
	"bytes"
	"errors"
	"fmt"

	"tush00nka/bbbab_chatsync/internal/model"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNotFound = errors.New("queued message not found")

// ErrStoreLocked очередь уже открыта другим процессом, обычно `chatsync daemon`
var ErrStoreLocked = errors.New("outbox store is locked by another process")

// Ключи:
//
//	q/{user}/{created_at_ns}/{temp_id} -> QueuedMessage
//	id/{temp_id}                       -> ключ записи
//
// Порядок ключей q/ совпадает с порядком постановки в очередь.
const (
	recordPrefix = "q/"
	indexPrefix  = "id/"
)

// Store хранит исходящую очередь на диске и переживает перезапуск клиента
type Store struct {
	db   *pebble.DB
	lock *pebble.Lock
}

// OpenStore открывает очередь по пути; fs == nil означает обычную файловую систему.
// Очередь открывается одним процессом: второй получает ErrStoreLocked.
func OpenStore(path string, fs vfs.FS) (*Store, error) {
	if fs == nil {
		fs = vfs.Default
	}
	if err := fs.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("open outbox store: %w", err)
	}

	lock, err := pebble.LockDirectory(path, fs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreLocked, path, err)
	}

	db, err := pebble.Open(path, &pebble.Options{FS: fs, Lock: lock})
	if err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("open outbox store: %w", err)
	}
	return &Store{db: db, lock: lock}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if lockErr := s.lock.Close(); err == nil {
		err = lockErr
	}
	s.db = nil
	return err
}

func userPrefix(userID uint) []byte {
	return fmt.Appendf(nil, "%s%020d/", recordPrefix, userID)
}

func recordKey(q *model.QueuedMessage) []byte {
	return fmt.Appendf(userPrefix(q.UserID), "%020d/%s", q.CreatedAt.UnixNano(), q.TempID)
}

func indexKey(tempID string) []byte {
	return []byte(indexPrefix + tempID)
}

// Put записывает запись и индекс одним батчем с fsync
func (s *Store) Put(q *model.QueuedMessage) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}

	key := recordKey(q)
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(key, data, nil); err != nil {
		return err
	}
	if err := batch.Set(indexKey(q.TempID), key, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *Store) Get(tempID string) (*model.QueuedMessage, error) {
	key, err := s.get(indexKey(tempID))
	if err != nil {
		return nil, err
	}
	data, err := s.get(key)
	if err != nil {
		return nil, err
	}

	var q model.QueuedMessage
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode queued message %s: %w", tempID, err)
	}
	return &q, nil
}

func (s *Store) Delete(tempID string) error {
	key, err := s.get(indexKey(tempID))
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(key, nil); err != nil {
		return err
	}
	if err := batch.Delete(indexKey(tempID), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Oldest возвращает до limit самых старых записей пользователя с указанным статусом
func (s *Store) Oldest(userID uint, status string, limit int) ([]model.QueuedMessage, error) {
	var out []model.QueuedMessage
	err := s.scan(userID, func(q model.QueuedMessage) bool {
		if q.Status == status {
			out = append(out, q)
		}
		return limit <= 0 || len(out) < limit
	})
	return out, err
}

// All возвращает все записи пользователя в порядке постановки
func (s *Store) All(userID uint) ([]model.QueuedMessage, error) {
	var out []model.QueuedMessage
	err := s.scan(userID, func(q model.QueuedMessage) bool {
		out = append(out, q)
		return true
	})
	return out, err
}

func (s *Store) scan(userID uint, fn func(model.QueuedMessage) bool) error {
	prefix := userPrefix(userID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		var q model.QueuedMessage
		if err := json.Unmarshal(iter.Value(), &q); err != nil {
			return fmt.Errorf("decode queued message %q: %w", iter.Key(), err)
		}
		if !fn(q) {
			break
		}
	}
	return iter.Error()
}

func (s *Store) get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(v), nil
}

func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	end[len(end)-1]++
	return end
}
