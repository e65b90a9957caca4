package kvstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"atdkit/lib/timezone"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lib/kvstore")

var ErrKeyNotFound = badger.ErrKeyNotFound

// Record is what every key maps to. WrittenAt is the unix time of the
// write, callers that want a TTL compute expiry from it themselves.
type Record struct {
	Value     []byte
	WrittenAt int64
}

type Store struct {
	db *badger.DB
}

func Open(path string) (Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return Store{}, err
	}
	return Store{db: db}, nil
}

func OpenInMemory() (Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return Store{}, err
	}
	return Store{db: db}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

func (s Store) Get(ctx context.Context, key string) (Record, error) {
	_, span := tracer.Start(ctx, "kvstore:Get")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	tx := s.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return Record{}, ErrKeyNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return Record{}, err
	}
	serialized, err := item.ValueCopy(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy item value")
		return Record{}, err
	}

	var record Record
	err = gob.NewDecoder(bytes.NewBuffer(serialized)).Decode(&record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize record")
		return Record{}, err
	}
	return record, nil
}

// GetFresh behaves like Get except a record older than lifetime counts
// as missing and is deleted on the way out.
func (s Store) GetFresh(ctx context.Context, key string, lifetime time.Duration) (Record, error) {
	ctx, span := tracer.Start(ctx, "kvstore:GetFresh")
	defer span.End()

	record, err := s.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	if timezone.Now().Unix() >= record.WrittenAt+int64(lifetime/time.Second) {
		span.AddEvent("delete expired key", trace.WithAttributes(attribute.String("key", key)))
		err = s.Delete(ctx, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete expired key")
		}
		return Record{}, ErrKeyNotFound
	}
	return record, nil
}

func (s Store) Set(ctx context.Context, key string, value []byte) error {
	_, span := tracer.Start(ctx, "kvstore:Set")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	serialized := bytes.NewBuffer(nil)
	err := gob.NewEncoder(serialized).Encode(Record{
		Value:     value,
		WrittenAt: timezone.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize record")
		return err
	}

	return s.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(key), serialized.Bytes())
	})
}

func (s Store) Delete(ctx context.Context, key string) error {
	_, span := tracer.Start(ctx, "kvstore:Delete")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	return s.db.Update(func(tx *badger.Txn) error {
		err := tx.Delete([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

type Entry struct {
	Key    string
	Record Record
}

func (s Store) ListPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	_, span := tracer.Start(ctx, "kvstore:ListPrefix")
	defer span.End()
	span.SetAttributes(attribute.String("prefix", prefix))

	var entries []Entry
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			serialized, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var record Record
			err = gob.NewDecoder(bytes.NewBuffer(serialized)).Decode(&record)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{
				Key:    string(item.KeyCopy(nil)),
				Record: record,
			})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to iterate prefix")
		return nil, err
	}
	return entries, nil
}
