package clock

import (
	"context"
	"errors"
	"strings"

	"atdkit/lib/kvstore"
)

const (
	keyFieldSchema   = "clock:schema"
	rememberedPrefix = "clock:field:"
)

// HasFieldSchemaChanged compares the current form against the
// fingerprint stored by the previous run. A changed fingerprint means
// remembered field values may no longer line up with the live form
// and the caller must reconfirm them instead of resubmitting blindly.
// The first run ever stores the fingerprint and reports no change.
func HasFieldSchemaChanged(ctx context.Context, kv kvstore.Store, fields []ClockField) (bool, error) {
	current := GenerateFieldSchema(fields)
	record, err := kv.Get(ctx, keyFieldSchema)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return false, kv.Set(ctx, keyFieldSchema, []byte(current))
	}
	if err != nil {
		return false, err
	}
	return string(record.Value) != current, nil
}

// RememberFieldSchema accepts the current form as the new baseline.
func RememberFieldSchema(ctx context.Context, kv kvstore.Store, fields []ClockField) error {
	return kv.Set(ctx, keyFieldSchema, []byte(GenerateFieldSchema(fields)))
}

// Remembered persists the user's last confirmed value per form field
// so routine submissions don't have to re-ask for anything.
type Remembered struct {
	kv kvstore.Store
}

func NewRemembered(kv kvstore.Store) Remembered {
	return Remembered{kv: kv}
}

func (r Remembered) Get(ctx context.Context, name string) (string, bool, error) {
	record, err := r.kv.Get(ctx, rememberedPrefix+name)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(record.Value), true, nil
}

func (r Remembered) Set(ctx context.Context, name, value string) error {
	return r.kv.Set(ctx, rememberedPrefix+name, []byte(value))
}

func (r Remembered) All(ctx context.Context) (map[string]string, error) {
	entries, err := r.kv.ListPrefix(ctx, rememberedPrefix)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := strings.TrimPrefix(entry.Key, rememberedPrefix)
		values[name] = string(entry.Record.Value)
	}
	return values, nil
}

func (r Remembered) Clear(ctx context.Context) error {
	entries, err := r.kv.ListPrefix(ctx, rememberedPrefix)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := r.kv.Delete(ctx, entry.Key); err != nil {
			return err
		}
	}
	return nil
}
