// Package reflog journals every reference update in a badger database so
// earlier branch positions can be recovered.
package reflog

import (
	"encoding/json"
	"fmt"
	"time"

	"gitter/internal/logging"
	"gitter/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const prefix = "reflog"

// keySep separates the reference name from the timestamp in keys. NUL
// cannot appear in a reference name, so one ref's keys never prefix
// another's.
const keySep = "\x00"

// Entry is one journaled update. Old and New are empty for a created and a
// deleted reference respectively.
type Entry struct {
	ID     string    `json:"id"`
	Ref    string    `json:"ref"`
	Old    string    `json:"old"`
	New    string    `json:"new"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

// GetID orders entries by reference, then time.
func (e *Entry) GetID() string {
	return fmt.Sprintf("%s%s%020d%s%s", e.Ref, keySep, e.Time.UnixNano(), keySep, e.ID)
}

// Log reads and appends journal entries.
type Log struct {
	store  *storage.BadgerStore
	now    func() time.Time
	logger *zap.Logger
}

func New(db *badger.DB, logger *zap.Logger) *Log {
	return &Log{
		store:  storage.NewBadgerStore(db, prefix),
		now:    time.Now,
		logger: logging.OrNop(logger),
	}
}

// Record appends an entry for ref.
func (l *Log) Record(ref, oldValue, newValue, reason string) error {
	e := &Entry{
		ID:     uuid.New().String(),
		Ref:    ref,
		Old:    oldValue,
		New:    newValue,
		Reason: reason,
		Time:   l.now().UTC(),
	}
	if err := l.store.Create(e); err != nil {
		return fmt.Errorf("recording %s: %w", ref, err)
	}
	l.logger.Debug("journaled reference update",
		zap.String("ref", ref),
		zap.String("old", oldValue),
		zap.String("new", newValue),
		zap.String("reason", reason))
	return nil
}

// Entries returns up to limit entries for ref, newest first. A limit of
// zero returns all of them.
func (l *Log) Entries(ref string, limit int) ([]Entry, error) {
	var out []Entry
	err := l.store.Scan(ref+keySep, true, limit, func(_ string, val []byte) error {
		var e Entry
		if err := json.Unmarshal(val, &e); err != nil {
			return fmt.Errorf("decoding entry: %w", err)
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
