package repo

import (
	"fmt"

	"gitter/internal/reflog"
	"gitter/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// journal opens the reflog database on first use and holds badger's
// directory lock until close. Commands that never move a reference never
// take the lock.
type journal struct {
	path   string
	logger *zap.Logger
	db     *badger.DB
	log    *reflog.Log
}

func newJournal(path string, logger *zap.Logger) *journal {
	return &journal{path: path, logger: logger}
}

func (j *journal) open() (*reflog.Log, error) {
	if j.log != nil {
		return j.log, nil
	}
	db, err := storage.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("opening reflog: %w", err)
	}
	j.db = db
	j.log = reflog.New(db, j.logger)
	return j.log, nil
}

func (j *journal) Record(ref, oldValue, newValue, reason string) error {
	l, err := j.open()
	if err != nil {
		return err
	}
	return l.Record(ref, oldValue, newValue, reason)
}

func (j *journal) entries(ref string, limit int) ([]reflog.Entry, error) {
	l, err := j.open()
	if err != nil {
		return nil, err
	}
	return l.Entries(ref, limit)
}

func (j *journal) close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db, j.log = nil, nil
	return err
}
