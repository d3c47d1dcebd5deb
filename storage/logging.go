package storage

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Structs

type loggingStore struct {
	logger log.Logger
	store  Store
}

// Functions

// NewLoggingStore wraps a provided existing
// store with the provided logger.
func NewLoggingStore(s Store, logger log.Logger) Store {

	return &loggingStore{
		logger: logger,
		store:  s,
	}
}

// Save wraps this store's Save method
// with added logging capabilities.
func (s *loggingStore) Save(name string, state []byte) error {

	defer func(begin time.Time) {
		level.Debug(s.logger).Log(
			"method", "Save",
			"replica", name,
			"bytes", len(state),
			"took", time.Since(begin),
		)
	}(time.Now())

	err := s.store.Save(name, state)
	if err != nil {
		level.Error(s.logger).Log(
			"msg", "failed to persist replica state",
			"replica", name,
			"err", err,
		)
	}

	return err
}

// Load wraps this store's Load method
// with added logging capabilities.
func (s *loggingStore) Load(name string) ([]byte, bool, error) {

	state, found, err := s.store.Load(name)

	logger := log.With(s.logger,
		"method", "Load",
		"replica", name,
		"found", found,
	)

	if err != nil {
		level.Error(logger).Log("msg", "failed to load replica state", "err", err)
	} else {
		level.Info(logger).Log("bytes", len(state))
	}

	return state, found, err
}

// Close wraps this store's Close method.
func (s *loggingStore) Close() error {
	return s.store.Close()
}
