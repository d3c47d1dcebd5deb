package node

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-pluto/orset/comm"
	"github.com/go-pluto/orset/crdt"
)

type loggingService struct {
	logger  log.Logger
	service Service
}

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {
	return &loggingService{logger, s}
}

// Add wraps this service's Add method with
// added logging capabilities.
func (s *loggingService) Add(elem string) (crdt.Tag, error) {

	t, err := s.service.Add(elem)

	logger := log.With(s.logger,
		"method", "ADD",
		"elem", elem,
		"tag", t,
	)

	if err != nil {
		level.Warn(logger).Log("msg", "failed to perform operation ADD correctly", "err", err)
	} else {
		level.Debug(logger).Log()
	}

	return t, err
}

// Remove wraps this service's Remove method
// with added logging capabilities.
func (s *loggingService) Remove(elem string) error {

	err := s.service.Remove(elem)

	logger := log.With(s.logger,
		"method", "REMOVE",
		"elem", elem,
	)

	if err != nil {
		level.Warn(logger).Log("msg", "failed to perform operation REMOVE correctly", "err", err)
	} else {
		level.Debug(logger).Log()
	}

	return err
}

func (s *loggingService) Contains(elem string) bool {
	return s.service.Contains(elem)
}

func (s *loggingService) Elements() []string {
	return s.service.Elements()
}

func (s *loggingService) String() string {
	return s.service.String()
}

// Merge wraps this service's Merge method
// with added logging capabilities.
func (s *loggingService) Merge(msg *comm.Message) error {

	err := s.service.Merge(msg)

	logger := log.With(s.logger,
		"method", "MERGE",
		"sender", msg.Sender,
		"incarnation", msg.Incarnation,
		"vclock", msg.VClock.String(),
	)

	if err != nil {
		level.Warn(logger).Log("msg", "failed to merge state of other replica", "err", err)
	} else {
		level.Debug(logger).Log()
	}

	return err
}

func (s *loggingService) Snapshot() *comm.Message {
	return s.service.Snapshot()
}
