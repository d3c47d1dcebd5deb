package node

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-pluto/orset/comm"
	"github.com/go-pluto/orset/crdt"
	"github.com/pkg/errors"
)

type metricsService struct {
	service Service
	adds    metrics.Counter
	removes metrics.Counter
	merges  metrics.Counter
	members metrics.Gauge
}

// NewMetricsService counts successful mutations and
// merges and tracks the number of members in members.
func NewMetricsService(s Service, adds metrics.Counter, removes metrics.Counter, merges metrics.Counter, members metrics.Gauge) Service {

	m := &metricsService{
		service: s,
		adds:    adds,
		removes: removes,
		merges:  merges,
		members: members,
	}
	m.observe()

	return m
}

// applied reports whether an operation took
// effect, persisted or not.
func applied(err error) bool {
	return err == nil || errors.Is(err, comm.ErrNotPersisted)
}

func (s *metricsService) observe() {
	s.members.Set(float64(len(s.service.Elements())))
}

func (s *metricsService) Add(elem string) (crdt.Tag, error) {

	t, err := s.service.Add(elem)

	if applied(err) {
		s.adds.Add(1)
	}
	s.observe()

	return t, err
}

func (s *metricsService) Remove(elem string) error {

	err := s.service.Remove(elem)

	if applied(err) {
		s.removes.Add(1)
	}
	s.observe()

	return err
}

func (s *metricsService) Contains(elem string) bool {
	return s.service.Contains(elem)
}

func (s *metricsService) Elements() []string {
	return s.service.Elements()
}

func (s *metricsService) String() string {
	return s.service.String()
}

func (s *metricsService) Merge(msg *comm.Message) error {

	err := s.service.Merge(msg)

	if applied(err) {
		s.merges.Add(1)
	}
	s.observe()

	return err
}

func (s *metricsService) Snapshot() *comm.Message {
	return s.service.Snapshot()
}
