package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/signals"
)

// QuerySignals implements QueryObservable. Nested sessions share the
// signals of the session they were started from.
type QuerySignals struct {
	onQueryStarted *signals.SignalImp[QueryStartedEvent]
	onQueryEnded   *signals.SignalImp[QueryEndedEvent]
}

func NewQuerySignals() *QuerySignals {
	return &QuerySignals{
		onQueryStarted: signals.NewSignal[QueryStartedEvent](),
		onQueryEnded:   signals.NewSignal[QueryEndedEvent](),
	}
}

func (s *QuerySignals) OnQueryStarted() signals.Signal[QueryStartedEvent] {
	return s.onQueryStarted
}

func (s *QuerySignals) OnQueryEnded() signals.Signal[QueryEndedEvent] {
	return s.onQueryEnded
}

// Observe runs the statement between the started and ended notifications.
func (s *QuerySignals) Observe(sess DbSession, sender any, query string, params []any, run func() error) error {
	s.onQueryStarted.Notify(QueryStartedEvent{
		Query:   query,
		Params:  params,
		Sender:  sender,
		Session: sess,
	})
	start := time.Now()
	err := run()
	s.onQueryEnded.Notify(QueryEndedEvent{
		Query:        query,
		Params:       params,
		Sender:       sender,
		Session:      sess,
		ResponseTime: time.Since(start),
		Err:          err,
	})
	return err
}

// LogQueries logs every statement of s when it ends.
func LogQueries(s DbSession, logger logrus.FieldLogger) signals.Disposable {
	return s.OnQueryEnded().Attach(func(e QueryEndedEvent) {
		entry := logger.WithFields(logrus.Fields{
			"session":       e.Session.ID().String(),
			"response_time": e.ResponseTime,
			"params":        len(e.Params),
		})
		if e.Err != nil {
			entry.WithError(e.Err).Warn(e.Query)
			return
		}
		entry.Debug(e.Query)
	}, "log-queries")
}
