package sql

import (
	"context"
	"database/sql"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/signals"
)

type SessionPool struct {
	db               *sql.DB
	onSessionStarted *signals.SignalImp[session.SessionScopeStartedEvent]
	onSessionEnded   *signals.SignalImp[session.SessionScopeEndedEvent]
}

func NewSessionPool(db *sql.DB) *SessionPool {
	return &SessionPool{
		db:               db,
		onSessionStarted: signals.NewSignal[session.SessionScopeStartedEvent](),
		onSessionEnded:   signals.NewSignal[session.SessionScopeEndedEvent](),
	}
}

func (p *SessionPool) OnSessionStarted() signals.Signal[session.SessionScopeStartedEvent] {
	return p.onSessionStarted
}

func (p *SessionPool) OnSessionEnded() signals.Signal[session.SessionScopeEndedEvent] {
	return p.onSessionEnded
}

func (p *SessionPool) Session(ctx context.Context, callback session.SessionPoolCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess := NewSession(ctx, p.db)
	p.onSessionStarted.Notify(session.SessionScopeStartedEvent{Session: sess})
	defer p.onSessionEnded.Notify(session.SessionScopeEndedEvent{Session: sess})
	return callback(sess)
}
