package service

import (
	"context"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/database"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/compechat"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/metrics"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Service binds one request method to its session resolution, validation and
// business logic. The dispatch pipeline calls Session first, Validate next
// and Execute only when validation passed.
type Service interface {
	// Method returns the request kind the service handles.
	Method() compechat.Method

	// Session resolves the session the request runs under. A nil result
	// means the connection has not completed the join step and the request
	// must be rejected.
	Session(conn session.Conn) *session.Session

	// Validate inspects the request's parameter block. The returned info
	// carries server-side diagnostics; only the status code reaches clients.
	Validate(form gjson.Result) *ValidationInfo

	// Execute runs the business logic of a validated request.
	Execute(ctx context.Context, sess *session.Session, form gjson.Result) (*compechat.Result, error)
}

// base supplies the default session resolution: the request requires an
// already joined session. The init service overrides this.
type base struct {
	registry *session.Registry
}

func (b *base) Session(conn session.Conn) *session.Session {
	return b.registry.Get(conn.ID())
}

// NewServices builds the dispatch table of all request services.
func NewServices(logger *zap.Logger, db database.Database, registry *session.Registry, m *metrics.Metrics) map[compechat.Method]Service {
	services := []Service{
		NewInitService(logger, registry),
		NewGetMessagesService(logger, db, registry),
		NewGetNewMessagesService(logger, db, registry),
		NewSendMessageService(logger, db, registry, m),
		NewGetStampsService(logger, db, registry),
	}

	table := make(map[compechat.Method]Service, len(services))
	for _, svc := range services {
		table[svc.Method()] = svc
	}
	return table
}
