package handler

import (
	"context"
	"errors"
	"time"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/service"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/database"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/compechat"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/metrics"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/utils"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Dispatcher runs one inbound frame through the request pipeline: parse,
// identify the method, check the join precondition, validate, execute, and
// map every failure onto a wire status. A failure is terminal for the single
// request only; the connection stays usable.
type Dispatcher struct {
	logger   *zap.Logger
	registry *session.Registry
	metrics  *metrics.Metrics
	services map[compechat.Method]service.Service
}

func NewDispatcher(logger *zap.Logger, registry *session.Registry, services map[compechat.Method]service.Service, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		logger:   logger.Named("chat.dispatch"),
		registry: registry,
		metrics:  m,
		services: services,
	}
}

// Dispatch handles one request frame and returns the response frame for the
// originating connection. Fan-out pushes happen inside the send service, not
// here.
func (d *Dispatcher) Dispatch(ctx context.Context, conn session.Conn, frame []byte) []byte {
	start := time.Now()

	result := d.process(ctx, conn, frame)
	data, err := result.Encode()
	if err != nil {
		// The fallback envelope is already in data; just record the fault.
		d.logger.Error("failed to encode response",
			zap.String("connId", conn.ID()),
			zap.Error(err))
	}

	d.metrics.ChatReqDone(result.Method.String(), int(result.Status), start)
	d.metrics.SetSessions(d.registry.Len())
	return data
}

func (d *Dispatcher) process(ctx context.Context, conn session.Conn, frame []byte) *compechat.Result {
	if !gjson.ValidBytes(frame) {
		d.logger.Error("failed to parse request frame",
			zap.String("connId", conn.ID()),
			zap.ByteString("frame", frame))
		return compechat.NewResult(compechat.ParamError)
	}
	form := gjson.ParseBytes(frame)

	code, ok := utils.GetInt(form, "method")
	if !ok {
		d.logger.Error("request without method code", zap.String("connId", conn.ID()))
		return compechat.NewResult(compechat.MethodError)
	}
	method, ok := compechat.ParseMethod(code)
	if !ok {
		d.logger.Error("unknown method code",
			zap.String("connId", conn.ID()),
			zap.Int64("method", code))
		return compechat.NewResult(compechat.MethodError)
	}
	svc, ok := d.services[method]
	if !ok {
		d.logger.Error("no service bound to method", zap.Stringer("method", method))
		return compechat.NewResult(compechat.MethodError)
	}

	result := d.run(ctx, conn, svc, form)
	result.Method = method
	return result
}

// run executes the session check, validation and business logic of one
// request. Panics and errors are contained here so a single request cannot
// take down the connection's read loop or touch other sessions.
func (d *Dispatcher) run(ctx context.Context, conn session.Conn, svc service.Service, form gjson.Result) (result *compechat.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic during service execution",
				zap.String("connId", conn.ID()),
				zap.Stringer("method", svc.Method()),
				zap.Any("panic", r))
			result = compechat.NewResult(compechat.ServerError)
		}
	}()

	sess := svc.Session(conn)
	if sess == nil {
		return compechat.NewResult(compechat.LoginError)
	}

	info := svc.Validate(form)
	if info == nil {
		d.logger.Error("validator returned no result", zap.Stringer("method", svc.Method()))
		return compechat.NewResult(compechat.ValidationError)
	}
	if !info.Valid() {
		// Validation detail stays a server-side diagnostic; only the status
		// code crosses the wire.
		d.logger.Info("validation failed",
			zap.String("service", info.Name),
			zap.Strings("errors", info.Errors()))
		return compechat.NewResult(compechat.ValidationError)
	}

	res, err := svc.Execute(ctx, sess, form)
	if err != nil {
		if errors.Is(err, database.ErrRepository) {
			d.logger.Error("repository failure",
				zap.Stringer("method", svc.Method()),
				zap.Error(err))
			return compechat.NewResult(compechat.RepositoryError)
		}
		d.logger.Error("service execution failed",
			zap.Stringer("method", svc.Method()),
			zap.Error(err))
		return compechat.NewResult(compechat.ServerError)
	}
	return res
}
