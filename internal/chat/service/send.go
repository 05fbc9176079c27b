package service

import (
	"context"
	"fmt"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/database"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/compechat"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/metrics"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/utils"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// SendMessageService persists an outgoing message and pushes it to every
// connected session selected by the message's send type. Pushes carry the
// MessagesFromSend method tag; the sender additionally receives the ordinary
// success envelope through the pipeline.
type SendMessageService struct {
	base
	logger  *zap.Logger
	db      database.Database
	metrics *metrics.Metrics
}

var _ Service = (*SendMessageService)(nil)

func NewSendMessageService(logger *zap.Logger, db database.Database, registry *session.Registry, m *metrics.Metrics) *SendMessageService {
	return &SendMessageService{
		base:    base{registry: registry},
		logger:  logger.Named("chat.service.send_message"),
		db:      db,
		metrics: m,
	}
}

func (s *SendMessageService) Method() compechat.Method {
	return compechat.MethodSendMessage
}

func (s *SendMessageService) Validate(form gjson.Result) *ValidationInfo {
	info := NewValidationInfo(s.Method().String())
	block := form.Get(s.Method().String())
	if !block.Exists() {
		return info.AddError("send_message parameter block is required")
	}

	text, _ := utils.GetStr(block, "message")
	stampID, _ := utils.GetStr(block, "stamp_id")
	if utils.IsEmpty(text) && utils.IsEmpty(stampID) {
		info.AddError("either message or stamp_id is required")
	}

	// The destination fields are checked strictly to keep a message from
	// reaching the wrong participants.
	code, ok := utils.GetInt(block, "send_type")
	if !ok {
		return info.AddError("send_type is invalid")
	}
	sendType, ok := compechat.ParseSendType(code)
	if !ok {
		return info.AddError("send_type is invalid")
	}
	_, hasDest := utils.GetStr(block, "dest_member_id")
	switch sendType {
	case compechat.SendAll:
		if hasDest {
			return info.AddError("dest_member_id must be null when sending to all")
		}
	case compechat.SendCompe:
		if hasDest {
			return info.AddError("dest_member_id must be null when sending to the competition")
		}
	case compechat.SendUser:
		if !hasDest {
			return info.AddError("dest_member_id is required when sending to a user")
		}
	}
	return info
}

type sendParams struct {
	sendType     compechat.SendType
	destMemberID *string
	message      *string
	stampID      *int64
}

func (s *SendMessageService) params(form gjson.Result) (*sendParams, error) {
	block := form.Get(s.Method().String())
	code, _ := utils.GetInt(block, "send_type")
	sendType, ok := compechat.ParseSendType(code)
	if !ok {
		return nil, fmt.Errorf("send_message: send_type %d is invalid", code)
	}

	p := &sendParams{sendType: sendType}
	if dest, ok := utils.GetStr(block, "dest_member_id"); ok {
		p.destMemberID = &dest
	}
	if text, ok := utils.GetStr(block, "message"); ok {
		p.message = &text
	}
	if stampID, ok := utils.GetInt(block, "stamp_id"); ok {
		p.stampID = &stampID
	}
	return p, nil
}

func (s *SendMessageService) Execute(ctx context.Context, sess *session.Session, form gjson.Result) (*compechat.Result, error) {
	p, err := s.params(form)
	if err != nil {
		return nil, err
	}

	msg := &database.Message{
		SendType:     int(p.sendType),
		CompeNo:      sess.CompeNo,
		DestMemberID: p.destMemberID,
		MemberID:     sess.MemberID,
		Time:         utils.TimeInMillis(),
		Message:      p.message,
		StampID:      p.stampID,
	}
	if err := s.db.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	payload := &compechat.MessagePayload{
		SendType:  msg.SendType,
		MessageID: msg.MessageID,
		CompeNo:   msg.CompeNo,
		MemberID:  msg.MemberID,
		Time:      msg.Time,
		Message:   msg.Message,
	}
	if p.stampID != nil {
		stamp, err := s.db.FindStamp(ctx, *p.stampID)
		if err != nil {
			return nil, err
		}
		if stamp != nil {
			payload.Stamp = &stamp.StampURL
		}
	}

	push := &compechat.Result{
		Status:   compechat.Success,
		Method:   compechat.MethodMessagesFromSend,
		Messages: []*compechat.MessagePayload{payload},
	}
	frame, err := push.Encode()
	if err != nil {
		s.logger.Error("failed to encode push frame", zap.Error(err))
	}

	// Fan-out is best effort: an offline target or a failing write is
	// skipped, the remaining targets still receive the push.
	for _, target := range s.targets(sess, p) {
		if target == nil {
			continue
		}
		if err := target.Conn.WriteText(frame); err != nil {
			s.logger.Warn("failed to push message",
				zap.String("connId", target.Conn.ID()),
				zap.Error(err))
			s.metrics.FanoutDelivered(p.sendType.String(), false)
			continue
		}
		s.metrics.FanoutDelivered(p.sendType.String(), true)
		s.logger.Debug("pushed message",
			zap.String("connId", target.Conn.ID()),
			zap.Int64("messageId", msg.MessageID))
	}

	return compechat.NewResult(compechat.Success), nil
}

// targets resolves the fan-out target set for a saved message.
func (s *SendMessageService) targets(sess *session.Session, p *sendParams) []*session.Session {
	switch p.sendType {
	case compechat.SendUser:
		// Sender and destination only, each looked up independently; a
		// missing side is skipped by the caller.
		dest := ""
		if p.destMemberID != nil {
			dest = *p.destMemberID
		}
		return []*session.Session{
			s.registry.GetParticipant(sess.CompeNo, sess.MemberID),
			s.registry.GetParticipant(sess.CompeNo, dest),
		}
	case compechat.SendAll:
		return s.registry.GetByCompe(sess.CompeNo)
	default:
		all := s.registry.GetByCompe(sess.CompeNo)
		targets := make([]*session.Session, 0, len(all))
		for _, t := range all {
			if t.ReceptLevel == compechat.ReceptAll {
				targets = append(targets, t)
			}
		}
		return targets
	}
}
