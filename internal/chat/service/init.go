package service

import (
	"context"
	"fmt"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/compechat"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/utils"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// InitService handles the join step: it fills the connection's session with
// competition, member and reception level and registers it. This is the only
// service that runs without a pre-existing session.
type InitService struct {
	base
	logger *zap.Logger
}

var _ Service = (*InitService)(nil)

func NewInitService(logger *zap.Logger, registry *session.Registry) *InitService {
	return &InitService{
		base:   base{registry: registry},
		logger: logger.Named("chat.service.init"),
	}
}

func (s *InitService) Method() compechat.Method {
	return compechat.MethodInit
}

// Session supplies a fresh, unregistered placeholder instead of requiring a
// joined session.
func (s *InitService) Session(conn session.Conn) *session.Session {
	return session.New(conn)
}

func (s *InitService) Validate(form gjson.Result) *ValidationInfo {
	info := NewValidationInfo(s.Method().String())
	block := form.Get(s.Method().String())
	if !block.Exists() {
		return info.AddError("init parameter block is required")
	}
	if _, ok := utils.GetStr(block, "compe_no"); !ok {
		info.AddError("compe_no is required")
	} else if !utils.IsNumeric(block, "compe_no") {
		info.AddError("compe_no must be numeric")
	}
	if memberID, ok := utils.GetStr(block, "member_id"); !ok || utils.IsEmpty(memberID) {
		info.AddError("member_id is required")
	}
	if code, ok := utils.GetInt(block, "recept_level"); !ok {
		info.AddError("recept_level is required")
	} else if _, ok := compechat.ParseReceptLevel(code); !ok {
		info.AddError("recept_level is invalid")
	}
	return info
}

type initParams struct {
	compeNo     int
	memberID    string
	receptLevel compechat.ReceptLevel
}

func (s *InitService) params(form gjson.Result) (*initParams, error) {
	block := form.Get(s.Method().String())
	compeNo, ok := utils.GetInt(block, "compe_no")
	if !ok {
		return nil, fmt.Errorf("init: compe_no is not numeric")
	}
	memberID, ok := utils.GetStr(block, "member_id")
	if !ok {
		return nil, fmt.Errorf("init: member_id is missing")
	}
	code, _ := utils.GetInt(block, "recept_level")
	receptLevel, ok := compechat.ParseReceptLevel(code)
	if !ok {
		return nil, fmt.Errorf("init: recept_level %d is invalid", code)
	}
	return &initParams{
		compeNo:     int(compeNo),
		memberID:    memberID,
		receptLevel: receptLevel,
	}, nil
}

func (s *InitService) Execute(_ context.Context, sess *session.Session, form gjson.Result) (*compechat.Result, error) {
	p, err := s.params(form)
	if err != nil {
		return nil, err
	}

	sess.CompeNo = p.compeNo
	sess.MemberID = p.memberID
	sess.ReceptLevel = p.receptLevel
	s.registry.Add(sess)

	s.logger.Debug("session joined",
		zap.String("connId", sess.Conn.ID()),
		zap.Int("compeNo", p.compeNo),
		zap.String("memberId", p.memberID))

	return compechat.NewResult(compechat.Success), nil
}
