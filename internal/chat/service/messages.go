package service

import (
	"context"
	"fmt"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/database"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/compechat"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/utils"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// GetMessagesService handles the history fetch with an explicit time cursor.
type GetMessagesService struct {
	base
	logger *zap.Logger
	db     database.Database
}

var _ Service = (*GetMessagesService)(nil)

func NewGetMessagesService(logger *zap.Logger, db database.Database, registry *session.Registry) *GetMessagesService {
	return &GetMessagesService{
		base:   base{registry: registry},
		logger: logger.Named("chat.service.get_messages"),
		db:     db,
	}
}

func (s *GetMessagesService) Method() compechat.Method {
	return compechat.MethodGetMessages
}

func (s *GetMessagesService) Validate(form gjson.Result) *ValidationInfo {
	info := NewValidationInfo(s.Method().String())
	block := form.Get(s.Method().String())
	if !block.Exists() {
		return info.AddError("get_messages parameter block is required")
	}
	requireNumeric(info, block, "before_time")
	requireNumeric(info, block, "count")
	return info
}

func (s *GetMessagesService) Execute(ctx context.Context, sess *session.Session, form gjson.Result) (*compechat.Result, error) {
	block := form.Get(s.Method().String())
	beforeTime, ok := utils.GetInt(block, "before_time")
	if !ok {
		return nil, fmt.Errorf("get_messages: before_time is not numeric")
	}
	count, ok := utils.GetInt(block, "count")
	if !ok {
		return nil, fmt.Errorf("get_messages: count is not numeric")
	}

	return fetchMessages(ctx, s.db, sess, beforeTime, count, false)
}

// GetNewMessagesService handles the cursor-less new-messages poll. Unlike
// the cursor variant it drops the caller's own messages, since the caller
// already saw them as send responses.
type GetNewMessagesService struct {
	base
	logger *zap.Logger
	db     database.Database
}

var _ Service = (*GetNewMessagesService)(nil)

func NewGetNewMessagesService(logger *zap.Logger, db database.Database, registry *session.Registry) *GetNewMessagesService {
	return &GetNewMessagesService{
		base:   base{registry: registry},
		logger: logger.Named("chat.service.get_new_messages"),
		db:     db,
	}
}

func (s *GetNewMessagesService) Method() compechat.Method {
	return compechat.MethodGetNewMessages
}

func (s *GetNewMessagesService) Validate(form gjson.Result) *ValidationInfo {
	info := NewValidationInfo(s.Method().String())
	block := form.Get(s.Method().String())
	if !block.Exists() {
		return info.AddError("get_new_messages parameter block is required")
	}
	requireNumeric(info, block, "count")
	return info
}

func (s *GetNewMessagesService) Execute(ctx context.Context, sess *session.Session, form gjson.Result) (*compechat.Result, error) {
	block := form.Get(s.Method().String())
	count, ok := utils.GetInt(block, "count")
	if !ok {
		return nil, fmt.Errorf("get_new_messages: count is not numeric")
	}

	return fetchMessages(ctx, s.db, sess, 0, count, true)
}

// requireNumeric checks presence and numeric form of one field.
func requireNumeric(info *ValidationInfo, block gjson.Result, key string) {
	if _, ok := utils.GetStr(block, key); !ok {
		info.AddError(key + " is required")
	} else if !utils.IsNumeric(block, key) {
		info.AddError(key + " must be numeric")
	}
}

// fetchMessages runs the visibility-filtered read shared by both fetch
// variants and maps the rows onto the wire payload, oldest first.
func fetchMessages(ctx context.Context, db database.Database, sess *session.Session, beforeTime, count int64, excludeSelf bool) (*compechat.Result, error) {
	rows, err := db.FindMessages(ctx, &database.MessageQuery{
		CompeNo:     sess.CompeNo,
		MemberID:    sess.MemberID,
		ReceptAll:   sess.ReceptLevel == compechat.ReceptAll,
		BeforeTime:  beforeTime,
		Count:       count,
		ExcludeSelf: excludeSelf,
	})
	if err != nil {
		return nil, err
	}

	result := compechat.NewResult(compechat.Success)
	result.Messages = make([]*compechat.MessagePayload, 0, len(rows))
	for _, row := range rows {
		result.Messages = append(result.Messages, &compechat.MessagePayload{
			SendType:  row.SendType,
			MessageID: row.MessageID,
			CompeNo:   row.CompeNo,
			MemberID:  row.MemberID,
			Time:      row.Time,
			Message:   row.Message,
			Stamp:     row.Stamp,
		})
	}
	return result, nil
}
