package service

import (
	"context"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/database"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/compechat"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// GetStampsService returns the stamp catalog. The request carries no
// parameters, so validation always passes.
type GetStampsService struct {
	base
	logger *zap.Logger
	db     database.Database
}

var _ Service = (*GetStampsService)(nil)

func NewGetStampsService(logger *zap.Logger, db database.Database, registry *session.Registry) *GetStampsService {
	return &GetStampsService{
		base:   base{registry: registry},
		logger: logger.Named("chat.service.get_stamps"),
		db:     db,
	}
}

func (s *GetStampsService) Method() compechat.Method {
	return compechat.MethodGetStamps
}

func (s *GetStampsService) Validate(gjson.Result) *ValidationInfo {
	return NewValidationInfo(s.Method().String())
}

func (s *GetStampsService) Execute(ctx context.Context, _ *session.Session, _ gjson.Result) (*compechat.Result, error) {
	stamps, err := s.db.FindStamps(ctx)
	if err != nil {
		return nil, err
	}

	result := compechat.NewResult(compechat.Success)
	result.Stamps = make([]*compechat.StampPayload, 0, len(stamps))
	for _, stamp := range stamps {
		result.Stamps = append(result.Stamps, &compechat.StampPayload{
			StampID:  stamp.StampID,
			StampURL: stamp.StampURL,
		})
	}
	return result, nil
}
