package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// gormDB implements Database on top of a gorm connection; the driver-specific
// constructors in mysql.go, postgres.go and sqlite.go only differ in how the
// connection is opened.
type gormDB struct {
	db *gorm.DB
}

var _ Database = (*gormDB)(nil)

func newGormDB(dial gorm.Dialector) (*gormDB, error) {
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, wrapRepo(err)
	}

	if err := db.AutoMigrate(&Message{}, &Stamp{}); err != nil {
		return nil, wrapRepo(err)
	}

	return &gormDB{db: db}, nil
}

// Close closes the database connection
func (g *gormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return wrapRepo(err)
	}
	return wrapRepo(sqlDB.Close())
}

func (g *gormDB) SaveMessage(ctx context.Context, message *Message) error {
	return wrapRepo(g.db.WithContext(ctx).Create(message).Error)
}

func (g *gormDB) FindMessages(ctx context.Context, q *MessageQuery) ([]*MessageRow, error) {
	// Visibility is applied in the query, not post-filtered: broadcast-all is
	// visible to everyone, event-wide only to members receiving everything,
	// direct only to the destination and the sender.
	vis := g.db.Where("send_type = ?", 1)
	if q.ReceptAll {
		vis = vis.Or("send_type = ?", 2)
	}
	vis = vis.Or("send_type = ? AND (dest_member_id = ? OR member_id = ?)", 3, q.MemberID, q.MemberID)

	tx := g.db.WithContext(ctx).Model(&Message{}).
		Where("compe_no = ?", q.CompeNo).
		Where("is_delete = ?", false).
		Where(vis)
	if q.ExcludeSelf {
		tx = tx.Where("member_id <> ?", q.MemberID)
	}
	if q.BeforeTime > 0 {
		tx = tx.Where("time < ?", q.BeforeTime)
	}
	// Cursor and limit apply newest first; delivery order is oldest first.
	tx = tx.Order("time DESC, message_id DESC")
	if q.Count > 0 {
		tx = tx.Limit(int(q.Count))
	}

	var messages []*Message
	if err := tx.Find(&messages).Error; err != nil {
		return nil, wrapRepo(err)
	}

	stamps, err := g.stampURLs(ctx, messages)
	if err != nil {
		return nil, err
	}

	rows := make([]*MessageRow, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		row := &MessageRow{
			MessageID: m.MessageID,
			SendType:  m.SendType,
			CompeNo:   m.CompeNo,
			MemberID:  m.MemberID,
			Time:      m.Time,
			Message:   m.Message,
		}
		if m.StampID != nil {
			if url, ok := stamps[*m.StampID]; ok {
				row.Stamp = &url
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// stampURLs resolves the stamp URLs referenced by a message set.
func (g *gormDB) stampURLs(ctx context.Context, messages []*Message) (map[int64]string, error) {
	ids := make([]int64, 0)
	for _, m := range messages {
		if m.StampID != nil {
			ids = append(ids, *m.StampID)
		}
	}
	urls := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return urls, nil
	}

	var stamps []*Stamp
	err := g.db.WithContext(ctx).
		Where("is_delete = ?", false).
		Where("stamp_id IN ?", ids).
		Find(&stamps).Error
	if err != nil {
		return nil, wrapRepo(err)
	}
	for _, s := range stamps {
		urls[s.StampID] = s.StampURL
	}
	return urls, nil
}

func (g *gormDB) FindStamps(ctx context.Context) ([]*Stamp, error) {
	var stamps []*Stamp
	err := g.db.WithContext(ctx).
		Where("is_delete = ?", false).
		Order("stamp_id ASC").
		Find(&stamps).Error
	if err != nil {
		return nil, wrapRepo(err)
	}
	return stamps, nil
}

func (g *gormDB) FindStamp(ctx context.Context, stampID int64) (*Stamp, error) {
	var stamp Stamp
	err := g.db.WithContext(ctx).
		Where("is_delete = ?", false).
		Where("stamp_id = ?", stampID).
		First(&stamp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapRepo(err)
	}
	return &stamp, nil
}
