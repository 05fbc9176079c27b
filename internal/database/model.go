package database

// Message maps to the t_message table. Rows are append-only; is_delete is a
// soft-delete flag maintained out of band.
type Message struct {
	MessageID    int64   `gorm:"column:message_id;primaryKey;autoIncrement"`
	SendType     int     `gorm:"column:send_type;not null"`
	CompeNo      int     `gorm:"column:compe_no;not null;index"`
	DestMemberID *string `gorm:"column:dest_member_id;type:varchar(64)"`
	MemberID     string  `gorm:"column:member_id;type:varchar(64);not null"`
	Time         int64   `gorm:"column:time;not null;index"`
	Message      *string `gorm:"column:message;type:text"`
	StampID      *int64  `gorm:"column:stamp_id"`
	IsDelete     bool    `gorm:"column:is_delete;not null;default:false"`
}

// TableName overrides the gorm table name.
func (Message) TableName() string {
	return "t_message"
}

// Stamp maps to the m_stamp master table.
type Stamp struct {
	StampID  int64  `gorm:"column:stamp_id;primaryKey;autoIncrement"`
	StampURL string `gorm:"column:stamp_url;type:varchar(255);not null"`
	IsDelete bool   `gorm:"column:is_delete;not null;default:false"`
}

// TableName overrides the gorm table name.
func (Stamp) TableName() string {
	return "m_stamp"
}

// MessageRow is the read model returned by FindMessages: the message columns
// delivered to clients plus the resolved stamp URL.
type MessageRow struct {
	MessageID int64
	SendType  int
	CompeNo   int
	MemberID  string
	Time      int64
	Message   *string
	Stamp     *string
}
