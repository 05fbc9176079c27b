package service

import (
	"context"
	"errors"
	"testing"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/common/config"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/database"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/compechat"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type fakeConn struct {
	id       string
	writes   [][]byte
	writeErr error
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) WriteText(data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, data)
	return nil
}

var _ session.Conn = (*fakeConn)(nil)

type fakeDB struct {
	saved    []*database.Message
	rows     []*database.MessageRow
	stamps   []*database.Stamp
	stampURL map[int64]string
	err      error

	lastQuery *database.MessageQuery
}

var _ database.Database = (*fakeDB)(nil)

func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) SaveMessage(_ context.Context, m *database.Message) error {
	if f.err != nil {
		return f.err
	}
	m.MessageID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, m)
	return nil
}

func (f *fakeDB) FindMessages(_ context.Context, q *database.MessageQuery) ([]*database.MessageRow, error) {
	f.lastQuery = q
	return f.rows, f.err
}

func (f *fakeDB) FindStamps(context.Context) ([]*database.Stamp, error) {
	return f.stamps, f.err
}

func (f *fakeDB) FindStamp(_ context.Context, stampID int64) (*database.Stamp, error) {
	if f.err != nil {
		return nil, f.err
	}
	url, ok := f.stampURL[stampID]
	if !ok {
		return nil, nil
	}
	return &database.Stamp{StampID: stampID, StampURL: url}, nil
}

func testRegistry() *session.Registry {
	return session.NewRegistry(zap.NewNop())
}

func joined(t *testing.T, reg *session.Registry, compeNo int, memberID string, level compechat.ReceptLevel) (*session.Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{id: memberID + "-conn"}
	sess := session.New(conn)
	sess.CompeNo = compeNo
	sess.MemberID = memberID
	sess.ReceptLevel = level
	reg.Add(sess)
	return sess, conn
}

func form(s string) gjson.Result {
	return gjson.Parse(s)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(config.MetricsConfig{Namespace: "test"})
}

func TestNewServices_CoversAllRequestMethods(t *testing.T) {
	table := NewServices(zap.NewNop(), &fakeDB{}, testRegistry(), testMetrics())

	for _, method := range []compechat.Method{
		compechat.MethodInit,
		compechat.MethodGetMessages,
		compechat.MethodSendMessage,
		compechat.MethodGetStamps,
		compechat.MethodGetNewMessages,
	} {
		svc, ok := table[method]
		require.True(t, ok, "missing service for %s", method)
		assert.Equal(t, method, svc.Method())
	}
	assert.NotContains(t, table, compechat.MethodMessagesFromSend)
}

func TestInitService_Validate(t *testing.T) {
	svc := NewInitService(zap.NewNop(), testRegistry())

	tests := []struct {
		name  string
		form  string
		valid bool
	}{
		{"valid", `{"method":1,"init":{"compe_no":5,"member_id":"A","recept_level":2}}`, true},
		{"numeric string compe_no", `{"method":1,"init":{"compe_no":"5","member_id":"A","recept_level":1}}`, true},
		{"missing block", `{"method":1}`, false},
		{"missing compe_no", `{"method":1,"init":{"member_id":"A","recept_level":2}}`, false},
		{"non-numeric compe_no", `{"method":1,"init":{"compe_no":"abc","member_id":"A","recept_level":2}}`, false},
		{"empty member_id", `{"method":1,"init":{"compe_no":5,"member_id":"  ","recept_level":2}}`, false},
		{"null member_id", `{"method":1,"init":{"compe_no":5,"member_id":null,"recept_level":2}}`, false},
		{"missing recept_level", `{"method":1,"init":{"compe_no":5,"member_id":"A"}}`, false},
		{"invalid recept_level", `{"method":1,"init":{"compe_no":5,"member_id":"A","recept_level":3}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := svc.Validate(form(tt.form))
			require.NotNil(t, info)
			assert.Equal(t, tt.valid, info.Valid(), "errors: %v", info.Errors())
		})
	}
}

func TestInitService_ExecuteRegistersSession(t *testing.T) {
	reg := testRegistry()
	svc := NewInitService(zap.NewNop(), reg)
	conn := &fakeConn{id: "c1"}

	sess := svc.Session(conn)
	require.NotNil(t, sess)

	result, err := svc.Execute(context.Background(), sess,
		form(`{"method":1,"init":{"compe_no":"5","member_id":"A","recept_level":2}}`))
	assert.NoError(t, err)
	assert.Equal(t, compechat.Success, result.Status)

	got := reg.Get("c1")
	require.NotNil(t, got)
	assert.Equal(t, 5, got.CompeNo)
	assert.Equal(t, "A", got.MemberID)
	assert.Equal(t, compechat.ReceptAll, got.ReceptLevel)
}

func TestInitService_RejoinReplacesSession(t *testing.T) {
	reg := testRegistry()
	svc := NewInitService(zap.NewNop(), reg)
	conn := &fakeConn{id: "c1"}

	for _, compeNo := range []string{"5", "6"} {
		sess := svc.Session(conn)
		_, err := svc.Execute(context.Background(), sess,
			form(`{"method":1,"init":{"compe_no":`+compeNo+`,"member_id":"A","recept_level":1}}`))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, reg.Len())
	assert.Len(t, reg.GetByCompe(5), 0)
	assert.Len(t, reg.GetByCompe(6), 1)
}

func TestGetMessagesService_Validate(t *testing.T) {
	svc := NewGetMessagesService(zap.NewNop(), &fakeDB{}, testRegistry())

	tests := []struct {
		name  string
		form  string
		valid bool
	}{
		{"valid", `{"method":2,"get_messages":{"before_time":0,"count":100}}`, true},
		{"numeric strings", `{"method":2,"get_messages":{"before_time":"0","count":"100"}}`, true},
		{"missing block", `{"method":2}`, false},
		{"missing before_time", `{"method":2,"get_messages":{"count":100}}`, false},
		{"non-numeric count", `{"method":2,"get_messages":{"before_time":0,"count":"many"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, svc.Validate(form(tt.form)).Valid())
		})
	}
}

func TestGetMessagesService_Execute(t *testing.T) {
	text := "hello"
	db := &fakeDB{rows: []*database.MessageRow{
		{MessageID: 7, SendType: 1, CompeNo: 5, MemberID: "B", Time: 1000, Message: &text},
	}}
	reg := testRegistry()
	sess, _ := joined(t, reg, 5, "A", compechat.ReceptGallery)
	svc := NewGetMessagesService(zap.NewNop(), db, reg)

	result, err := svc.Execute(context.Background(), sess,
		form(`{"method":2,"get_messages":{"before_time":2000,"count":10}}`))
	assert.NoError(t, err)
	assert.Equal(t, compechat.Success, result.Status)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, int64(7), result.Messages[0].MessageID)
	assert.Equal(t, "hello", *result.Messages[0].Message)

	require.NotNil(t, db.lastQuery)
	assert.Equal(t, 5, db.lastQuery.CompeNo)
	assert.Equal(t, "A", db.lastQuery.MemberID)
	assert.False(t, db.lastQuery.ReceptAll)
	assert.Equal(t, int64(2000), db.lastQuery.BeforeTime)
	assert.Equal(t, int64(10), db.lastQuery.Count)
	assert.False(t, db.lastQuery.ExcludeSelf)
}

func TestGetMessagesService_EmptyHistoryKeepsMessagesKey(t *testing.T) {
	reg := testRegistry()
	sess, _ := joined(t, reg, 5, "A", compechat.ReceptAll)
	svc := NewGetMessagesService(zap.NewNop(), &fakeDB{}, reg)

	result, err := svc.Execute(context.Background(), sess,
		form(`{"method":2,"get_messages":{"before_time":0,"count":10}}`))
	assert.NoError(t, err)
	require.NotNil(t, result.Messages)
	assert.Len(t, result.Messages, 0)

	data, err := result.Encode()
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"messages":[]`)
}

func TestGetNewMessagesService_ExcludesSelf(t *testing.T) {
	db := &fakeDB{}
	reg := testRegistry()
	sess, _ := joined(t, reg, 5, "A", compechat.ReceptAll)
	svc := NewGetNewMessagesService(zap.NewNop(), db, reg)

	result, err := svc.Execute(context.Background(), sess,
		form(`{"method":5,"get_new_messages":{"count":20}}`))
	assert.NoError(t, err)
	assert.Equal(t, compechat.Success, result.Status)

	require.NotNil(t, db.lastQuery)
	assert.True(t, db.lastQuery.ReceptAll)
	assert.True(t, db.lastQuery.ExcludeSelf)
	assert.Zero(t, db.lastQuery.BeforeTime)
	assert.Equal(t, int64(20), db.lastQuery.Count)
}

func TestSendMessageService_Validate(t *testing.T) {
	svc := NewSendMessageService(zap.NewNop(), &fakeDB{}, testRegistry(), testMetrics())

	tests := []struct {
		name  string
		form  string
		valid bool
	}{
		{"broadcast text", `{"method":3,"send_message":{"send_type":1,"dest_member_id":null,"message":"hi","stamp_id":null}}`, true},
		{"compe stamp", `{"method":3,"send_message":{"send_type":2,"dest_member_id":null,"message":null,"stamp_id":4}}`, true},
		{"direct text", `{"method":3,"send_message":{"send_type":3,"dest_member_id":"B","message":"hi","stamp_id":null}}`, true},
		{"missing block", `{"method":3}`, false},
		{"no body", `{"method":3,"send_message":{"send_type":1,"dest_member_id":null,"message":null,"stamp_id":null}}`, false},
		{"blank text only", `{"method":3,"send_message":{"send_type":1,"dest_member_id":null,"message":"  ","stamp_id":null}}`, false},
		{"missing send_type", `{"method":3,"send_message":{"dest_member_id":null,"message":"hi"}}`, false},
		{"unknown send_type", `{"method":3,"send_message":{"send_type":9,"dest_member_id":null,"message":"hi"}}`, false},
		{"direct without dest", `{"method":3,"send_message":{"send_type":3,"dest_member_id":null,"message":"hi"}}`, false},
		{"broadcast with dest", `{"method":3,"send_message":{"send_type":1,"dest_member_id":"B","message":"hi"}}`, false},
		{"compe with dest", `{"method":3,"send_message":{"send_type":2,"dest_member_id":"B","message":"hi"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := svc.Validate(form(tt.form))
			assert.Equal(t, tt.valid, info.Valid(), "errors: %v", info.Errors())
		})
	}
}

func TestSendMessageService_BroadcastFanout(t *testing.T) {
	db := &fakeDB{}
	reg := testRegistry()
	sender, senderConn := joined(t, reg, 5, "A", compechat.ReceptAll)
	_, galleryConn := joined(t, reg, 5, "B", compechat.ReceptGallery)
	_, otherCompeConn := joined(t, reg, 6, "C", compechat.ReceptAll)
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	result, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":1,"dest_member_id":null,"message":"hello","stamp_id":null}}`))
	assert.NoError(t, err)
	assert.Equal(t, compechat.Success, result.Status)
	assert.Nil(t, result.Messages)

	require.Len(t, db.saved, 1)
	assert.Equal(t, 1, db.saved[0].SendType)
	assert.Equal(t, 5, db.saved[0].CompeNo)
	assert.Equal(t, "A", db.saved[0].MemberID)
	assert.NotZero(t, db.saved[0].Time)

	// everyone in the competition gets the push, other competitions do not
	require.Len(t, senderConn.writes, 1)
	require.Len(t, galleryConn.writes, 1)
	assert.Len(t, otherCompeConn.writes, 0)

	push := gjson.ParseBytes(galleryConn.writes[0])
	assert.Equal(t, int64(99), push.Get("method").Int())
	assert.Equal(t, int64(0), push.Get("status").Int())
	require.Len(t, push.Get("messages").Array(), 1)
	assert.Equal(t, "hello", push.Get("messages.0.message").String())
	assert.Equal(t, "A", push.Get("messages.0.member_id").String())
}

func TestSendMessageService_CompeSkipsGallery(t *testing.T) {
	db := &fakeDB{}
	reg := testRegistry()
	sender, senderConn := joined(t, reg, 5, "A", compechat.ReceptAll)
	_, galleryConn := joined(t, reg, 5, "B", compechat.ReceptGallery)
	_, memberConn := joined(t, reg, 5, "C", compechat.ReceptAll)
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	_, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":2,"dest_member_id":null,"message":"members","stamp_id":null}}`))
	assert.NoError(t, err)

	assert.Len(t, senderConn.writes, 1)
	assert.Len(t, memberConn.writes, 1)
	assert.Len(t, galleryConn.writes, 0)
}

func TestSendMessageService_DirectDelivery(t *testing.T) {
	db := &fakeDB{}
	reg := testRegistry()
	sender, senderConn := joined(t, reg, 5, "A", compechat.ReceptAll)
	_, destConn := joined(t, reg, 5, "B", compechat.ReceptGallery)
	_, bystanderConn := joined(t, reg, 5, "C", compechat.ReceptAll)
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	_, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":3,"dest_member_id":"B","message":"psst","stamp_id":null}}`))
	assert.NoError(t, err)

	assert.Len(t, senderConn.writes, 1)
	assert.Len(t, destConn.writes, 1)
	assert.Len(t, bystanderConn.writes, 0)
}

func TestSendMessageService_DirectToSelfDeliversTwice(t *testing.T) {
	db := &fakeDB{}
	reg := testRegistry()
	sender, senderConn := joined(t, reg, 5, "A", compechat.ReceptAll)
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	_, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":3,"dest_member_id":"A","message":"note","stamp_id":null}}`))
	assert.NoError(t, err)

	// sender resolved once as sender and once as destination
	assert.Len(t, senderConn.writes, 2)
}

func TestSendMessageService_DirectToOfflineStillSucceeds(t *testing.T) {
	db := &fakeDB{}
	reg := testRegistry()
	sender, senderConn := joined(t, reg, 5, "A", compechat.ReceptAll)
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	result, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":3,"dest_member_id":"offline","message":"hi","stamp_id":null}}`))
	assert.NoError(t, err)
	assert.Equal(t, compechat.Success, result.Status)
	assert.Len(t, db.saved, 1)
	assert.Len(t, senderConn.writes, 1)
}

func TestSendMessageService_FailingWriteSkipsTarget(t *testing.T) {
	db := &fakeDB{}
	reg := testRegistry()
	sender, _ := joined(t, reg, 5, "A", compechat.ReceptAll)
	_, okConn := joined(t, reg, 5, "B", compechat.ReceptAll)
	_, brokenConn := joined(t, reg, 5, "C", compechat.ReceptAll)
	brokenConn.writeErr = errors.New("connection reset")
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	result, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":1,"dest_member_id":null,"message":"hi","stamp_id":null}}`))
	assert.NoError(t, err)
	assert.Equal(t, compechat.Success, result.Status)
	assert.Len(t, okConn.writes, 1)
	assert.Len(t, brokenConn.writes, 0)
}

func TestSendMessageService_StampResolvedInPush(t *testing.T) {
	db := &fakeDB{stampURL: map[int64]string{4: "/stamps/nice.png"}}
	reg := testRegistry()
	sender, senderConn := joined(t, reg, 5, "A", compechat.ReceptAll)
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	_, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":1,"dest_member_id":null,"message":null,"stamp_id":"4"}}`))
	assert.NoError(t, err)

	require.Len(t, db.saved, 1)
	require.NotNil(t, db.saved[0].StampID)
	assert.Equal(t, int64(4), *db.saved[0].StampID)

	require.Len(t, senderConn.writes, 1)
	push := gjson.ParseBytes(senderConn.writes[0])
	assert.Equal(t, "/stamps/nice.png", push.Get("messages.0.stamp").String())
	assert.True(t, push.Get("messages.0.message").Exists())
	assert.Equal(t, gjson.Null, push.Get("messages.0.message").Type)
}

func TestSendMessageService_UnknownStampStillSucceeds(t *testing.T) {
	db := &fakeDB{}
	reg := testRegistry()
	sender, senderConn := joined(t, reg, 5, "A", compechat.ReceptAll)
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	result, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":1,"dest_member_id":null,"message":null,"stamp_id":999}}`))
	assert.NoError(t, err)
	assert.Equal(t, compechat.Success, result.Status)

	require.Len(t, senderConn.writes, 1)
	push := gjson.ParseBytes(senderConn.writes[0])
	assert.Equal(t, gjson.Null, push.Get("messages.0.stamp").Type)
}

func TestSendMessageService_SaveFailurePropagates(t *testing.T) {
	db := &fakeDB{err: errors.New("db down")}
	reg := testRegistry()
	sender, senderConn := joined(t, reg, 5, "A", compechat.ReceptAll)
	svc := NewSendMessageService(zap.NewNop(), db, reg, testMetrics())

	result, err := svc.Execute(context.Background(), sender,
		form(`{"method":3,"send_message":{"send_type":1,"dest_member_id":null,"message":"hi","stamp_id":null}}`))
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Len(t, senderConn.writes, 0)
}

func TestGetStampsService_Execute(t *testing.T) {
	db := &fakeDB{stamps: []*database.Stamp{
		{StampID: 1, StampURL: "/stamps/1.png"},
		{StampID: 2, StampURL: "/stamps/2.png"},
	}}
	svc := NewGetStampsService(zap.NewNop(), db, testRegistry())

	assert.True(t, svc.Validate(form(`{"method":4}`)).Valid())

	result, err := svc.Execute(context.Background(), nil, form(`{"method":4}`))
	assert.NoError(t, err)
	assert.Equal(t, compechat.Success, result.Status)
	require.Len(t, result.Stamps, 2)
	assert.Equal(t, int64(1), result.Stamps[0].StampID)
	assert.Equal(t, "/stamps/1.png", result.Stamps[0].StampURL)
	assert.Nil(t, result.Messages)
}

func TestBaseSession_RequiresJoin(t *testing.T) {
	reg := testRegistry()
	svc := NewGetMessagesService(zap.NewNop(), &fakeDB{}, reg)

	assert.Nil(t, svc.Session(&fakeConn{id: "stranger"}))

	sess, conn := joined(t, reg, 5, "A", compechat.ReceptAll)
	assert.Same(t, sess, svc.Session(conn))
}
