package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"meetai/pkg/domain"
)

var errNoDatabase = errors.New("statement capture pool has no database")

// capturePool satisfies gorm's connection interfaces without a database so
// dry-run statements can be inspected.
type capturePool struct{}

func (capturePool) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, errNoDatabase
}

func (capturePool) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoDatabase
}

func (capturePool) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoDatabase
}

func (capturePool) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (p capturePool) BeginTx(context.Context, *sql.TxOptions) (gorm.ConnPool, error) {
	return &captureTx{p}, nil
}

type captureTx struct{ capturePool }

func (*captureTx) Commit() error   { return nil }
func (*captureTx) Rollback() error { return nil }

type capturedUpdate struct {
	sql  string
	vars []any
}

func newDryRunStore(t *testing.T) (*GormStore, *[]capturedUpdate) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: capturePool{}}), &gorm.Config{
		DryRun: true,
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	var updates []capturedUpdate
	err = db.Callback().Update().After("gorm:update").Register("meetai:capture_update", func(tx *gorm.DB) {
		updates = append(updates, capturedUpdate{
			sql:  tx.Statement.SQL.String(),
			vars: append([]any(nil), tx.Statement.Vars...),
		})
	})
	if err != nil {
		t.Fatalf("register capture callback: %v", err)
	}
	return &GormStore{db: db}, &updates
}

func onlyUpdate(t *testing.T, updates []capturedUpdate) capturedUpdate {
	t.Helper()
	if len(updates) != 1 {
		t.Fatalf("expected one update statement, got %d: %+v", len(updates), updates)
	}
	return updates[0]
}

func whereClause(t *testing.T, stmt string) string {
	t.Helper()
	_, where, ok := strings.Cut(stmt, " WHERE ")
	if !ok {
		t.Fatalf("update without WHERE: %s", stmt)
	}
	return where
}

func TestGormStartMeetingGuardsOnUpcomingStatus(t *testing.T) {
	s, updates := newDryRunStore(t)
	if _, err := s.StartMeeting(context.Background(), "m1", time.Now()); err != nil {
		t.Fatalf("start meeting: %v", err)
	}
	u := onlyUpdate(t, *updates)
	if !strings.HasPrefix(u.sql, `UPDATE "meeting" SET`) {
		t.Fatalf("unexpected statement: %s", u.sql)
	}
	where := whereClause(t, u.sql)
	if !strings.Contains(where, "id = $") || !strings.Contains(where, "AND status = $") {
		t.Fatalf("start must be guarded by status, WHERE %s", where)
	}
	guard := u.vars[len(u.vars)-2:]
	if guard[0] != "m1" || guard[1] != string(domain.MeetingUpcoming) {
		t.Fatalf("guard vars = %v", guard)
	}
}

func TestGormCancelMeetingGuardsOnOwnerAndStatus(t *testing.T) {
	s, updates := newDryRunStore(t)
	if _, err := s.CancelMeeting(context.Background(), "owner-1", "m1", time.Now()); err != nil {
		t.Fatalf("cancel meeting: %v", err)
	}
	u := onlyUpdate(t, *updates)
	where := whereClause(t, u.sql)
	for _, cond := range []string{"id = $", "AND user_id = $", "AND status = $"} {
		if !strings.Contains(where, cond) {
			t.Fatalf("cancel WHERE %q lacks %q", where, cond)
		}
	}
	guard := u.vars[len(u.vars)-3:]
	if guard[0] != "m1" || guard[1] != "owner-1" || guard[2] != string(domain.MeetingUpcoming) {
		t.Fatalf("guard vars = %v", guard)
	}
	if !strings.Contains(u.sql, `"status"=`) || !containsVar(u.vars, string(domain.MeetingCancelled)) {
		t.Fatalf("cancel must set status cancelled: %s %v", u.sql, u.vars)
	}
}

func TestGormEndMeetingIsUnguarded(t *testing.T) {
	s, updates := newDryRunStore(t)
	if _, err := s.EndMeeting(context.Background(), "m1", time.Now()); err != nil {
		t.Fatalf("end meeting: %v", err)
	}
	where := whereClause(t, onlyUpdate(t, *updates).sql)
	if strings.Contains(where, "status") {
		t.Fatalf("end should match by id only, WHERE %s", where)
	}
}

func TestGormAppendUserMessageReservesQuotaInWhere(t *testing.T) {
	s, updates := newDryRunStore(t)
	msg := domain.ChatMessage{ID: "msg-1", ChatID: "chat-1", Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now()}
	allowed, err := s.AppendUserMessage(context.Background(), msg, 50)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if allowed {
		t.Fatalf("no row was reserved, append must not report success")
	}
	u := onlyUpdate(t, *updates)
	if !strings.HasPrefix(u.sql, `UPDATE "meeting_chat" SET "message_count"=message_count + 1`) {
		t.Fatalf("counter must be incremented in SQL: %s", u.sql)
	}
	where := whereClause(t, u.sql)
	if !strings.Contains(where, "id = $") || !strings.Contains(where, "AND message_count < $") {
		t.Fatalf("quota must be checked in the same statement, WHERE %s", where)
	}
	if got := u.vars[len(u.vars)-1]; got != 50 {
		t.Fatalf("limit var = %v, want 50", got)
	}
}

func TestGormAppendUserMessageUnlimitedSkipsQuota(t *testing.T) {
	s, updates := newDryRunStore(t)
	msg := domain.ChatMessage{ID: "msg-1", ChatID: "chat-1", Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now()}
	if _, err := s.AppendUserMessage(context.Background(), msg, domain.Unlimited); err != nil {
		t.Fatalf("append: %v", err)
	}
	if where := whereClause(t, onlyUpdate(t, *updates).sql); strings.Contains(where, "message_count") {
		t.Fatalf("unlimited chats must not compare the counter, WHERE %s", where)
	}
}

func containsVar(vars []any, want any) bool {
	for _, v := range vars {
		if v == want {
			return true
		}
	}
	return false
}

// openTestDatabase connects to MEETAI_TEST_DATABASE_URL and skips without it.
func openTestDatabase(t *testing.T) *GormStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("MEETAI_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("MEETAI_TEST_DATABASE_URL not set")
	}
	s, err := NewGormStore(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedGormMeeting(t *testing.T, s *GormStore, suffix string) (domain.User, domain.Meeting) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := domain.User{ID: "it-user-" + suffix, Name: "it", Email: "it-" + suffix + "@example.com", CreatedAt: now, UpdatedAt: now}
	if err := s.SaveUser(ctx, user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	t.Cleanup(func() { s.db.Exec(`DELETE FROM "user" WHERE id = ?`, user.ID) })
	agent := domain.Agent{ID: "it-agent-" + suffix, UserID: user.ID, Name: "it agent", Instructions: "help", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	meeting := domain.Meeting{ID: "it-meeting-" + suffix, Name: "it meeting", UserID: user.ID, AgentID: agent.ID, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	return user, meeting
}

func TestGormStoreMeetingTransitionsAgainstPostgres(t *testing.T) {
	s := openTestDatabase(t)
	ctx := context.Background()
	suffix := time.Now().Format("150405.000000")
	user, meeting := seedGormMeeting(t, s, suffix)

	ok, err := s.StartMeeting(ctx, meeting.ID, time.Now())
	if err != nil || !ok {
		t.Fatalf("first start: ok=%v err=%v", ok, err)
	}
	ok, err = s.StartMeeting(ctx, meeting.ID, time.Now())
	if err != nil || ok {
		t.Fatalf("second start must affect no rows: ok=%v err=%v", ok, err)
	}
	ok, err = s.CancelMeeting(ctx, user.ID, meeting.ID, time.Now())
	if err != nil || ok {
		t.Fatalf("active meeting must not be cancelled: ok=%v err=%v", ok, err)
	}
	got, _, err := s.GetMeeting(ctx, meeting.ID)
	if err != nil || got.Status != domain.MeetingActive {
		t.Fatalf("status = %q err=%v, want active", got.Status, err)
	}
}

func TestGormStoreChatQuotaAndCascadeAgainstPostgres(t *testing.T) {
	s := openTestDatabase(t)
	ctx := context.Background()
	suffix := time.Now().Format("150405.000000")
	user, meeting := seedGormMeeting(t, s, suffix)

	now := time.Now().UTC()
	chat, err := s.GetOrCreateChat(ctx, domain.MeetingChat{ID: "it-chat-" + suffix, MeetingID: meeting.ID, UserID: user.ID, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	const limit = 3
	accepted := 0
	for i := 0; i < limit+2; i++ {
		msg := domain.ChatMessage{
			ID:        "it-msg-" + suffix + "-" + string(rune('a'+i)),
			ChatID:    chat.ID,
			Role:      domain.RoleUser,
			Content:   "question",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		ok, err := s.AppendUserMessage(ctx, msg, limit)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if ok {
			accepted++
		}
	}
	if accepted != limit {
		t.Fatalf("accepted %d messages, want %d", accepted, limit)
	}
	stored, _, err := s.GetChat(ctx, chat.ID)
	if err != nil || stored.MessageCount != limit {
		t.Fatalf("message_count = %d err=%v, want %d", stored.MessageCount, err, limit)
	}

	deleted, err := s.DeleteMeeting(ctx, user.ID, meeting.ID)
	if err != nil || !deleted {
		t.Fatalf("delete meeting: ok=%v err=%v", deleted, err)
	}
	if _, found, err := s.GetChat(ctx, chat.ID); err != nil || found {
		t.Fatalf("chat survived meeting delete: found=%v err=%v", found, err)
	}
	msgs, err := s.ListChatMessages(ctx, chat.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages survived meeting delete: %d", len(msgs))
	}
}
