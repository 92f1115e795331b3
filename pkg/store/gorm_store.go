package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"meetai/pkg/domain"
)

const migrateLockID int64 = 51735173

const pgForeignKeyViolation = "23503"

var _ Store = (*GormStore)(nil)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// foreignKey describes one ON DELETE CASCADE constraint ensured at startup.
type foreignKey struct {
	table, column, refTable string
}

var cascadeKeys = []foreignKey{
	{"session", "user_id", "user"},
	{"account", "user_id", "user"},
	{"agent", "user_id", "user"},
	{"meeting", "user_id", "user"},
	{"meeting", "agent_id", "agent"},
	{"meeting_chat", "meeting_id", "meeting"},
	{"meeting_chat", "user_id", "user"},
	{"meeting_chat_message_user", "chat_id", "meeting_chat"},
	{"meeting_chat_message_agent", "chat_id", "meeting_chat"},
	{"meeting_chat_message_agent", "agent_id", "agent"},
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(
		&UserModel{}, &SessionModel{}, &AccountModel{}, &VerificationModel{},
		&AgentModel{}, &MeetingModel{}, &MeetingChatModel{},
		&UserMessageModel{}, &AgentMessageModel{}, &WebhookDeliveryModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, fk := range cascadeKeys {
		if err := ensureCascade(tx, fk); err != nil {
			return err
		}
	}
	return nil
}

func ensureCascade(tx *gorm.DB, fk foreignKey) error {
	name := fmt.Sprintf("%s_%s_fkey", fk.table, fk.column)
	stmt := fmt.Sprintf(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = '%[1]s'
				AND constraint_name = '%[3]s'
			) THEN
				ALTER TABLE "%[1]s"
				ADD CONSTRAINT %[3]s
				FOREIGN KEY (%[2]s) REFERENCES "%[4]s"(id) ON DELETE CASCADE;
			END IF;
		END $$;
	`, fk.table, fk.column, name, fk.refTable)
	if err := tx.Exec(stmt).Error; err != nil {
		return fmt.Errorf("ensure foreign key %s: %w", name, err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SQLDB exposes the pool for connection statistics.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	return s.db.DB()
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// mapWriteError turns FK violations into ErrMissingReference.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%w: %s", ErrMissingReference, pgErr.ConstraintName)
	}
	return err
}

func likePattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(search))
	return "%" + escaped + "%"
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "email_verified", "image", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserIDBySession resolves an unexpired session token.
func (s *GormStore) GetUserIDBySession(ctx context.Context, token string, now time.Time) (string, bool, error) {
	var model SessionModel
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now.UTC()).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return model.UserID, true, nil
}

const agentWithCount = `agent.*, (SELECT COUNT(*) FROM meeting WHERE meeting.agent_id = agent.id) AS meeting_count`

// CreateAgent inserts a new agent.
func (s *GormStore) CreateAgent(ctx context.Context, a domain.Agent) error {
	model := agentToModel(a)
	return mapWriteError(s.db.WithContext(ctx).Create(&model).Error)
}

// GetAgent returns an agent regardless of owner.
func (s *GormStore) GetAgent(ctx context.Context, id string) (domain.Agent, bool, error) {
	return s.findAgent(ctx, "agent.id = ?", id)
}

// GetOwnedAgent returns an agent only if ownerID owns it.
func (s *GormStore) GetOwnedAgent(ctx context.Context, ownerID, id string) (domain.Agent, bool, error) {
	return s.findAgent(ctx, "agent.id = ? AND agent.user_id = ?", id, ownerID)
}

func (s *GormStore) findAgent(ctx context.Context, query string, args ...any) (domain.Agent, bool, error) {
	var model AgentModel
	err := s.db.WithContext(ctx).Model(&AgentModel{}).
		Select(agentWithCount).
		Where(query, args...).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Agent{}, false, nil
		}
		return domain.Agent{}, false, err
	}
	return agentFromModel(model), true, nil
}

// ListAgents returns one page of an owner's agents, newest first, with the total count.
func (s *GormStore) ListAgents(ctx context.Context, ownerID, search string, page domain.Page) ([]domain.Agent, int64, error) {
	base := s.db.WithContext(ctx).Model(&AgentModel{}).Where("agent.user_id = ?", ownerID)
	if strings.TrimSpace(search) != "" {
		base = base.Where("agent.name ILIKE ?", likePattern(search))
	}
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []AgentModel
	if err := base.Session(&gorm.Session{}).
		Select(agentWithCount).
		Order("agent.created_at DESC").Order("agent.id DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	items := make([]domain.Agent, 0, len(models))
	for _, m := range models {
		items = append(items, agentFromModel(m))
	}
	return items, total, nil
}

// UpdateAgent writes name and instructions of an owned agent.
func (s *GormStore) UpdateAgent(ctx context.Context, a domain.Agent) (bool, error) {
	res := s.db.WithContext(ctx).Model(&AgentModel{}).
		Where("id = ? AND user_id = ?", a.ID, a.UserID).
		Updates(map[string]any{
			"name":         a.Name,
			"instructions": a.Instructions,
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// DeleteAgent removes an owned agent; meetings and their chats follow by FK cascade.
func (s *GormStore) DeleteAgent(ctx context.Context, ownerID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&AgentModel{}, "id = ? AND user_id = ?", id, ownerID)
	return res.RowsAffected > 0, res.Error
}

// CountAgents returns how many agents the owner has.
func (s *GormStore) CountAgents(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AgentModel{}).Where("user_id = ?", ownerID).Count(&count).Error
	return count, err
}

// CreateMeeting inserts a new meeting.
func (s *GormStore) CreateMeeting(ctx context.Context, m domain.Meeting) error {
	model := meetingToModel(m)
	return mapWriteError(s.db.WithContext(ctx).Create(&model).Error)
}

// GetMeeting returns a meeting regardless of owner.
func (s *GormStore) GetMeeting(ctx context.Context, id string) (domain.Meeting, bool, error) {
	return s.findMeeting(ctx, "id = ?", id)
}

// GetOwnedMeeting returns a meeting only if ownerID owns it.
func (s *GormStore) GetOwnedMeeting(ctx context.Context, ownerID, id string) (domain.Meeting, bool, error) {
	return s.findMeeting(ctx, "id = ? AND user_id = ?", id, ownerID)
}

func (s *GormStore) findMeeting(ctx context.Context, query string, args ...any) (domain.Meeting, bool, error) {
	var model MeetingModel
	if err := s.db.WithContext(ctx).Where(query, args...).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Meeting{}, false, nil
		}
		return domain.Meeting{}, false, err
	}
	return meetingFromModel(model), true, nil
}

// ListMeetings returns one page of an owner's meetings, newest first, with the total count.
func (s *GormStore) ListMeetings(ctx context.Context, ownerID string, filter domain.MeetingFilter, page domain.Page) ([]domain.Meeting, int64, error) {
	base := s.db.WithContext(ctx).Model(&MeetingModel{}).Where("user_id = ?", ownerID)
	if strings.TrimSpace(filter.Search) != "" {
		base = base.Where("name ILIKE ?", likePattern(filter.Search))
	}
	if filter.Status != "" {
		base = base.Where("status = ?", string(filter.Status))
	}
	if filter.AgentID != "" {
		base = base.Where("agent_id = ?", filter.AgentID)
	}
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []MeetingModel
	if err := base.Session(&gorm.Session{}).
		Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	items := make([]domain.Meeting, 0, len(models))
	for _, m := range models {
		items = append(items, meetingFromModel(m))
	}
	return items, total, nil
}

// UpdateMeeting writes name and agent of an owned meeting.
func (s *GormStore) UpdateMeeting(ctx context.Context, m domain.Meeting) (bool, error) {
	res := s.db.WithContext(ctx).Model(&MeetingModel{}).
		Where("id = ? AND user_id = ?", m.ID, m.UserID).
		Updates(map[string]any{
			"name":       m.Name,
			"agent_id":   m.AgentID,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, mapWriteError(res.Error)
}

// DeleteMeeting removes an owned meeting in any status.
func (s *GormStore) DeleteMeeting(ctx context.Context, ownerID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&MeetingModel{}, "id = ? AND user_id = ?", id, ownerID)
	return res.RowsAffected > 0, res.Error
}

// CountMeetings counts the owner's meetings created since the given time.
func (s *GormStore) CountMeetings(ctx context.Context, ownerID string, since time.Time) (int64, error) {
	tx := s.db.WithContext(ctx).Model(&MeetingModel{}).Where("user_id = ?", ownerID)
	if !since.IsZero() {
		tx = tx.Where("created_at >= ?", since.UTC())
	}
	var count int64
	err := tx.Count(&count).Error
	return count, err
}

func (s *GormStore) updateMeeting(ctx context.Context, where string, args []any, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&MeetingModel{}).Where(where, args...).Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// StartMeeting moves an upcoming meeting to active. A meeting in any other
// status is left untouched and reported as unchanged.
func (s *GormStore) StartMeeting(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.updateMeeting(ctx, "id = ? AND status = ?", []any{id, string(domain.MeetingUpcoming)}, map[string]any{
		"status":     string(domain.MeetingActive),
		"started_at": at.UTC(),
	})
}

// EndMeeting moves a meeting to processing.
func (s *GormStore) EndMeeting(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.updateMeeting(ctx, "id = ?", []any{id}, map[string]any{
		"status":   string(domain.MeetingProcessing),
		"ended_at": at.UTC(),
	})
}

// CancelMeeting cancels an owned meeting that has not started yet.
func (s *GormStore) CancelMeeting(ctx context.Context, ownerID, id string, at time.Time) (bool, error) {
	return s.updateMeeting(ctx, "id = ? AND user_id = ? AND status = ?", []any{id, ownerID, string(domain.MeetingUpcoming)}, map[string]any{
		"status":   string(domain.MeetingCancelled),
		"ended_at": at.UTC(),
	})
}

// CompleteMeeting stores the summary and marks the meeting completed.
func (s *GormStore) CompleteMeeting(ctx context.Context, id, summary string) (bool, error) {
	return s.updateMeeting(ctx, "id = ?", []any{id}, map[string]any{
		"status":  string(domain.MeetingCompleted),
		"summary": summary,
	})
}

func (s *GormStore) SetTranscriptURL(ctx context.Context, id, url string) (bool, error) {
	return s.updateMeeting(ctx, "id = ?", []any{id}, map[string]any{"transcript_url": url})
}

func (s *GormStore) SetRecordingURL(ctx context.Context, id, url string) (bool, error) {
	return s.updateMeeting(ctx, "id = ?", []any{id}, map[string]any{"recording_url": url})
}

// GetOrCreateChat returns the meeting's chat, creating it from chat when absent.
func (s *GormStore) GetOrCreateChat(ctx context.Context, chat domain.MeetingChat) (domain.MeetingChat, error) {
	model := chatToModel(chat)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meeting_id"}},
		DoNothing: true,
	}).Create(&model).Error
	if err != nil {
		return domain.MeetingChat{}, mapWriteError(err)
	}
	existing, ok, err := s.GetChatByMeeting(ctx, chat.MeetingID)
	if err != nil {
		return domain.MeetingChat{}, err
	}
	if !ok {
		return domain.MeetingChat{}, fmt.Errorf("chat for meeting %s vanished after upsert", chat.MeetingID)
	}
	return existing, nil
}

func (s *GormStore) GetChat(ctx context.Context, id string) (domain.MeetingChat, bool, error) {
	return s.findChat(ctx, "id = ?", id)
}

func (s *GormStore) GetChatByMeeting(ctx context.Context, meetingID string) (domain.MeetingChat, bool, error) {
	return s.findChat(ctx, "meeting_id = ?", meetingID)
}

func (s *GormStore) findChat(ctx context.Context, query string, args ...any) (domain.MeetingChat, bool, error) {
	var model MeetingChatModel
	if err := s.db.WithContext(ctx).Where(query, args...).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MeetingChat{}, false, nil
		}
		return domain.MeetingChat{}, false, err
	}
	return chatFromModel(model), true, nil
}

// AppendUserMessage reserves one unit of the chat's message quota and stores
// the message in the same transaction.
func (s *GormStore) AppendUserMessage(ctx context.Context, msg domain.ChatMessage, limit int) (bool, error) {
	allowed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&MeetingChatModel{}).Where("id = ?", msg.ChatID)
		if limit != domain.Unlimited {
			q = q.Where("message_count < ?", limit)
		}
		res := q.Updates(map[string]any{
			"message_count": gorm.Expr("message_count + 1"),
			"updated_at":    time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		model := UserMessageModel{ID: msg.ID, ChatID: msg.ChatID, Content: msg.Content, CreatedAt: msg.CreatedAt}
		if err := tx.Create(&model).Error; err != nil {
			return mapWriteError(err)
		}
		allowed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// AppendAgentMessage stores an agent reply; it does not count against the quota.
func (s *GormStore) AppendAgentMessage(ctx context.Context, msg domain.ChatMessage) error {
	model := AgentMessageModel{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		AgentID:   msg.AgentID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	return mapWriteError(s.db.WithContext(ctx).Create(&model).Error)
}

type mergedMessageRow struct {
	ID        string
	ChatID    string
	Role      string
	AgentID   string
	Content   string
	CreatedAt time.Time
}

// ListChatMessages merges user and agent messages by created_at; user rows
// sort before agent rows on ties.
func (s *GormStore) ListChatMessages(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error) {
	const merged = `
		SELECT id, chat_id, 'user' AS role, '' AS agent_id, content, created_at, 0 AS ord
		FROM meeting_chat_message_user WHERE chat_id = @chat
		UNION ALL
		SELECT id, chat_id, 'agent' AS role, agent_id, content, created_at, 1 AS ord
		FROM meeting_chat_message_agent WHERE chat_id = @chat`
	query := `SELECT id, chat_id, role, agent_id, content, created_at FROM (` + merged + `) m ORDER BY created_at ASC, ord ASC`
	args := map[string]any{"chat": chatID}
	if limit > 0 {
		query = `SELECT id, chat_id, role, agent_id, content, created_at FROM (
			SELECT * FROM (` + merged + `) m ORDER BY created_at DESC, ord DESC LIMIT @limit
		) t ORDER BY created_at ASC, ord ASC`
		args["limit"] = limit
	}
	var rows []mergedMessageRow
	if err := s.db.WithContext(ctx).Raw(query, args).Scan(&rows).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.ChatMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, domain.ChatMessage{
			ID:        r.ID,
			ChatID:    r.ChatID,
			Role:      domain.MessageRole(r.Role),
			AgentID:   r.AgentID,
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}
	return msgs, nil
}

// RecordWebhookDelivery appends one webhook audit row.
func (s *GormStore) RecordWebhookDelivery(ctx context.Context, d domain.WebhookDelivery) error {
	model := WebhookDeliveryModel{
		ID:         d.ID,
		EventType:  d.EventType,
		MeetingID:  d.MeetingID,
		Payload:    jsonPayload(d.Payload),
		Outcome:    d.Outcome,
		ReceivedAt: d.ReceivedAt,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// jsonPayload keeps valid JSON as-is and wraps anything else as a JSON string.
func jsonPayload(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	if json.Valid(raw) {
		return raw
	}
	wrapped, _ := json.Marshal(string(raw))
	return wrapped
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Image:         u.Image,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:            m.ID,
		Name:          m.Name,
		Email:         m.Email,
		EmailVerified: m.EmailVerified,
		Image:         m.Image,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func agentToModel(a domain.Agent) AgentModel {
	return AgentModel{
		ID:           a.ID,
		UserID:       a.UserID,
		Name:         a.Name,
		Instructions: a.Instructions,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func agentFromModel(m AgentModel) domain.Agent {
	return domain.Agent{
		ID:           m.ID,
		UserID:       m.UserID,
		Name:         m.Name,
		Instructions: m.Instructions,
		MeetingCount: m.MeetingCount,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func meetingToModel(m domain.Meeting) MeetingModel {
	status := m.Status
	if status == "" {
		status = domain.MeetingUpcoming
	}
	return MeetingModel{
		ID:            m.ID,
		Name:          m.Name,
		UserID:        m.UserID,
		AgentID:       m.AgentID,
		Status:        string(status),
		StartedAt:     m.StartedAt,
		EndedAt:       m.EndedAt,
		TranscriptURL: m.TranscriptURL,
		RecordingURL:  m.RecordingURL,
		Summary:       m.Summary,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func meetingFromModel(m MeetingModel) domain.Meeting {
	return domain.Meeting{
		ID:            m.ID,
		Name:          m.Name,
		UserID:        m.UserID,
		AgentID:       m.AgentID,
		Status:        domain.MeetingStatus(m.Status),
		StartedAt:     m.StartedAt,
		EndedAt:       m.EndedAt,
		TranscriptURL: m.TranscriptURL,
		RecordingURL:  m.RecordingURL,
		Summary:       m.Summary,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func chatToModel(c domain.MeetingChat) MeetingChatModel {
	return MeetingChatModel{
		ID:           c.ID,
		MeetingID:    c.MeetingID,
		UserID:       c.UserID,
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func chatFromModel(m MeetingChatModel) domain.MeetingChat {
	return domain.MeetingChat{
		ID:           m.ID,
		MeetingID:    m.MeetingID,
		UserID:       m.UserID,
		MessageCount: m.MessageCount,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
