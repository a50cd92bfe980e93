package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"controlhub/internal/platform/database"
	"controlhub/internal/platform/models"
)

const (
	ActionRun     = "automation.run"
	ActionStop    = "automation.stop"
	ActionRestart = "automation.restart"
	ActionDelete  = "automation.delete"
)

type Entry struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     map[string]interface{}
	IPAddress    string
	UserAgent    string
}

// Logger writes audit entries in the background so request latency does not
// depend on the audit table.
type Logger struct {
	db  *database.DB
	wg  sync.WaitGroup
	now func() time.Time
}

func NewLogger(db *database.DB) *Logger {
	return &Logger{db: db, now: time.Now}
}

func (l *Logger) Log(entry Entry) {
	if entry.IPAddress == "" {
		entry.IPAddress = "unknown"
	}
	if entry.UserAgent == "" {
		entry.UserAgent = "unknown"
	}

	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		metaJSON = []byte("{}")
	}

	id := "audit_" + uuid.New().String()
	createdAt := l.now().Unix()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		query, args, err := l.db.Builder().
			Insert("audit_logs").
			Columns("id", "user_id", "action", "resource_type", "resource_id", "metadata", "ip_address", "user_agent", "created_at").
			Values(id, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, string(metaJSON), entry.IPAddress, entry.UserAgent, createdAt).
			ToSql()
		if err == nil {
			_, err = l.db.ExecContext(context.Background(), query, args...)
		}
		if err != nil {
			log.Error().Err(err).Str("action", entry.Action).Str("resource_id", entry.ResourceID).Msg("failed to write audit log")
		}
	}()
}

// Wait blocks until every pending entry has been written.
func (l *Logger) Wait() {
	l.wg.Wait()
}

func (l *Logger) List(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	query, args, err := l.db.Builder().
		Select("id", "user_id", "action", "resource_type", "resource_id", "metadata", "ip_address", "user_agent", "created_at").
		From("audit_logs").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		var entry models.AuditLog
		var metaStr, ip, ua sql.NullString
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.ResourceType, &entry.ResourceID, &metaStr, &ip, &ua, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if metaStr.Valid {
			json.Unmarshal([]byte(metaStr.String), &entry.Metadata)
		}
		entry.IPAddress = ip.String
		entry.UserAgent = ua.String
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
