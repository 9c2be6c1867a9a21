package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// AuditStore persists audit events
type AuditStore interface {
	SaveEvent(event *AuditEvent) error
	SaveEventAsync(event *AuditEvent)
	QueryEvents(ctx context.Context, filters AuditQueryFilters) ([]*AuditEvent, error)
	CountEvents(ctx context.Context, filters AuditQueryFilters) (int, error)
	GetEventByID(ctx context.Context, id string) (*AuditEvent, error)
	CleanupOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// AuditQueryFilters narrows audit event queries
type AuditQueryFilters struct {
	EventType string
	TokenID   string
	AccountID string
	Action    string
	Status    string
	Resource  string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}

const defaultAuditRetention = 30 * 24 * time.Hour

// SQLiteAuditStore stores audit events in a SQLite database
type SQLiteAuditStore struct {
	db        *sql.DB
	logger    *Logger
	retention time.Duration
	eventChan chan *AuditEvent
	done      chan struct{}
}

// NewSQLiteAuditStore creates an audit store with the default retention period
func NewSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	return NewSQLiteAuditStoreWithRetention(path, defaultAuditRetention)
}

// NewSQLiteAuditStoreWithRetention creates an audit store that purges events
// older than the given retention period. A non-positive retention disables
// the background purge.
func NewSQLiteAuditStoreWithRetention(path string, retention time.Duration) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteAuditStore{
		db:        db,
		logger:    NewLogger(),
		retention: retention,
		eventChan: make(chan *AuditEvent, 256),
		done:      make(chan struct{}),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	go s.writeLoop()
	if retention > 0 {
		go s.retentionLoop()
	}

	return s, nil
}

func (s *SQLiteAuditStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		event_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		token_id TEXT,
		account_id TEXT,
		ip_address TEXT,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		status TEXT NOT NULL,
		details TEXT,
		error_message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_token ON audit_events(token_id);
	CREATE INDEX IF NOT EXISTS idx_audit_account ON audit_events(account_id);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate audit schema: %w", err)
	}
	return nil
}

// SaveEvent persists an audit event synchronously
func (s *SQLiteAuditStore) SaveEvent(event *AuditEvent) error {
	var details sql.NullString
	if len(event.Details) > 0 {
		data, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		details = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_events
		(id, timestamp, event_type, severity, token_id, account_id, ip_address, action, resource, status, details, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC(), string(event.EventType), string(event.Severity),
		event.TokenID, event.AccountID, event.IPAddress,
		event.Action, event.Resource, string(event.Status),
		details, event.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

// SaveEventAsync queues an audit event for background persistence,
// dropping it when the queue is full or the store is closed
func (s *SQLiteAuditStore) SaveEventAsync(event *AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("audit event dropped after store close", "event_type", string(event.EventType))
		}
	}()
	select {
	case s.eventChan <- event:
	default:
		s.logger.Warn("audit event queue full, dropping event", "event_type", string(event.EventType))
	}
}

func (s *SQLiteAuditStore) writeLoop() {
	for {
		select {
		case event, ok := <-s.eventChan:
			if !ok {
				return
			}
			if err := s.SaveEvent(event); err != nil {
				s.logger.Error("failed to persist audit event", "error", err.Error(), "event_type", string(event.EventType))
			}
		case <-s.done:
			// drain what's queued before exiting
			for {
				select {
				case event := <-s.eventChan:
					if err := s.SaveEvent(event); err != nil {
						s.logger.Error("failed to persist audit event", "error", err.Error())
					}
				default:
					return
				}
			}
		}
	}
}

func (s *SQLiteAuditStore) retentionLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupOldData()
		case <-s.done:
			return
		}
	}
}

func (s *SQLiteAuditStore) cleanupOldData() {
	if s.retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	deleted, err := s.CleanupOldEvents(ctx, s.retention)
	if err != nil {
		s.logger.Error("audit retention cleanup failed", "error", err.Error())
		return
	}
	if deleted > 0 {
		s.logger.Info("purged expired audit events", "deleted", deleted)
	}
}

func buildAuditWhere(filters AuditQueryFilters) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}

	if filters.EventType != "" {
		add("event_type = ?", filters.EventType)
	}
	if filters.TokenID != "" {
		add("token_id = ?", filters.TokenID)
	}
	if filters.AccountID != "" {
		add("account_id = ?", filters.AccountID)
	}
	if filters.Action != "" {
		add("action LIKE ?", filters.Action+"%")
	}
	if filters.Status != "" {
		add("status = ?", filters.Status)
	}
	if filters.Resource != "" {
		add("resource = ?", filters.Resource)
	}
	if !filters.Since.IsZero() {
		add("timestamp >= ?", filters.Since.UTC())
	}
	if !filters.Until.IsZero() {
		add("timestamp <= ?", filters.Until.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var auditOrderColumns = map[string]string{
	"timestamp":  "timestamp",
	"event_type": "event_type",
	"severity":   "severity",
	"status":     "status",
}

// QueryEvents returns audit events matching the filters
func (s *SQLiteAuditStore) QueryEvents(ctx context.Context, filters AuditQueryFilters) ([]*AuditEvent, error) {
	where, args := buildAuditWhere(filters)

	orderCol, ok := auditOrderColumns[filters.OrderBy]
	if !ok {
		orderCol = "timestamp"
	}
	direction := "ASC"
	if filters.OrderDesc {
		direction = "DESC"
	}

	query := `SELECT id, timestamp, event_type, severity, token_id, account_id, ip_address, action, resource, status, details, error_message
		FROM audit_events` + where + fmt.Sprintf(" ORDER BY %s %s", orderCol, direction)

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountEvents returns the number of audit events matching the filters
func (s *SQLiteAuditStore) CountEvents(ctx context.Context, filters AuditQueryFilters) (int, error) {
	where, args := buildAuditWhere(filters)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// GetEventByID returns a single audit event, or nil when absent
func (s *SQLiteAuditStore) GetEventByID(ctx context.Context, id string) (*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, event_type, severity, token_id, account_id, ip_address, action, resource, status, details, error_message
		FROM audit_events WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanAuditEvent(rows)
}

// CleanupOldEvents deletes events older than the given age and reports how many were removed
func (s *SQLiteAuditStore) CleanupOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit events: %w", err)
	}
	return res.RowsAffected()
}

// Close stops background workers and closes the database
func (s *SQLiteAuditStore) Close() error {
	close(s.done)
	return s.db.Close()
}

func scanAuditEvent(rows *sql.Rows) (*AuditEvent, error) {
	var event AuditEvent
	var eventType, severity, status string
	var tokenID, accountID, ipAddress, errorMessage sql.NullString
	var details sql.NullString

	err := rows.Scan(&event.ID, &event.Timestamp, &eventType, &severity,
		&tokenID, &accountID, &ipAddress,
		&event.Action, &event.Resource, &status, &details, &errorMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	event.EventType = AuditEventType(eventType)
	event.Severity = AuditSeverity(severity)
	event.Status = AuditStatus(status)
	event.TokenID = tokenID.String
	event.AccountID = accountID.String
	event.IPAddress = ipAddress.String
	event.ErrorMessage = errorMessage.String

	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &event.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
		}
	}
	return &event, nil
}
