package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"oneinbox/internal/domain"
)

// archivedMessage is one inbound or reply message.
type archivedMessage struct {
	RowID     uint   `gorm:"primaryKey;autoIncrement"`
	MessageID string `gorm:"size:64;not null;uniqueIndex"`
	ThreadID  string `gorm:"size:191;not null;index"`
	Seq       int64
	ReplyTo   string `gorm:"size:64"`
	Platform  string `gorm:"size:32;not null"`
	Role      string `gorm:"size:16;not null"`
	User      string `gorm:"size:128"`
	Text      string `gorm:"type:text"`
	Timestamp string `gorm:"size:20"`
	CreatedAt time.Time
}

// threadMeta summarizes a thread across turns.
type threadMeta struct {
	ThreadID     string `gorm:"primaryKey;size:191"`
	Platform     string `gorm:"size:32"`
	User         string `gorm:"size:128"`
	Intent       string `gorm:"size:16"`
	Ticket       string `gorm:"size:32"`
	Turns        int    `gorm:"not null;default:0"`
	LastActivity time.Time
}

// SQLArchive stores turns in a relational database through GORM.
type SQLArchive struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// returns a migrated archive.
func OpenSQLite(path string) (*SQLArchive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite %s: %w", path, err)
	}
	return NewSQLArchive(db)
}

// NewSQLArchive migrates the archive tables on db.
func NewSQLArchive(db *gorm.DB) (*SQLArchive, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	if err := db.AutoMigrate(&archivedMessage{}, &threadMeta{}); err != nil {
		return nil, fmt.Errorf("repository: migrate: %w", err)
	}
	return &SQLArchive{db: db}, nil
}

// SaveTurn inserts both messages and bumps the thread summary atomically.
func (a *SQLArchive) SaveTurn(ctx context.Context, turn domain.ArchivedTurn) error {
	if turn.Inbound.ThreadID == "" || turn.Inbound.ID == "" || turn.Reply.ID == "" {
		return errors.New("repository: SaveTurn: thread and message ids are required")
	}
	if turn.Reply.ThreadID != turn.Inbound.ThreadID {
		return errors.New("repository: SaveTurn: reply belongs to another thread")
	}

	rows := []archivedMessage{toRow(turn.Inbound), toRow(turn.Reply)}
	meta := threadMeta{
		ThreadID:     turn.Inbound.ThreadID,
		Platform:     string(turn.Inbound.Platform),
		User:         turn.Inbound.User,
		Intent:       turn.Intent,
		Ticket:       turn.Ticket,
		Turns:        1,
		LastActivity: nowFunc().UTC(),
	}
	updates := map[string]any{
		"platform":      meta.Platform,
		"user":          meta.User,
		"intent":        meta.Intent,
		"last_activity": meta.LastActivity,
		"turns":         gorm.Expr("turns + 1"),
	}
	if turn.Ticket != "" {
		updates["ticket"] = turn.Ticket
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}},
			DoUpdates: clause.Assignments(updates),
		}).Create(&meta).Error
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// GetHistory returns up to limit of the most recent messages of a thread
// in the order they were archived.
func (a *SQLArchive) GetHistory(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	var rows []archivedMessage
	err := a.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("row_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory: %w", err)
	}
	slices.Reverse(rows)

	msgs := make([]domain.Message, len(rows))
	for i, r := range rows {
		msgs[i] = r.toMessage()
	}
	return msgs, nil
}

// GetTurnCount returns the number of archived turns of a thread.
func (a *SQLArchive) GetTurnCount(ctx context.Context, threadID string) (int, error) {
	var meta threadMeta
	err := a.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount: %w", err)
	}
	return meta.Turns, nil
}

// Close releases the underlying connection pool.
func (a *SQLArchive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(msg domain.Message) archivedMessage {
	return archivedMessage{
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		Seq:       msg.Seq,
		ReplyTo:   msg.ReplyTo,
		Platform:  string(msg.Platform),
		Role:      string(msg.Role),
		User:      msg.User,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
}

func (r archivedMessage) toMessage() domain.Message {
	return domain.Message{
		ID:        r.MessageID,
		Seq:       r.Seq,
		ThreadID:  r.ThreadID,
		ReplyTo:   r.ReplyTo,
		Platform:  domain.Platform(r.Platform),
		Role:      domain.Role(r.Role),
		User:      r.User,
		Text:      r.Text,
		Timestamp: r.Timestamp,
	}
}
