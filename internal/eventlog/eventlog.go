// Package eventlog implements the additive session audit trail: an
// append-only table of join/leave/evict/terminal_error rows, never
// audio, written from internal/registry and read back by the /history
// endpoint. Wiring shape grounded on deps/deps.go's Deps{DB *gorm.DB}.
package eventlog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	KindJoin          = "join"
	KindLeave         = "leave"
	KindEvict         = "evict"
	KindTerminalError = "terminal_error"
)

// SessionEvent is one audit row. Never stores PCM or any audio payload.
type SessionEvent struct {
	ID            string `gorm:"primaryKey"`
	ParticipantID string `gorm:"index"`
	Kind          string
	At            time.Time
	Detail        string
}

// Store is the gorm-backed append-only event log.
type Store struct {
	db *gorm.DB
}

// Open opens the event log. If databaseURL is non-empty (see
// internal/config.Config.DatabaseURL), it connects to postgres;
// otherwise it opens (creating if needed) a local sqlite file at
// sqlitePath.
func Open(sqlitePath, databaseURL string) (*Store, error) {
	var (
		db  *gorm.DB
		err error
	)
	if databaseURL != "" {
		db, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	} else {
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	if err := db.AutoMigrate(&SessionEvent{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records one audit event.
func (s *Store) Append(participantID, kind, detail string) error {
	ev := SessionEvent{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Kind:          kind,
		At:            time.Now(),
		Detail:        detail,
	}
	return s.db.Create(&ev).Error
}

// Recent returns up to limit of the most recent events, newest first.
func (s *Store) Recent(limit int) ([]SessionEvent, error) {
	var events []SessionEvent
	err := s.db.Order("at desc").Limit(limit).Find(&events).Error
	return events, err
}
