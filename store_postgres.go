package chatpants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Store = &PostgresStore{}

type conversationRow struct {
	ID             string `gorm:"primaryKey"`
	ParticipantID  string `gorm:"index"`
	GroupID        string
	Transcript     []byte
	MemoryResolved bool
	UpdatedAt      time.Time
}

func (conversationRow) TableName() string { return "conversations" }

type assignmentRow struct {
	ParticipantID string `gorm:"primaryKey"`
	AssignmentID  string
	GroupID       string
	AssignedAt    time.Time
}

func (assignmentRow) TableName() string { return "assignments" }

// PostgresStore implements Store on a PostgreSQL database for deployed
// experiments where the bbolt file is not an option.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects with the given URI and migrates the schema.
func NewPostgresStore(uri string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&conversationRow{}, &assignmentRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) SaveConversation(ctx context.Context, rec Record) error {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	row := conversationRow{
		ID:             rec.ID,
		ParticipantID:  rec.ParticipantID,
		GroupID:        string(rec.Group),
		Transcript:     transcript,
		MemoryResolved: rec.MemoryResolved,
		UpdatedAt:      rec.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&row).Error
}

func (s *PostgresStore) LoadConversation(ctx context.Context, participantID string, group Group) (Record, error) {
	var row conversationRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", RecordKey(participantID, group)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:             row.ID,
		ParticipantID:  row.ParticipantID,
		Group:          Group(row.GroupID),
		Transcript:     []Turn{},
		MemoryResolved: row.MemoryResolved,
		UpdatedAt:      row.UpdatedAt,
	}
	if len(row.Transcript) > 0 {
		if err := json.Unmarshal(row.Transcript, &rec.Transcript); err != nil {
			return Record{}, fmt.Errorf("failed to decode transcript: %w", err)
		}
	}
	return rec, nil
}

func (s *PostgresStore) SaveAssignment(ctx context.Context, a Assignment) error {
	row := assignmentRow{
		ParticipantID: a.ParticipantID,
		AssignmentID:  a.ID,
		GroupID:       string(a.Group),
		AssignedAt:    a.AssignedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "participant_id"}}, UpdateAll: true}).
		Create(&row).Error
}

func (s *PostgresStore) LoadAssignment(ctx context.Context, participantID string) (Assignment, error) {
	var row assignmentRow
	err := s.db.WithContext(ctx).First(&row, "participant_id = ?", participantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Assignment{}, ErrNotFound
	}
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{
		ID:            row.AssignmentID,
		ParticipantID: row.ParticipantID,
		Group:         Group(row.GroupID),
		AssignedAt:    row.AssignedAt,
	}, nil
}
