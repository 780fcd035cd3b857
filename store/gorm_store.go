package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsRowID = 1

type pollRow struct {
	ID        string `gorm:"primaryKey"`
	ChannelID string `gorm:"index;not null"`
	Title     string `gorm:"not null"`
	ExpiresAt time.Time
	IsActive  bool `gorm:"index;not null"`
	Votes     datatypes.JSONType[VoteMap]
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (pollRow) TableName() string { return "polls" }

type settingsRow struct {
	ID           uint `gorm:"primaryKey"`
	ReadingPoint string
	MeetingDate  string
	MeetingTime  string
	MeetingAt    *time.Time
	EventID      string
	UpdatedAt    time.Time
}

func (settingsRow) TableName() string { return "settings" }

// GormStore persists polls and settings in Postgres through gorm.
type GormStore struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := db.AutoMigrate(&pollRow{}, &settingsRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) GetSettings(ctx context.Context) (*Settings, error) {
	var row settingsRow
	err := g.db.WithContext(ctx).First(&row, settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get settings: %w", err)
	}
	return &Settings{
		ReadingPoint: row.ReadingPoint,
		MeetingDate:  row.MeetingDate,
		MeetingTime:  row.MeetingTime,
		MeetingAt:    row.MeetingAt,
		EventID:      row.EventID,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (g *GormStore) PutSettings(ctx context.Context, s *Settings) error {
	row := settingsRow{
		ID:           settingsRowID,
		ReadingPoint: s.ReadingPoint,
		MeetingDate:  s.MeetingDate,
		MeetingTime:  s.MeetingTime,
		MeetingAt:    s.MeetingAt,
		EventID:      s.EventID,
		UpdatedAt:    time.Now().UTC(),
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store: put settings: %w", err)
	}
	return nil
}

func (g *GormStore) FindPoll(ctx context.Context, id string) (*Poll, error) {
	var row pollRow
	err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find poll %s: %w", id, err)
	}
	return rowToPoll(&row), nil
}

func (g *GormStore) UpsertPoll(ctx context.Context, p *Poll) error {
	row := pollToRow(p)
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("store: upsert poll %s: %w", p.ID, err)
	}
	return nil
}

func (g *GormStore) FindActivePolls(ctx context.Context) ([]*Poll, error) {
	var rows []pollRow
	err := g.db.WithContext(ctx).Where("is_active = ?", true).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: find active polls: %w", err)
	}
	polls := make([]*Poll, 0, len(rows))
	for i := range rows {
		polls = append(polls, rowToPoll(&rows[i]))
	}
	return polls, nil
}

func (g *GormStore) MarkPollResolved(ctx context.Context, id string) (bool, error) {
	res := g.db.WithContext(ctx).Model(&pollRow{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("store: resolve poll %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func pollToRow(p *Poll) *pollRow {
	votes := p.Votes
	if votes == nil {
		votes = VoteMap{}
	}
	return &pollRow{
		ID:        p.ID,
		ChannelID: p.ChannelID,
		Title:     p.Title,
		ExpiresAt: p.ExpiresAt,
		IsActive:  p.IsActive,
		Votes:     datatypes.NewJSONType(votes),
		CreatedAt: p.CreatedAt,
	}
}

func rowToPoll(row *pollRow) *Poll {
	votes := row.Votes.Data()
	if votes == nil {
		votes = VoteMap{}
	}
	return &Poll{
		ID:        row.ID,
		ChannelID: row.ChannelID,
		Title:     row.Title,
		ExpiresAt: row.ExpiresAt,
		IsActive:  row.IsActive,
		Votes:     votes,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
