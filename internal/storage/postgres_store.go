package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/meetpoint/internal/models"
)

// PostgresStore keeps each room as one row; the nested participant,
// preference and vote structures live in jsonb columns since they are
// always read and written as a unit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) LoadRoom(ctx context.Context, code string) (*models.Room, error) {
	var (
		room         models.Room
		participants []byte
		preferences  []byte
		votes        []byte
		meetingPoint []byte
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT code, name, status, participants, preferences, votes, meeting_point, created_at
		 FROM rooms WHERE code = $1`, code).
		Scan(&room.Code, &room.Name, &room.Status, &participants, &preferences, &votes, &meetingPoint, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load room %s: %v", ErrPersistence, code, err)
	}

	if err := json.Unmarshal(participants, &room.Participants); err != nil {
		return nil, fmt.Errorf("%w: decode participants: %v", ErrPersistence, err)
	}
	if err := json.Unmarshal(preferences, &room.Preferences); err != nil {
		return nil, fmt.Errorf("%w: decode preferences: %v", ErrPersistence, err)
	}
	if err := json.Unmarshal(votes, &room.Votes); err != nil {
		return nil, fmt.Errorf("%w: decode votes: %v", ErrPersistence, err)
	}
	if len(meetingPoint) > 0 && string(meetingPoint) != "null" {
		room.MeetingPoint = &models.MeetingPoint{}
		if err := json.Unmarshal(meetingPoint, room.MeetingPoint); err != nil {
			return nil, fmt.Errorf("%w: decode meeting point: %v", ErrPersistence, err)
		}
	}
	return &room, nil
}

func (p *PostgresStore) SaveRoom(ctx context.Context, room *models.Room) error {
	participants, err := json.Marshal(room.Participants)
	if err != nil {
		return fmt.Errorf("%w: encode participants: %v", ErrPersistence, err)
	}
	preferences, err := json.Marshal(room.Preferences)
	if err != nil {
		return fmt.Errorf("%w: encode preferences: %v", ErrPersistence, err)
	}
	votes, err := json.Marshal(room.Votes)
	if err != nil {
		return fmt.Errorf("%w: encode votes: %v", ErrPersistence, err)
	}
	meetingPoint, err := json.Marshal(room.MeetingPoint)
	if err != nil {
		return fmt.Errorf("%w: encode meeting point: %v", ErrPersistence, err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO rooms(code, name, status, participants, preferences, votes, meeting_point, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (code) DO UPDATE SET
		   name = EXCLUDED.name,
		   status = EXCLUDED.status,
		   participants = EXCLUDED.participants,
		   preferences = EXCLUDED.preferences,
		   votes = EXCLUDED.votes,
		   meeting_point = EXCLUDED.meeting_point`,
		room.Code, room.Name, room.Status, participants, preferences, votes, meetingPoint, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: save room %s: %v", ErrPersistence, room.Code, err)
	}
	return nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }
