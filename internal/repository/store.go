// Package repository persists session snapshots, events, transcripts and votes.
package repository

import (
	"context"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, rec *domain.SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error)
	SaveSnapshot(ctx context.Context, sessionID string, phase domain.Phase, version int64, snapshot []byte) error
	CloseSession(ctx context.Context, sessionID string, closedAt time.Time) error

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, sessionID string, afterSeq int64, types []string, limit int) ([]domain.Event, error)

	// Transcript operations
	AppendTranscript(ctx context.Context, sessionID string, entry domain.TranscriptEntry) error
	GetTranscript(ctx context.Context, sessionID string, afterSeq int, limit int) ([]domain.TranscriptEntry, error)

	// Vote operations
	UpsertVote(ctx context.Context, vote *domain.VoteRow) error
	DeleteVote(ctx context.Context, sessionID, motionID string, round int, attendeeID string) error
	ListVotes(ctx context.Context, sessionID, motionID string) ([]domain.VoteRow, error)

	// Lifecycle
	Close() error
}
