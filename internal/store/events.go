package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mattn/go-sqlite3"
)

// NoStreamVersion is the version of a stream without events.
const NoStreamVersion int64 = -1

type expectedKind int

const (
	expectAny expectedKind = iota
	expectNoStream
	expectStreamExists
	expectExact
)

// ExpectedVersion is the optimistic-concurrency condition of an append.
// The zero value is Any.
type ExpectedVersion struct {
	kind    expectedKind
	version int64
}

// ExpectAny appends regardless of the stream's version.
func ExpectAny() ExpectedVersion { return ExpectedVersion{kind: expectAny} }

// ExpectNoStream appends only if the stream has no events.
func ExpectNoStream() ExpectedVersion { return ExpectedVersion{kind: expectNoStream} }

// ExpectStreamExists appends only if the stream has at least one event.
func ExpectStreamExists() ExpectedVersion { return ExpectedVersion{kind: expectStreamExists} }

// ExpectVersion appends only if the stream's last event has version v.
func ExpectVersion(v int64) ExpectedVersion { return ExpectedVersion{kind: expectExact, version: v} }

func (e ExpectedVersion) String() string {
	switch e.kind {
	case expectNoStream:
		return "NO_STREAM"
	case expectStreamExists:
		return "STREAM_EXISTS"
	case expectExact:
		return strconv.FormatInt(e.version, 10)
	}
	return "ANY"
}

func (e ExpectedVersion) matches(current int64) bool {
	switch e.kind {
	case expectNoStream:
		return current == NoStreamVersion
	case expectStreamExists:
		return current != NoStreamVersion
	case expectExact:
		return current == e.version
	}
	return true
}

// NewEvent is an event about to be appended.
type NewEvent struct {
	ID            string
	Type          string
	Payload       json.RawMessage
	Metadata      json.RawMessage
	CausationID   string
	CorrelationID string
}

// StoredEvent is an event as persisted.
type StoredEvent struct {
	SequenceNumber int64
	Stream         string
	Version        int64
	ID             string
	Type           string
	Payload        json.RawMessage
	Metadata       json.RawMessage
	CausationID    string
	CorrelationID  string
}

// CommitResult describes a successful append.
type CommitResult struct {
	FirstSequence int64
	LastSequence  int64
	Version       int64
}

// Append writes events to the end of stream in one transaction.
//
// Returns a *ConcurrencyError if the stream's version does not satisfy
// expected. Appending no events only checks the condition.
func (s *Store) Append(ctx context.Context, stream string, expected ExpectedVersion, events []NewEvent) (CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("append to %s: begin: %w", stream, err)
	}
	defer tx.Rollback()

	current, err := streamVersion(ctx, tx, stream)
	if err != nil {
		return CommitResult{}, fmt.Errorf("append to %s: %w", stream, err)
	}
	if !expected.matches(current) {
		return CommitResult{}, &ConcurrencyError{Stream: stream, Expected: expected, Actual: current}
	}

	result := CommitResult{Version: current}
	for i, e := range events {
		version := current + 1 + int64(i)
		metadata := e.Metadata
		if len(metadata) == 0 {
			metadata = json.RawMessage("{}")
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO events
			(stream, version, event_id, event_type, payload, metadata, causation_id, correlation_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, stream, version, e.ID, e.Type, string(e.Payload), string(metadata), e.CausationID, e.CorrelationID)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				return CommitResult{}, fmt.Errorf("append to %s: duplicate event id %s: %w", stream, e.ID, err)
			}
			return CommitResult{}, fmt.Errorf("append to %s: insert: %w", stream, err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return CommitResult{}, fmt.Errorf("append to %s: sequence: %w", stream, err)
		}
		if i == 0 {
			result.FirstSequence = seq
		}
		result.LastSequence = seq
		result.Version = version
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("append to %s: commit: %w", stream, err)
	}
	return result, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func streamVersion(ctx context.Context, q queryer, stream string) (int64, error) {
	var version sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT MAX(version) FROM events WHERE stream = ?`, stream).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("stream version: %w", err)
	}
	if !version.Valid {
		return NoStreamVersion, nil
	}
	return version.Int64, nil
}

// StreamVersion returns the version of the stream's last event, or
// NoStreamVersion if the stream has no events.
func (s *Store) StreamVersion(ctx context.Context, stream string) (int64, error) {
	return streamVersion(ctx, s.db, stream)
}

// HeadSequence returns the highest sequence number in the log, or 0.
func (s *Store) HeadSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence_number) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("head sequence: %w", err)
	}
	return seq.Int64, nil
}

// LoadStream returns the stream's events from fromVersion on, in version
// order. Returns an empty slice (not nil) for unknown streams.
func (s *Store) LoadStream(ctx context.Context, stream string, fromVersion int64) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_number, stream, version, event_id, event_type, payload, metadata, causation_id, correlation_id
		FROM events
		WHERE stream = ? AND version >= ?
		ORDER BY version ASC
	`, stream, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("load stream %s: %w", stream, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// LoadAll returns up to limit events with a sequence number greater than
// after, in sequence order. A limit <= 0 means no limit.
func (s *Store) LoadAll(ctx context.Context, after int64, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_number, stream, version, event_id, event_type, payload, metadata, causation_id, correlation_id
		FROM events
		WHERE sequence_number > ?
		ORDER BY sequence_number ASC
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("load events after %d: %w", after, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// StreamNames returns every stream with at least one event, sorted.
func (s *Store) StreamNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT stream FROM events ORDER BY stream COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("stream names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan stream name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream names: %w", err)
	}
	return names, nil
}

func scanEvents(rows *sql.Rows) ([]StoredEvent, error) {
	events := []StoredEvent{}
	for rows.Next() {
		var (
			e                 StoredEvent
			payload, metadata string
		)
		if err := rows.Scan(
			&e.SequenceNumber, &e.Stream, &e.Version, &e.ID, &e.Type,
			&payload, &metadata, &e.CausationID, &e.CorrelationID,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		e.Metadata = json.RawMessage(metadata)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
