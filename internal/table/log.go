package table

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
)

// LogType is the kind of a log entry.
type LogType string

const (
	LogCreate          LogType = "CREATE"
	LogInvite          LogType = "INVITE"
	LogJoin            LogType = "JOIN"
	LogAccept          LogType = "ACCEPT"
	LogReject          LogType = "REJECT"
	LogKick            LogType = "KICK"
	LogStart           LogType = "START"
	LogLeft            LogType = "LEFT"
	LogUndo            LogType = "UNDO"
	LogInGameEvent     LogType = "IN_GAME_EVENT"
	LogBeginTurn       LogType = "BEGIN_TURN"
	LogEndTurn         LogType = "END_TURN"
	LogSkip            LogType = "SKIP"
	LogEnd             LogType = "END"
	LogForceEndTurn    LogType = "FORCE_END_TURN"
	LogProposedToLeave LogType = "PROPOSED_TO_LEAVE"
	LogAgreedToLeave   LogType = "AGREED_TO_LEAVE"
)

// LogEntry is one immutable, human-readable line of a table's history.
type LogEntry struct {
	PlayerID   uuid.UUID  `json:"playerId"`
	AccountID  *uuid.UUID `json:"accountId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Type       LogType    `json:"type"`
	Parameters []string   `json:"parameters,omitempty"`
	Expires    time.Time  `json:"expires"`
}

func newLogEntry(p *Player, ts time.Time, typ LogType, params ...string) *LogEntry {
	e := &LogEntry{
		PlayerID:   p.ID,
		Timestamp:  ts,
		Type:       typ,
		Parameters: params,
		Expires:    ts.Add(logRetention),
	}
	if !p.Computer {
		account := p.AccountID
		e.AccountID = &account
	}
	return e
}

func newInGameLogEntry(p *Player, ts time.Time, ev game.Event) *LogEntry {
	params := append([]string{ev.Type}, ev.Params...)
	return newLogEntry(p, ts, LogInGameEvent, params...)
}

// LogLoader reads persisted entries with since < timestamp < before, newest
// first, at most limit of them. Zero bounds are open.
type LogLoader func(since, before time.Time, limit int) ([]*LogEntry, error)

// Log is a table's append-only log. Persisted entries are read through the
// loader on demand; entries appended since the last save are pending.
type Log struct {
	loader  LogLoader
	pending []*LogEntry
}

func newLog(loader LogLoader) *Log {
	return &Log{loader: loader}
}

func (l *Log) add(e *LogEntry) {
	l.pending = append(l.pending, e)
}

// Pending returns the entries not yet persisted, oldest first.
func (l *Log) Pending() []*LogEntry {
	return l.pending
}

func (l *Log) clearPending() {
	l.pending = nil
}

// Range returns entries strictly between since and before, newest first and
// truncated to limit when limit is positive.
func (l *Log) Range(since, before time.Time, limit int) ([]*LogEntry, error) {
	var entries []*LogEntry
	seen := make(map[int64]struct{})
	if l.loader != nil {
		loaded, err := l.loader(since, before, limit)
		if err != nil {
			return nil, err
		}
		for _, e := range loaded {
			seen[e.Timestamp.UnixMilli()] = struct{}{}
			entries = append(entries, e)
		}
	}
	for _, e := range l.pending {
		if _, dup := seen[e.Timestamp.UnixMilli()]; dup {
			continue
		}
		if !since.IsZero() && !e.Timestamp.After(since) {
			continue
		}
		if !before.IsZero() && !e.Timestamp.Before(before) {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
