package session

import (
	"strings"
	"sync"
	"time"
)

// Role identifies who produced a line of dialogue.
type Role string

const (
	RoleAgent  Role = "agent"
	RoleCaller Role = "caller"
)

// Outcome is the terminal classification of a call. The zero value means the
// call is still in progress.
type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeAccepted     Outcome = "accepted"
	OutcomeDeclined     Outcome = "declined"
	OutcomeInconclusive Outcome = "inconclusive"
)

// Operation describes the cleanup operation the call is negotiating.
type Operation struct {
	Name       string
	Location   string
	Priority   string
	Notes      string
	TargetDate string
}

// DialogueTurn is one line of the generator's conversational context.
type DialogueTurn struct {
	Role Role
	Text string
}

// TranscriptEntry is one line of the externally visible call record.
type TranscriptEntry struct {
	Role Role
	Text string
	At   time.Time
}

// Session is the live state of one phone call. The embedded mutex serializes
// per-session mutation; the coordinator holds it for the duration of a turn.
// Sessions share no state with each other.
type Session struct {
	sync.Mutex

	ID        string
	Operation Operation
	StartedAt time.Time

	Turns      []DialogueTurn
	Transcript []TranscriptEntry
	TurnCount  int
	Topics     TopicSet
	Outcome    Outcome
}

// AppendLine records a line in both the transcript and the dialogue history.
func (s *Session) AppendLine(role Role, text string) {
	s.Turns = append(s.Turns, DialogueTurn{Role: role, Text: text})
	s.Transcript = append(s.Transcript, TranscriptEntry{Role: role, Text: text, At: time.Now()})
}

// TranscriptText renders the transcript as one line per entry.
func (s *Session) TranscriptText() string {
	var b strings.Builder
	for _, e := range s.Transcript {
		b.WriteString(string(e.Role))
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// DurationSeconds is the elapsed time between the first and last transcript
// entries, rounded down.
func (s *Session) DurationSeconds() int {
	if len(s.Transcript) < 2 {
		return 0
	}
	first := s.Transcript[0].At
	last := s.Transcript[len(s.Transcript)-1].At
	return int(last.Sub(first) / time.Second)
}
