package storage

import (
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/chadiek/shorecall/internal/call"
)

// SupabaseStore persists terminal call records to a Supabase table.
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

func NewSupabaseStore(url, serviceKey, table string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &SupabaseStore{client: client, table: table}, nil
}

// UpdateCallRecord writes the terminal record for a session. Called exactly
// once per call, at finalize.
func (s *SupabaseStore) UpdateCallRecord(sessionID string, rec call.CallRecord) error {
	row := map[string]any{
		"status":           rec.Status,
		"transcript":       rec.Transcript,
		"result":           rec.Result,
		"duration_seconds": rec.DurationSeconds,
	}
	_, _, err := s.client.From(s.table).
		Update(row, "", "").
		Eq("session_id", sessionID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update call record: %w", err)
	}
	return nil
}
