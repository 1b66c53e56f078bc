// Package draft keeps crash-recovery copies of in-progress course edits on
// the local machine.
package draft

import (
	"encoding/json"
	"fmt"
	"time"

	"course-authoring/internal/domain"
)

// Snapshot is the locally persisted form state. Fields written by other
// clients that this version does not know about are kept in Extra and
// written back unchanged.
type Snapshot struct {
	Step           int
	Content        domain.Content
	SavedLocallyAt time.Time
	Extra          map[string]json.RawMessage
}

type wireSnapshot struct {
	Step int `json:"step"`
	domain.Content
	SavedLocallyAt time.Time `json:"saved_locally_at"`
}

var knownKeys = func() map[string]struct{} {
	raw, err := json.Marshal(wireSnapshot{})
	if err != nil {
		panic(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		panic(err)
	}
	keys := make(map[string]struct{}, len(fields))
	for k := range fields {
		keys[k] = struct{}{}
	}
	return keys
}()

// MarshalJSON emits keys in sorted order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(wireSnapshot{Step: s.Step, Content: s.Content, SavedLocallyAt: s.SavedLocallyAt})
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage, len(knownKeys)+len(s.Extra))
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if _, known := knownKeys[k]; known {
			continue
		}
		fields[k] = v
	}
	return json.Marshal(fields)
}

// UnmarshalJSON keeps unrecognised keys in Extra.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode snapshot fields: %w", err)
	}
	s.Step = w.Step
	s.Content = w.Content
	s.SavedLocallyAt = w.SavedLocallyAt
	s.Extra = nil
	for k, v := range fields {
		if _, known := knownKeys[k]; known {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[k] = v
	}
	return nil
}
