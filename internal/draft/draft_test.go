package draft

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-authoring/internal/domain"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Step: 2,
		Content: domain.Content{
			Title:              "Intro to Go",
			LearningObjectives: []string{"one", "two"},
			Tags:               []string{"go"},
		},
		SavedLocallyAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "course-editor-draft-c42-u7", Key("c42", "u7"))
	assert.Equal(t, "course-editor-draft-new-u7", Key("", "u7"))
}

func TestSnapshot_JSON(t *testing.T) {
	t.Run("preserves unknown fields", func(t *testing.T) {
		in := []byte(`{"step":1,"title":"T","saved_locally_at":"2024-03-01T12:00:00Z","editor_theme":"dark","future":{"a":1}}`)

		var snap Snapshot
		require.NoError(t, json.Unmarshal(in, &snap))
		assert.Equal(t, "T", snap.Content.Title)
		assert.Equal(t, json.RawMessage(`"dark"`), snap.Extra["editor_theme"])

		out, err := json.Marshal(snap)
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(out, &fields))
		assert.Equal(t, "dark", fields["editor_theme"])
		assert.Equal(t, map[string]any{"a": float64(1)}, fields["future"])
	})

	t.Run("known keys are not duplicated into extra", func(t *testing.T) {
		raw, err := json.Marshal(sampleSnapshot())
		require.NoError(t, err)

		var snap Snapshot
		require.NoError(t, json.Unmarshal(raw, &snap))
		assert.Nil(t, snap.Extra)
	})

	t.Run("extra cannot shadow known keys", func(t *testing.T) {
		snap := sampleSnapshot()
		snap.Extra = map[string]json.RawMessage{"title": json.RawMessage(`"hijack"`)}
		raw, err := json.Marshal(snap)
		require.NoError(t, err)

		var back Snapshot
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, "Intro to Go", back.Content.Title)
	})
}

func TestStore(t *testing.T) {
	backends := map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend { return NewMemoryBackend() },
		"bolt": func(t *testing.T) Backend {
			b, err := OpenBolt(filepath.Join(t.TempDir(), "drafts.db"))
			require.NoError(t, err)
			return b
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			store := NewStore(open(t))
			defer store.Close()

			key := Key("c1", "u1")
			_, ok := store.Read(key)
			assert.False(t, ok)

			snap := sampleSnapshot()
			snap.Extra = map[string]json.RawMessage{"x": json.RawMessage(`true`)}
			store.Write(key, snap)

			got, ok := store.Read(key)
			require.True(t, ok)
			assert.Equal(t, snap, got)

			store.Clear(key)
			_, ok = store.Read(key)
			assert.False(t, ok)
		})
	}
}

func TestStore_BoltSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")

	b, err := OpenBolt(path)
	require.NoError(t, err)
	NewStore(b).Write(Key("", "u1"), sampleSnapshot())
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()

	got, ok := NewStore(b).Read(Key("", "u1"))
	require.True(t, ok)
	assert.Equal(t, "Intro to Go", got.Content.Title)

	keys, err := b.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"course-editor-draft-new-u1"}, keys)
}

func TestStore_CorruptEntryReadsAsAbsent(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Put("k", []byte("{not json")))

	_, ok := NewStore(backend).Read("k")
	assert.False(t, ok)
}

func TestMerge(t *testing.T) {
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	server := &domain.Course{ID: "c1", UpdatedAt: updated}

	tests := []struct {
		name   string
		server *domain.Course
		draft  *Snapshot
		want   Source
	}{
		{"nothing", nil, nil, SourceNone},
		{"server only", server, nil, SourceServer},
		{"draft only", nil, &Snapshot{SavedLocallyAt: updated}, SourceDraft},
		{"draft within skew", server, &Snapshot{SavedLocallyAt: updated.Add(DefaultSkew)}, SourceServer},
		{"draft older", server, &Snapshot{SavedLocallyAt: updated.Add(-time.Minute)}, SourceServer},
		{"draft newer", server, &Snapshot{SavedLocallyAt: updated.Add(DefaultSkew + time.Millisecond)}, SourceDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.server, tt.draft, DefaultSkew))
		})
	}
}
