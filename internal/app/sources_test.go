package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/hockeysync/internal/config"
	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/store"
)

func TestNewSources(t *testing.T) {
	cfg := config.Default()
	sources, err := NewSources(cfg, logging.NewNop())
	require.NoError(t, err)

	f, err := sources.MatchFetcher(store.SourceKNHB)
	require.NoError(t, err)
	assert.Equal(t, store.SourceKNHB, f.Source())

	f, err = sources.MatchFetcher(store.SourceTMS)
	require.NoError(t, err)
	assert.Equal(t, store.SourceTMS, f.Source())

	_, err = sources.MatchFetcher("espn")
	assert.Error(t, err)
}

func TestNewSources_LookupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lookup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clubs:\n  Kampong: kampong-utrecht\n"), 0o600))

	cfg := config.Default()
	cfg.Lookup.File = path
	sources, err := NewSources(cfg, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "kampong-utrecht", sources.Engine.Club("Kampong").ID)

	cfg.Lookup.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewSources(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestNewSources_BadTimezone(t *testing.T) {
	cfg := config.Default()
	cfg.KNHB.Timezone = "Mars/Olympus"
	_, err := NewSources(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestKNHBCompetitions(t *testing.T) {
	cfg := config.Default()
	cfg.KNHB.Competitions = []config.KNHBCompetition{
		{ID: "N8", Name: "Tulp Hoofdklasse Heren"},
		{ID: "N9", Name: "Tulp Hoofdklasse Dames"},
	}
	got := KNHBCompetitions(cfg)
	require.Len(t, got, 2)
	assert.Equal(t, "N9", got[1].ID)
	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, store.SourceKNHB, got[1].Source)
}

func TestModes(t *testing.T) {
	assert.Equal(t, []ingest.Mode{ingest.ModeUpcoming, ingest.ModeOfficial}, Modes([]string{"upcoming", "official"}))
}
