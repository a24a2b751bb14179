package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petersaints/YanuX-Cruncher/internal/config"
	"github.com/petersaints/YanuX-Cruncher/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// TestFlagDefaults verifies the defaults a run uses when no flag is given.
func TestFlagDefaults(t *testing.T) {
	if *outDir != "out" {
		t.Errorf("expected -out default to be %q, got %q", "out", *outDir)
	}
	if *coords != "x,y" {
		t.Errorf("expected -coords default to be %q, got %q", "x,y", *coords)
	}
	if *neighbors != 5 {
		t.Errorf("expected -neighbors default to be 5, got %d", *neighbors)
	}
	if *workers != 1 {
		t.Errorf("expected -workers default to be 1, got %d", *workers)
	}
	if *subset != 1 {
		t.Errorf("expected -subset default to be 1, got %v", *subset)
	}
	if *dbPath != "" || *reportDir != "" {
		t.Error("database and reports should be disabled by default")
	}
}

func TestApplyFlags(t *testing.T) {
	oldNeighbors, oldPartials, oldFeatures, oldFill := *neighbors, *partials, *features, *fillMissing
	t.Cleanup(func() {
		*neighbors, *partials, *features, *fillMissing = oldNeighbors, oldPartials, oldFeatures, oldFill
	})

	*neighbors = 3
	*partials = "0.25, 0.5"
	*features = "ap1,,ap2"
	*fillMissing = -100

	t.Run("only visited flags override", func(t *testing.T) {
		cfg := config.EmptyEvaluationConfig()
		seven := 7
		cfg.Neighbors = &seven

		require.NoError(t, applyFlags(cfg, map[string]bool{"partials": true}))
		assert.Equal(t, 7, *cfg.Neighbors)
		assert.Equal(t, []float64{0.25, 0.5}, cfg.Partials)
		assert.Nil(t, cfg.Features)
		assert.Nil(t, cfg.FillMissing)
	})

	t.Run("every visited flag", func(t *testing.T) {
		cfg := config.EmptyEvaluationConfig()
		visited := map[string]bool{"neighbors": true, "features": true, "fill-missing": true}

		require.NoError(t, applyFlags(cfg, visited))
		assert.Equal(t, 3, cfg.KNN().Neighbors)
		assert.Equal(t, []string{"ap1", "ap2"}, cfg.Features)
		require.NotNil(t, cfg.FillMissing)
		assert.Equal(t, -100.0, *cfg.FillMissing)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad partials", func(t *testing.T) {
		*partials = "half"
		err := applyFlags(config.EmptyEvaluationConfig(), map[string]bool{"partials": true})
		assert.ErrorContains(t, err, "half")
	})
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"x,y", []string{"x", "y"}},
		{" x , y ,", []string{"x", "y"}},
		{"walk-", []string{"walk-"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitList(tt.in), "input %q", tt.in)
	}
}

func TestParseFloats(t *testing.T) {
	got, err := parseFloats("0.1,1")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 1}, got)

	got, err = parseFloats("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseFloats("0.1,x")
	assert.Error(t, err)
}
