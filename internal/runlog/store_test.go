package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carshare-deposits/internal/release"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id string, started time.Time) *release.Report {
	return &release.Report{
		RunID:     id,
		Mode:      release.ModeExecute,
		StartedAt: started,
		Summary:   release.Summary{Eligible: 1, Released: 1},
		Results:   []release.Result{{BookingID: "b-" + id, BookingCode: "CAR-" + id, Status: release.StatusReleased}},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, report("r1", started)))
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, release.ModeExecute, got.Mode)
	assert.True(t, got.StartedAt.Equal(started))
	require.Len(t, got.Results, 1)
	assert.Equal(t, "CAR-r1", got.Results[0].BookingCode)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, report("r1", started)))
	changed := report("r1", started.Add(time.Hour))
	changed.Summary.Failed = 9
	require.NoError(t, s.Save(ctx, changed))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, got.Summary.Failed)

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, report("b", base.Add(2*time.Hour))))
	require.NoError(t, s.Save(ctx, report("a", base.Add(time.Hour))))
	require.NoError(t, s.Save(ctx, report("c", base.Add(3*time.Hour))))

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
	assert.Nil(t, runs[0].Results)
}

func TestStore_SaveRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Save(context.Background(), &release.Report{}))
}
