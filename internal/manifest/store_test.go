package manifest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/internal/gridding"
)

var (
	day1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	t0   = time.Date(2024, 1, 5, 6, 0, 0, 0, time.UTC)
)

func result(ok []string, failed []gridding.FileFailure, filled int) *gridding.DailyResult {
	return &gridding.DailyResult{
		FilledCells: filled,
		Manifest: gridding.Manifest{
			Succeeded: ok,
			Failed:    failed,
			Stats:     gridding.GridStats{Total: 100, Accepted: 40},
		},
	}
}

func TestStatusFor(t *testing.T) {
	fail := []gridding.FileFailure{{Source: "b.nc", Error: "corrupt"}}

	tests := []struct {
		name string
		res  *gridding.DailyResult
		want Status
	}{
		{"complete", result([]string{"a.nc"}, nil, 10), StatusComplete},
		{"partial", result([]string{"a.nc"}, fail, 10), StatusPartial},
		{"failed", result(nil, fail, 0), StatusFailed},
		{"no input", result(nil, nil, 0), StatusNoInput},
		{"empty", result([]string{"a.nc"}, nil, 0), StatusEmpty},
		{"empty partial", result([]string{"a.nc"}, fail, 0), StatusEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.res))
		})
	}
	assert.True(t, StatusEmpty.Succeeded())
	assert.False(t, StatusNoInput.Succeeded())
	assert.False(t, StatusRunning.Done())
}

func TestRecordFinish(t *testing.T) {
	rec := NewRecord(day1, "DB", "abc", t0)
	assert.Equal(t, StatusRunning, rec.Status)

	rec.Finish(result([]string{"a.nc"}, nil, 7), "/out/x.nc", t0.Add(time.Minute))
	assert.Equal(t, StatusComplete, rec.Status)
	assert.Equal(t, int64(100), rec.PixelsTotal)
	assert.Equal(t, int64(40), rec.PixelsAccepted)
	assert.Equal(t, 7, rec.CellsFilled)
	require.NotNil(t, rec.FinishedAt)

	rec.Abort(errors.New("disk full"), t0)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "disk full", rec.Error)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, day1, "DB")
	assert.True(t, errors.Is(err, ErrNotFound))

	first := NewRecord(day1, "DB", "h1", t0)
	require.NoError(t, s.Save(ctx, first))

	// 같은 날짜/제품 재실행 → upsert, ID 유지
	again := NewRecord(day1, "DB", "h2", t0.Add(time.Hour))
	require.NoError(t, s.Save(ctx, again))
	assert.Equal(t, first.ID, again.ID)

	got, err := s.Get(ctx, day1, "DB")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.ConfigHash)

	require.NoError(t, s.Save(ctx, NewRecord(day1, "DT", "h2", t0)))
	require.NoError(t, s.Save(ctx, NewRecord(day2, "DB", "h2", t0.Add(2*time.Hour))))

	list, err := s.List(ctx, day1, day1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "DB", list[0].Product)
	assert.Equal(t, "DT", list[1].Product)

	recent, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, day2, recent[0].RunDate)
}
