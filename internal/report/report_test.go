package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwgray1010/PawCoin/internal/model"
)

func ms(v int64) *int64 { return &v }

func TestWriteChores(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-2 * time.Minute).UnixMilli()

	anchors := []model.AnchorRecord{
		{ID: "a", Name: "Feed dog", AssignedKidID: "kid-1", QRStartCode: "s1", QREndCode: "e1"},
		{ID: "b", Name: "Make bed", StartedAt: ms(start)},
		{ID: "c", Name: "Dishes", StartedAt: ms(start), FinishedAt: ms(start + 90_000), Completed: true, MinDurationSeconds: 60},
		{ID: "d", Name: "Trash", StartedAt: ms(start), FinishedAt: ms(start + 30_000), MinDurationSeconds: 60},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteChores(&buf, anchors, now))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ChoresSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(ChoresSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, ChoreHeader, rows[0])
	assert.Equal(t, "Feed dog", rows[1][0])
	assert.Equal(t, "kid-1", rows[1][1])
	assert.Equal(t, "unstarted", rows[1][2])
	assert.Equal(t, "s1", rows[1][7])
	assert.Equal(t, "started", rows[2][2])
	assert.Equal(t, "2026-03-01 11:58:00", rows[2][3])
	assert.Equal(t, "completed", rows[3][2])
	assert.Equal(t, "90", rows[3][5])
	assert.Equal(t, "incomplete", rows[4][2])
	assert.Equal(t, "30", rows[4][5])

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"State", "Count"}, summary[0])
	assert.Equal(t, []string{"unstarted", "1"}, summary[1])
	assert.Equal(t, []string{"started", "1"}, summary[2])
	assert.Equal(t, []string{"completed", "1"}, summary[3])
	assert.Equal(t, []string{"incomplete", "1"}, summary[4])
	assert.Equal(t, []string{"total", "4"}, summary[5])
}

func TestWriteChoresEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChores(&buf, nil, time.Now()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ChoresSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
