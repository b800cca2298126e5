package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mt5-analysis-service/internal/analysis"
	"mt5-analysis-service/internal/config"
)

func TestLocalExportWritesDayFiles(t *testing.T) {
	dir := t.TempDir()
	e, err := New(context.Background(), config.Config{ExportDir: dir}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, e)

	days := []analysis.DayReport{
		{Date: "2026-08-03", Summary: analysis.DaySummary{Date: "2026-08-03", TotalTrades: 2, WinRate: 50}},
		{Date: "2026-08-04", Summary: analysis.DaySummary{Date: "2026-08-04", TotalTrades: 1, WinRate: 100}},
	}
	require.NoError(t, e.ExportDays(context.Background(), days))

	raw, err := os.ReadFile(filepath.Join(dir, "2026-08-03.json"))
	require.NoError(t, err)
	var day analysis.DayReport
	require.NoError(t, json.Unmarshal(raw, &day))
	assert.Equal(t, 2, day.Summary.TotalTrades)

	_, err = os.Stat(filepath.Join(dir, "2026-08-04.json"))
	require.NoError(t, err)
}

func TestDisabledExportReturnsNil(t *testing.T) {
	e, err := New(context.Background(), config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "2026-08-03.json", sanitizeKey("./2026-08-03.json"))
	assert.Equal(t, "a/b.json", sanitizeKey("/a/b.json"))
}
