package excel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/lingotrack/internal/achievement"
)

func TestImportCatalog_Excel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"kind", "id", "title", "description", "type", "threshold", "event", "reward_xp", "active"},
		{"achievement", "first-lesson", "First steps", "Complete a lesson", "LESSON_COMPLETION", 1, "", 10, "true"},
		{"achievement", "streak-7", "On a roll", "", "streak", 7, "", "", "false"},
		{"badge", "launch", "Launch party", "", "SPECIAL_EVENT", "", "launch-2026", "", ""},
		{"trophy", "bad-kind", "", "", "STREAK", 1, "", "", ""},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	config := DefaultImportConfig()
	config.FilePath = path
	catalog, result, err := ImportCatalog(config)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalProcessed)
	assert.Equal(t, 2, result.Achievements)
	assert.Equal(t, 1, result.Badges)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Row 5")

	first, ok := catalog.Achievement("first-lesson")
	require.True(t, ok)
	assert.Equal(t, achievement.LessonCompletion{Count: 1}, first.Criteria)
	assert.Equal(t, 10, first.RewardXP)
	assert.True(t, first.Active)

	streak, ok := catalog.Achievement("streak-7")
	require.True(t, ok)
	assert.Equal(t, achievement.Streak{Days: 7}, streak.Criteria)
	assert.False(t, streak.Active)

	badge, ok := catalog.Badge("launch")
	require.True(t, ok)
	assert.Equal(t, achievement.SpecialEvent{Event: "launch-2026"}, badge.Criteria)
}

func TestImportCatalog_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	content := "kind,id,title,description,type,threshold,event,reward_xp,active\n" +
		"achievement,xp-500,Scholar,,TOTAL_XP,500,,25,\n" +
		"\n" +
		"badge,course-3,Graduate,,COURSE_COMPLETION,3,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultImportConfig()
	config.FilePath = path
	catalog, result, err := ImportCatalog(config)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalProcessed)
	assert.Empty(t, result.Errors)

	xp, ok := catalog.Achievement("xp-500")
	require.True(t, ok)
	assert.Equal(t, achievement.TotalXP{XP: 500}, xp.Criteria)

	badge, ok := catalog.Badge("course-3")
	require.True(t, ok)
	assert.Equal(t, achievement.CourseCompletion{CourseID: 3}, badge.Criteria)
}

func TestImportCatalog_InvalidCriteria(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	content := "kind,id,title,description,type,threshold\n" +
		"achievement,broken,Broken,,STREAK,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultImportConfig()
	config.FilePath = path
	_, _, err := ImportCatalog(config)
	assert.Error(t, err)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 8, columnToIndex("i"))
	assert.Equal(t, 26, columnToIndex("AA"))
}
