package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/lingotrack/internal/achievement"
	"github.com/example/lingotrack/pkg/models"
)

// Row kinds in the first column of a catalog sheet
const (
	KindAchievement = "achievement"
	KindBadge       = "badge"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	KindColumn        string // Column with "achievement" or "badge"
	IDColumn          string // Column with the definition id
	TitleColumn       string // Column with the title
	DescriptionColumn string // Column with the description
	TypeColumn        string // Column with the criteria type
	ThresholdColumn   string // Column with the numeric criteria parameter
	EventColumn       string // Column with the special event name
	RewardColumn      string // Column with the reward XP
	ActiveColumn      string // Column with the active flag
	SheetName         string // Name of the sheet to import
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		KindColumn:        "A",
		IDColumn:          "B",
		TitleColumn:       "C",
		DescriptionColumn: "D",
		TypeColumn:        "E",
		ThresholdColumn:   "F",
		EventColumn:       "G",
		RewardColumn:      "H",
		ActiveColumn:      "I",
		SheetName:         "Sheet1",
		StartRow:          2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Achievements   int
	Badges         int
	Skipped        int
	Errors         []string
}

// ImportCatalog reads achievement and badge definitions from an Excel or CSV file.
// Malformed rows are reported in the result and skipped; the catalog is built
// from the remaining rows.
func ImportCatalog(config ImportConfig) (*achievement.Catalog, *ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	var achievements, badges []achievement.Entry

	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		if isBlank(row) {
			continue
		}

		result.TotalProcessed++

		kind, entry, err := parseRow(row, config)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}

		switch kind {
		case KindAchievement:
			achievements = append(achievements, entry)
			result.Achievements++
		case KindBadge:
			badges = append(badges, entry)
			result.Badges++
		}
	}

	catalog, err := achievement.FromEntries(achievements, badges)
	if err != nil {
		return nil, result, err
	}
	return catalog, result, nil
}

// readExcel returns all rows of a sheet
func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows")
	}
	return rows, nil
}

// readCSV returns all records of a CSV file
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading CSV")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseRow converts one sheet row to a catalog entry
func parseRow(row []string, config ImportConfig) (string, achievement.Entry, error) {
	kind := strings.ToLower(cell(row, config.KindColumn))
	if kind != KindAchievement && kind != KindBadge {
		return "", achievement.Entry{}, errors.Errorf("unknown kind %q", kind)
	}

	entry := achievement.Entry{
		ID:          cell(row, config.IDColumn),
		Title:       cell(row, config.TitleColumn),
		Description: cell(row, config.DescriptionColumn),
		Type:        models.CriteriaType(strings.ToUpper(cell(row, config.TypeColumn))),
	}
	if entry.ID == "" {
		return "", achievement.Entry{}, errors.New("id cannot be empty")
	}

	if raw := cell(row, config.ThresholdColumn); raw != "" {
		threshold, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", achievement.Entry{}, errors.Errorf("invalid threshold %q", raw)
		}
		// Every numeric parameter gets the threshold; the criteria type picks its own
		entry.Criteria = achievement.Params{
			Count:    int(threshold),
			Days:     int(threshold),
			XP:       int(threshold),
			Level:    int(threshold),
			CourseID: threshold,
		}
	}
	entry.Criteria.Event = cell(row, config.EventColumn)

	if raw := cell(row, config.RewardColumn); raw != "" {
		reward, err := strconv.Atoi(raw)
		if err != nil {
			return "", achievement.Entry{}, errors.Errorf("invalid reward %q", raw)
		}
		entry.RewardXP = reward
	}

	if raw := cell(row, config.ActiveColumn); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return "", achievement.Entry{}, errors.Errorf("invalid active flag %q", raw)
		}
		entry.Active = &active
	}

	return kind, entry, nil
}

// cell returns the trimmed value of a column, or "" when the row is shorter
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if colIdx := columnToIndex(column); colIdx < len(row) {
		return strings.TrimSpace(row[colIdx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
