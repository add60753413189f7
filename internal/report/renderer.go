package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/Oxord/SceneFlow/internal/scene"
)

const sheetName = "Scenes"

// reportColumns is the fixed, ordered column schema of the scene report.
// Columns with no corresponding source field stay empty; they are
// documented gaps in the source data, not errors.
var reportColumns = []string{
	"Series",
	"Scene",
	"Mode",
	"Int / Ext",
	"Setting / Synopsis",
	"Location Notes",
	"Characters",
	"Extras",
	"Crowd",
	"Makeup & Hair",
	"Costume",
	"Props",
	"Vehicles",
	"Set Dressing",
	"Pyrotechnics",
	"Stunts",
	"Music",
	"Special Effects",
	"Special Equipment",
}

// Renderer is a pure transform from parsed scenes to an XLSX workbook.
type Renderer struct{}

// NewRenderer creates a scene report renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces a workbook with one header row followed by one row per
// scene, using the fixed column schema above.
func (r *Renderer) Render(scenes []scene.Scene) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	widths := make([]int, len(reportColumns))
	for i, header := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9D9D9"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	lastHeaderCell, err := excelize.CoordinatesToCellName(len(reportColumns), 1)
	if err != nil {
		return nil, fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastHeaderCell, headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for rowIdx, sc := range scenes {
		row := rowIdx + 2
		for colIdx, value := range sceneRow(sc) {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, row)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("write cell %s: %w", cell, err)
			}
			if n := utf8.RuneCountInString(value); n > widths[colIdx] {
				widths[colIdx] = n
			}
		}
	}

	// Size columns to content; a presentation detail, capped so a huge
	// synopsis does not produce an unusable sheet.
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		w := float64(width) + 2
		if w > 80 {
			w = 80
		}
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// sceneRow derives the cell values for one scene, in column order.
func sceneRow(sc scene.Scene) []string {
	meta := sc.Metadata
	prod := sc.ProductionData

	locationType, mode := splitSetting(meta.Setting)

	return []string{
		seriesNumber(meta.SceneNumber),
		meta.SceneNumber,
		mode,
		locationType,
		fmt.Sprintf("%s / %s", meta.Setting, meta.KeyEventsSummary),
		meta.LocationDetails,
		strings.Join(meta.CharactersPresent, ", "),
		FormatField(prod.Extras),
		"", // crowd: not present in source data
		FormatField(prod.MakeupAndHair),
		prod.Costume,
		strings.Join(prod.Props, ", "),
		"", // vehicles: not present in source data
		"", // set dressing: not present in source data
		"", // pyrotechnics: not present in source data
		FormatField(prod.Stunts),
		FormatField(prod.Music),
		FormatField(prod.SpecialEffects),
		"", // special equipment: not present in source data
	}
}

// FormatField renders a string-or-array production attribute with one
// uniform rule: lists become comma-space-joined strings, scalars pass
// through, absent values become the empty string.
func FormatField(f scene.Field) string {
	switch f.Kind {
	case scene.FieldList:
		return strings.Join(f.List, ", ")
	case scene.FieldScalar:
		return f.Scalar
	default:
		return ""
	}
}

// seriesNumber extracts the series from a scene number, the token before
// the first dash.
func seriesNumber(sceneNumber string) string {
	if sceneNumber == "" {
		return ""
	}
	return strings.SplitN(sceneNumber, "-", 2)[0]
}

// splitSetting tokenizes a setting on spaces and dots. The location type
// is the first token and the mode the last; both are empty when the
// setting is absent or has a single token.
func splitSetting(setting string) (locationType, mode string) {
	tokens := strings.FieldsFunc(setting, func(r rune) bool {
		return r == ' ' || r == '.'
	})
	if len(tokens) < 2 {
		return "", ""
	}
	return tokens[0], tokens[len(tokens)-1]
}
