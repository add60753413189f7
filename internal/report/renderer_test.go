package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Oxord/SceneFlow/internal/scene"
)

func TestFormatField(t *testing.T) {
	assert.Equal(t, "a, b", FormatField(scene.ListField("a", "b")))
	assert.Equal(t, "x", FormatField(scene.ScalarField("x")))
	assert.Equal(t, "", FormatField(scene.Field{Kind: scene.FieldAbsent}))
	assert.Equal(t, "", FormatField(scene.Field{Kind: scene.FieldList}))
}

func TestSeriesNumber(t *testing.T) {
	assert.Equal(t, "2", seriesNumber("2-14"))
	assert.Equal(t, "10", seriesNumber("10-3-1"))
	assert.Equal(t, "7", seriesNumber("7"))
	assert.Equal(t, "", seriesNumber(""))
}

func TestSplitSetting(t *testing.T) {
	tests := []struct {
		name         string
		setting      string
		locationType string
		mode         string
	}{
		{"dot separated", "INT. WAREHOUSE NIGHT", "INT", "NIGHT"},
		{"space separated", "EXT STREET DAY", "EXT", "DAY"},
		{"two tokens", "INT. NIGHT", "INT", "NIGHT"},
		{"single token", "WAREHOUSE", "", ""},
		{"empty", "", "", ""},
		{"only separators", " . . ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locationType, mode := splitSetting(tt.setting)
			assert.Equal(t, tt.locationType, locationType)
			assert.Equal(t, tt.mode, mode)
		})
	}
}

func TestRendererRender(t *testing.T) {
	scenes := []scene.Scene{
		{
			Metadata: scene.Metadata{
				SceneNumber:       "2-14",
				Setting:           "INT. WAREHOUSE NIGHT",
				LocationDetails:   "abandoned dock warehouse",
				CharactersPresent: []string{"VERA", "OLEG"},
				KeyEventsSummary:  "Vera finds the ledger",
			},
			ProductionData: scene.ProductionData{
				Costume:        "worn coats",
				MakeupAndHair:  scene.ListField("bruise on cheek"),
				Props:          []string{"rope", "lantern"},
				Extras:         scene.ScalarField("2 dockworkers"),
				SpecialEffects: scene.ScalarField("fog"),
			},
		},
		{
			Metadata: scene.Metadata{
				SceneNumber: "3",
				Setting:     "ROOFTOP",
			},
		},
	}

	blob, err := NewRenderer().Render(scenes)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	f, err := excelize.OpenReader(bytes.NewReader(blob))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	t.Run("header row", func(t *testing.T) {
		assert.Equal(t, reportColumns, rows[0])
	})

	cell := func(row []string, header string) string {
		for i, h := range reportColumns {
			if h == header {
				if i < len(row) {
					return row[i]
				}
				return ""
			}
		}
		t.Fatalf("unknown header %q", header)
		return ""
	}

	t.Run("full scene row", func(t *testing.T) {
		row := rows[1]
		assert.Equal(t, "2", cell(row, "Series"))
		assert.Equal(t, "2-14", cell(row, "Scene"))
		assert.Equal(t, "NIGHT", cell(row, "Mode"))
		assert.Equal(t, "INT", cell(row, "Int / Ext"))
		assert.Equal(t, "INT. WAREHOUSE NIGHT / Vera finds the ledger", cell(row, "Setting / Synopsis"))
		assert.Equal(t, "VERA, OLEG", cell(row, "Characters"))
		assert.Equal(t, "2 dockworkers", cell(row, "Extras"))
		assert.Equal(t, "bruise on cheek", cell(row, "Makeup & Hair"))
		assert.Equal(t, "rope, lantern", cell(row, "Props"))
		assert.Equal(t, "fog", cell(row, "Special Effects"))
		assert.Equal(t, "", cell(row, "Crowd"))
		assert.Equal(t, "", cell(row, "Vehicles"))
	})

	t.Run("sparse scene row", func(t *testing.T) {
		row := rows[2]
		assert.Equal(t, "3", cell(row, "Series"))
		assert.Equal(t, "", cell(row, "Mode"))
		assert.Equal(t, "", cell(row, "Int / Ext"))
		assert.Equal(t, "ROOFTOP / ", cell(row, "Setting / Synopsis"))
		assert.Equal(t, "", cell(row, "Props"))
		assert.Equal(t, "", cell(row, "Stunts"))
	})
}
