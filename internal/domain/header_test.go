package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRow(cells ...string) RawRow {
	row := make(RawRow, len(cells))
	for i, c := range cells {
		row[positionKey(i)] = c
	}
	return row
}

func TestReconcileHeaders(t *testing.T) {
	tests := []struct {
		name    string
		primary RawRow
		sub     RawRow
		want    []string
	}{
		{
			name:    "primary wins when present",
			primary: rawRow("Gauging Station", "Unit"),
			sub:     rawRow("ignored", "also ignored"),
			want:    []string{"Gauging Station", "Unit"},
		},
		{
			name:    "sub fills blank primary",
			primary: rawRow("Water Level", "", ""),
			sub:     rawRow("", "at 8 am", "at 2 pm"),
			want:    []string{"Water Level", "at 8 am", "at 2 pm"},
		},
		{
			name:    "newlines stripped and trimmed",
			primary: rawRow("Minor\nFlood Level ", " Tributory/River\n"),
			sub:     rawRow("", ""),
			want:    []string{"MinorFlood Level", "Tributory/River"},
		},
		{
			name:    "whitespace-only primary falls back to sub",
			primary: rawRow("  \n "),
			sub:     rawRow(" at 6:30 am"),
			want:    []string{"at 6:30 am"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags, err := ReconcileHeaders(tt.primary, tt.sub)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, len(tt.primary))
			assert.Empty(t, diags)
		})
	}
}

func TestReconcileHeaders_EmptyInBothRows(t *testing.T) {
	got, diags, err := ReconcileHeaders(rawRow("Unit", ""), rawRow("", " "))
	require.NoError(t, err)
	assert.Equal(t, []string{"Unit", ""}, got)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagEmptyColumnName, diags[0].Kind)
	assert.Equal(t, "1", diags[0].Column)
}

func TestReconcileHeaders_Malformed(t *testing.T) {
	t.Run("different widths", func(t *testing.T) {
		_, _, err := ReconcileHeaders(rawRow("a", "b", "c"), rawRow("a", "b"))
		require.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("missing position", func(t *testing.T) {
		_, _, err := ReconcileHeaders(RawRow{"0": "a", "2": "c"}, rawRow("a", "b"))
		require.ErrorIs(t, err, ErrMalformedInput)
		assert.Contains(t, err.Error(), "position 1")
	})
}

func TestMaterializeRows(t *testing.T) {
	rows := []RawRow{
		rawRow(" Kelani Ganga", "Nagalagam\nStreet", "3.25 "),
		rawRow("Kalu Ganga", "Putupaula", "NA"),
	}

	got, err := MaterializeRows(rows, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Kelani Ganga", "NagalagamStreet", "3.25"},
		{"Kalu Ganga", "Putupaula", "NA"},
	}, got)
}

func TestMaterializeRows_WidthMismatch(t *testing.T) {
	rows := []RawRow{
		rawRow("a", "b", "c"),
		rawRow("a", "b"),
	}

	_, err := MaterializeRows(rows, 3)
	require.ErrorIs(t, err, ErrMalformedInput)
	assert.Contains(t, err.Error(), "data row 1")
}

func TestMaterializeRows_MissingPosition(t *testing.T) {
	_, err := MaterializeRows([]RawRow{{"0": "a", "1": "b", "5": "c"}}, 3)
	require.ErrorIs(t, err, ErrMalformedInput)
}
