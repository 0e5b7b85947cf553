package textnorm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Zaandamse Hockeyclub Ståtig", "Zaandamse Hockeyclub Statig"},
		{"Réal Club de Polo", "Real Club de Polo"},
		{"Düsseldorfer HC", "Dusseldorfer HC"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripDiacritics(tt.in), tt.in)
	}
}

func TestFoldAndSlug(t *testing.T) {
	assert.Equal(t, "hc bloemendaal", Fold("  HC \t Bloemendaal "))
	assert.Equal(t, "sch-ren-hc", Slug("SCH / Rën HC"))
	assert.Equal(t, "a-b", Slug("--A & B--"))
	assert.Equal(t, "", Slug("  "))
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "12", Digits(" #12 "))
	assert.Equal(t, "", Digits("n/a"))
}

func TestKNHBToUTC(t *testing.T) {
	ams, err := time.LoadLocation(DefaultKNHBZone)
	require.NoError(t, err)

	got, err := KNHBToUTC("2024-09-08 14:30:00", ams)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 8, 12, 30, 0, 0, time.UTC), got)

	got, err = KNHBToUTC("2024-01-14T11:00:00", ams)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 14, 10, 0, 0, 0, time.UTC), got)

	got, err = KNHBToUTC("2024-09-08T14:30:00+02:00", ams)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 8, 12, 30, 0, 0, time.UTC), got)

	_, err = KNHBToUTC("8 sept 2024", ams)
	require.Error(t, err)
	_, err = KNHBToUTC(" ", ams)
	require.Error(t, err)
}

func TestTMSToUTC(t *testing.T) {
	aliases := map[string]string{"CEST": "+02:00", "IST": "Asia/Kolkata"}

	tests := []struct {
		name string
		text string
		zone string
		want time.Time
	}{
		{"iana", "Sat 14 Oct 2023\n  12:30", "Europe/Amsterdam", time.Date(2023, 10, 14, 10, 30, 0, 0, time.UTC)},
		{"gmt offset", "14 Oct 2023 12:30", "GMT+2", time.Date(2023, 10, 14, 10, 30, 0, 0, time.UTC)},
		{"negative offset", "2 Jan 2024 09:00", "UTC-03:30", time.Date(2024, 1, 2, 12, 30, 0, 0, time.UTC)},
		{"alias", "2024-03-01 19:00", "cest", time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)},
		{"alias to iana", "01/03/2024 19:00", "IST", time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)},
		{"utc", "14 October 2023 12:30", "UTC", time.Date(2023, 10, 14, 12, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TMSToUTC(tt.text, tt.zone, aliases)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestTMSToUTC_Rejects(t *testing.T) {
	_, err := TMSToUTC("14 Oct 2023 12:30", "", nil)
	require.Error(t, err)

	_, err = TMSToUTC("14 Oct 2023 12:30", "Mars/Olympus", nil)
	require.Error(t, err)

	_, err = TMSToUTC("next saturday", "UTC", nil)
	require.Error(t, err)

	_, err = TMSToUTC("14 Oct 2023 12:30", "+25", nil)
	require.Error(t, err)
}
