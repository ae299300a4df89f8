package naming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-roster/types"
)

func TestSuffix(t *testing.T) {
	cases := map[int]string{1: "st", 2: "nd", 3: "rd", 4: "th", 11: "th", 12: "th", 13: "th", 21: "st", 22: "nd", 23: "rd", 30: "th", 31: "st"}
	for day, want := range cases {
		assert.Equal(t, want, Suffix(day), "day %d", day)
	}
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "vAS-ASAP", ChannelName(types.ASAP(), "vAS", time.UTC))

	// 2023-11-14 22:13:20 UTC, already the 15th in Tokyo
	s := types.Schedule{Unix: 1700000000}
	assert.Equal(t, "vAS-Tue-14th", ChannelName(s, "vAS", time.UTC))
	tokyo, err := LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "vAS-Wed-15th", ChannelName(s, "vAS", tokyo))
}

func TestSortWeight(t *testing.T) {
	assert.Equal(t, AsapWeight, SortWeight(types.ASAP(), time.UTC))
	assert.Equal(t, 11142023, SortWeight(types.Schedule{Unix: 1700000000}, time.UTC))
	jan := types.At(time.Date(2024, time.January, 5, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, 1052024, SortWeight(jan, time.UTC))
	later := types.At(time.Date(2024, time.January, 12, 20, 0, 0, 0, time.UTC))
	assert.Less(t, SortWeight(jan, time.UTC), SortWeight(later, time.UTC))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "ASAP", FormatDate(types.ASAP()))
	assert.Equal(t, "<t:1700000000:f>", FormatDate(types.Schedule{Unix: 1700000000}))
	parsed, err := types.ParseSchedule(FormatDate(types.Schedule{Unix: 1700000000}))
	require.NoError(t, err)
	assert.Equal(t, types.Schedule{Unix: 1700000000}, parsed)
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}
