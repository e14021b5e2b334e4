package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToColumnInteger(t *testing.T) {
	v, err := ToColumn("42", Int, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestToColumnNilPassesThrough(t *testing.T) {
	v, err := ToColumn(nil, Varchar, 0)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestToColumnDecimalScale(t *testing.T) {
	v, err := ToColumn(1.23456, Decimal, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.23, v)
}

func TestTinyint1RoundTrip(t *testing.T) {
	v, err := ToColumn(true, Tinyint1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	back, err := FromColumn(0, Tinyint1)
	require.NoError(t, err)
	assert.Equal(t, false, back)
}

func TestDateTimeFormatting(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	v, err := ToColumn(ts, DateTime, 0)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05 10:30:00", v)
}

func TestExplicitInvalidDateFormatFails(t *testing.T) {
	_, err := ToColumnExplicit("not-a-date", DateTime, 0)
	require.Error(t, err)
}

func TestImplicitInvalidDateFallsBackToNow(t *testing.T) {
	v, err := ToColumn("not-a-date", DateTime, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}

func TestJSONRoundTrip(t *testing.T) {
	v, err := ToColumn(map[string]any{"a": 1.0}, JSON, 0)
	require.NoError(t, err)
	back := fromJSONColumn(v)
	assert.Equal(t, map[string]any{"a": 1.0}, back)
}

func TestEqualDecimalScale(t *testing.T) {
	assert.True(t, Equal(1.001, 1.0009, Decimal, 2))
	assert.False(t, Equal(1.01, 1.02, Decimal, 2))
}

func TestEqualBinary(t *testing.T) {
	assert.True(t, Equal([]byte("abc"), "abc", Binary, 0))
	assert.False(t, Equal([]byte("abc"), "abd", Binary, 0))
}

func TestEqualJSONStructural(t *testing.T) {
	assert.True(t, Equal(`{"a":1,"b":2}`, `{"b":2,"a":1}`, JSON, 0))
}

func TestTypeMismatchOnNonScalarText(t *testing.T) {
	_, err := ToColumn(func() {}, Varchar, 0)
	require.Error(t, err)
}
