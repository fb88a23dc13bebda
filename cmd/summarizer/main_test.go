package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseDate("1996-06-30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1996, 6, 30, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("1996-6-30")
	assert.ErrorContains(t, err, "YYYY-MM-DD")

	_, err = parseDate("June 1996")
	assert.Error(t, err)
}
