package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func warningsFor(budget int) []int {
	var fired []int
	for left := budget; left >= 0; left-- {
		if w, ok := WarningAt(budget, left); ok {
			fired = append(fired, w.At)
		}
	}
	return fired
}

func TestWarningAt(t *testing.T) {
	assert.Equal(t, []int{120, 60, 15}, warningsFor(300))
	assert.Equal(t, []int{120, 60, 15}, warningsFor(240))
	assert.Equal(t, []int{60, 15}, warningsFor(150))
	assert.Equal(t, []int{15}, warningsFor(60))
	assert.Empty(t, warningsFor(59))
	assert.Empty(t, warningsFor(30))
}

func TestFormatMinutesSeconds(t *testing.T) {
	assert.Equal(t, "02 minutes 05 seconds", FormatMinutesSeconds(125))
	assert.Equal(t, "00 minutes 00 seconds", FormatMinutesSeconds(0))
	assert.Equal(t, "30 minutes 00 seconds", FormatMinutesSeconds(1800))
	assert.Equal(t, "00 minutes 00 seconds", FormatMinutesSeconds(-3))
}

func TestBuildTranscript(t *testing.T) {
	entries := BuildTranscript([]*Topic{
		{Name: "Budget", Transcription: "we agreed"},
		{Name: "Hiring"},
	})
	assert.Equal(t, []TranscriptEntry{
		{Topic: "Budget", Text: "we agreed"},
		{Topic: "Hiring", Text: MissingTranscription},
	}, entries)
}

func TestVoiceCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := NewVoiceCode()
		assert.Len(t, code, 4)
		assert.GreaterOrEqual(t, code, "1000")
		assert.LessOrEqual(t, code, "9999")
	}
}

func TestErrors(t *testing.T) {
	err := NewNotFoundError("meeting not found")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.False(t, IsNotFound(nil))
	assert.Equal(t, ErrorTypeInternal, GetErrorType(assert.AnError))
	assert.Equal(t, "store down: "+assert.AnError.Error(), NewUnavailableError("store down", assert.AnError).Error())
}
