package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMeetingMinutes = 10
	MinMeetingMinutes     = 1
	MaxMeetingMinutes     = 30
	MaxTopics             = 10
)

// [$][blank|!|minutes]<space><topic, topic, ...>
var meetParamsPattern = regexp.MustCompile(`(?s)^\s*(\$?)(!|[0-9]+)?\s+(.*)$`)

// MeetingParams is the parsed form of a MEET directive
type MeetingParams struct {
	AudioBridge   bool
	LengthMinutes int
	Topics        []string
}

// TopicTimeLimit returns the per-topic budget in seconds
func (p *MeetingParams) TopicTimeLimit() int {
	return TopicTimeLimit(p.LengthMinutes, len(p.Topics))
}

// ParseParameters parses the text following MEET.
// now is used for the "!" duration which rounds up to the next half hour.
func ParseParameters(raw string, now time.Time) (*MeetingParams, error) {
	match := meetParamsPattern.FindStringSubmatch(raw)
	if match == nil {
		return nil, NewValidationError("invalid parameters")
	}

	params := &MeetingParams{
		AudioBridge:   match[1] == "$",
		LengthMinutes: DefaultMeetingMinutes,
	}

	switch duration := match[2]; {
	case duration == "!":
		params.LengthMinutes = MinutesToHalfHour(now)
	case duration != "":
		minutes, err := strconv.Atoi(duration)
		if err != nil || minutes < MinMeetingMinutes || minutes > MaxMeetingMinutes {
			return nil, NewValidationError("length out of range")
		}
		params.LengthMinutes = minutes
	}

	params.Topics = SplitTopics(match[3], TopicCap(params.LengthMinutes))
	if len(params.Topics) == 0 {
		return nil, NewValidationError("no topics")
	}

	return params, nil
}

// MinutesToHalfHour returns the minutes left until the next :00 or :30
func MinutesToHalfHour(now time.Time) int {
	minutes := 30 - now.Minute()%30
	if minutes == 0 {
		return 60
	}
	return minutes
}

// TopicCap returns how many topics fit a meeting of the given length
func TopicCap(lengthMinutes int) int {
	switch {
	case lengthMinutes == 1:
		return 4
	case lengthMinutes == 2:
		return 6
	case lengthMinutes >= 3 && lengthMinutes <= 5:
		return 2 * lengthMinutes
	}
	return MaxTopics
}

// SplitTopics splits a comma separated list, dropping blanks and duplicates,
// and stops once limit topics were collected
func SplitTopics(list string, limit int) []string {
	var topics []string
	seen := make(map[string]bool)

	for _, part := range strings.Split(list, ",") {
		if len(topics) >= limit {
			break
		}
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		topics = append(topics, name)
	}

	return topics
}
