package domain

// MissingTranscription replaces topics whose transcription never arrived
const MissingTranscription = "Unable to collect transcription"

// TranscriptEntry is one section of the exported meeting transcript
type TranscriptEntry struct {
	Topic string
	Text  string
}

// BuildTranscript lists topics in order, substituting the placeholder
// for topics without transcription
func BuildTranscript(topics []*Topic) []TranscriptEntry {
	entries := make([]TranscriptEntry, 0, len(topics))
	for _, t := range topics {
		text := t.Transcription
		if text == "" {
			text = MissingTranscription
		}
		entries = append(entries, TranscriptEntry{Topic: t.Name, Text: text})
	}
	return entries
}
