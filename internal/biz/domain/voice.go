package domain

// VoiceSignal is an out-of-band event delivered to a live voice session
type VoiceSignal string

const (
	// SignalNext moves callers back through the IVR so they hear the new topic
	SignalNext VoiceSignal = "next"
	// SignalExit drops callers out of the conference
	SignalExit VoiceSignal = "exit"
)

// Voice prompts spoken to phone participants
const (
	VoicePromptEnterID     = "Please enter meeting ID"
	VoicePromptInvalid     = "Invalid entry"
	VoicePromptNotStarted  = "Meeting has not started"
	VoicePromptInitiated   = "Meeting has been initiated"
	VoicePromptComplete    = "Meeting is complete"
	VoicePromptCanceled    = "Meeting has been canceled"
	VoicePromptTopicPrefix = "Current topic: "
)
