package tropo

import (
	"encoding/json"
	"fmt"
	"io"
)

// Script builds a Tropo WebAPI response document
type Script struct {
	actions []map[string]interface{}
}

// NewScript returns an empty script
func NewScript() *Script {
	return &Script{}
}

type sayValue struct {
	Value string `json:"value"`
}

func (s *Script) add(name string, v interface{}) *Script {
	s.actions = append(s.actions, map[string]interface{}{name: v})
	return s
}

// Say speaks text
func (s *Script) Say(text string) *Script {
	return s.add("say", []sayValue{{Value: text}})
}

// Ask prompts for input matching choices, e.g. "[4 DIGITS]"
func (s *Script) Ask(name, prompt, choices string, attempts int, timeout float64) *Script {
	return s.add("ask", map[string]interface{}{
		"name":     name,
		"say":      []sayValue{{Value: prompt}},
		"choices":  map[string]string{"value": choices},
		"attempts": attempts,
		"timeout":  timeout,
	})
}

// On routes event (continue, hangup or a signal name) to the next URL
func (s *Script) On(event, next string) *Script {
	return s.add("on", map[string]string{"event": event, "next": next})
}

// Call dials to, a phone number or "sip:" URI
func (s *Script) Call(to string) *Script {
	return s.add("call", map[string]string{"to": to})
}

// Conference joins the caller to conference id
func (s *Script) Conference(id, terminator string, allowSignals []string) *Script {
	return s.add("conference", map[string]interface{}{
		"id":           id,
		"name":         id,
		"terminator":   terminator,
		"allowSignals": allowSignals,
	})
}

// StartRecording records the call and posts the transcription to transcriptionURL
func (s *Script) StartRecording(url, transcriptionURL string) *Script {
	return s.add("startRecording", map[string]string{
		"url":                 url,
		"transcriptionOutURI": transcriptionURL,
	})
}

// StopRecording ends any recording in progress
func (s *Script) StopRecording() *Script {
	return s.add("stopRecording", map[string]string{})
}

// MarshalJSON renders the {"tropo":[...]} document
func (s *Script) MarshalJSON() ([]byte, error) {
	actions := s.actions
	if actions == nil {
		actions = []map[string]interface{}{}
	}
	return json.Marshal(map[string]interface{}{"tropo": actions})
}

// Session is the payload Tropo posts to the start URL of a call
type Session struct {
	ID         string
	CallerID   string
	CallerName string
	// Parameters are set for sessions launched through the REST API
	Parameters map[string]string
}

// Outbound reports whether the session was launched through the REST API
func (s *Session) Outbound() bool {
	return s.Parameters["sipAddress"] != ""
}

// ParseSession decodes a session start body
func ParseSession(r io.Reader) (*Session, error) {
	var body struct {
		Session struct {
			ID   string `json:"id"`
			From struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"from"`
			Parameters map[string]string `json:"parameters"`
		} `json:"session"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode tropo session: %w", err)
	}
	return &Session{
		ID:         body.Session.ID,
		CallerID:   body.Session.From.ID,
		CallerName: body.Session.From.Name,
		Parameters: body.Session.Parameters,
	}, nil
}

// Result is the payload Tropo posts to "next" URLs
type Result struct {
	SessionID string
	CallID    string
	State     string
	Value     string // Interpreted value of the last ask
}

type resultAction struct {
	Name           string `json:"name"`
	Disposition    string `json:"disposition"`
	Value          string `json:"value"`
	Interpretation string `json:"interpretation"`
}

// ParseResult decodes a callback body. actions may be an object or a list.
func ParseResult(r io.Reader) (*Result, error) {
	var body struct {
		Result struct {
			SessionID string          `json:"sessionId"`
			CallID    string          `json:"callId"`
			State     string          `json:"state"`
			Actions   json.RawMessage `json:"actions"`
		} `json:"result"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode tropo result: %w", err)
	}

	res := &Result{
		SessionID: body.Result.SessionID,
		CallID:    body.Result.CallID,
		State:     body.Result.State,
	}

	raw := body.Result.Actions
	if len(raw) == 0 || string(raw) == "null" {
		return res, nil
	}
	var actions []resultAction
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &actions); err != nil {
			return nil, fmt.Errorf("failed to decode tropo actions: %w", err)
		}
	} else {
		var one resultAction
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("failed to decode tropo actions: %w", err)
		}
		actions = append(actions, one)
	}
	if len(actions) > 0 {
		last := actions[len(actions)-1]
		res.Value = last.Value
		if res.Value == "" {
			res.Value = last.Interpretation
		}
	}
	return res, nil
}

// ParseTranscription decodes the transcription callback body
func ParseTranscription(r io.Reader) (string, error) {
	var body struct {
		Result struct {
			Transcription string `json:"transcription"`
		} `json:"result"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode transcription: %w", err)
	}
	return body.Result.Transcription, nil
}
