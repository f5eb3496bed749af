package data

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
	"github.com/nats-io/nats.go/jetstream"
)

func chatIndexKey(chatID string) string { return "chat." + chatID }
func voiceIndexKey(code string) string { return "voice." + code }
func callerKey(meetingID, callerID string) string {
	return meetingID + "." + callerID
}

// natsMeetingRepo implements repo.MeetingRepo on JetStream KV.
// Uniqueness of chat and voice code is enforced by create-only index keys.
type natsMeetingRepo struct {
	meetings *kvBucket[meetingRecord]
	topics   *kvBucket[domain.Topic]
	callers  *kvBucket[domain.Caller]
	index    *kvBucket[string]
}

func (r *natsMeetingRepo) claimIndex(ctx context.Context, key, meetingID string) error {
	data, _ := json.Marshal(meetingID)
	if _, err := r.index.kv.Create(ctx, key, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return domain.NewConflictError("meeting already exists for " + key)
		}
		return domain.NewUnavailableError("failed to create meeting index", err)
	}
	return nil
}

func (r *natsMeetingRepo) Create(ctx context.Context, m *domain.Meeting, topics []*domain.Topic) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if err := r.claimIndex(ctx, chatIndexKey(m.ChatID), m.ID); err != nil {
		return err
	}
	if err := r.claimIndex(ctx, voiceIndexKey(m.VoiceCode), m.ID); err != nil {
		_ = r.index.delete(ctx, chatIndexKey(m.ChatID))
		return err
	}

	rec := &meetingRecord{Meeting: *m}
	for _, t := range topics {
		t.MeetingID = m.ID
		if err := r.topics.put(ctx, t.ID, t); err != nil {
			r.rollback(ctx, m, topics)
			return err
		}
		rec.TopicIDs = append(rec.TopicIDs, t.ID)
	}
	if err := r.meetings.put(ctx, m.ID, rec); err != nil {
		r.rollback(ctx, m, topics)
		return err
	}
	return nil
}

func (r *natsMeetingRepo) rollback(ctx context.Context, m *domain.Meeting, topics []*domain.Topic) {
	for _, t := range topics {
		_ = r.topics.delete(ctx, t.ID)
	}
	_ = r.index.delete(ctx, chatIndexKey(m.ChatID))
	_ = r.index.delete(ctx, voiceIndexKey(m.VoiceCode))
}

func (r *natsMeetingRepo) Get(ctx context.Context, id string) (*domain.Meeting, error) {
	rec, _, err := r.meetings.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec.Meeting, nil
}

func (r *natsMeetingRepo) getByIndex(ctx context.Context, key string) (*domain.Meeting, error) {
	id, _, err := r.index.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, *id)
}

func (r *natsMeetingRepo) GetByChat(ctx context.Context, chatID string) (*domain.Meeting, error) {
	return r.getByIndex(ctx, chatIndexKey(chatID))
}

func (r *natsMeetingRepo) GetByVoiceCode(ctx context.Context, code string) (*domain.Meeting, error) {
	return r.getByIndex(ctx, voiceIndexKey(code))
}

func (r *natsMeetingRepo) List(ctx context.Context) ([]*domain.Meeting, error) {
	keys, err := r.meetings.keys(ctx, "")
	if err != nil {
		return nil, err
	}
	meetings := make([]*domain.Meeting, 0, len(keys))
	for _, key := range keys {
		m, err := r.Get(ctx, key)
		if err != nil {
			if !domain.IsNotFound(err) {
				slog.WarnContext(ctx, "failed to get meeting, skipping", "key", key, logging.ErrKey, err)
			}
			continue
		}
		meetings = append(meetings, m)
	}
	return meetings, nil
}

// update mutates the stored meeting and bumps UpdatedAt
func (r *natsMeetingRepo) update(ctx context.Context, id string, fn func(*domain.Meeting)) error {
	_, err := r.meetings.mutate(ctx, id, func(rec *meetingRecord) bool {
		fn(&rec.Meeting)
		rec.Meeting.UpdatedAt = time.Now()
		return true
	})
	return err
}

// updateLive is update for lifecycle writes: a canceled meeting reports
// NotFound so Canceled is never overwritten
func (r *natsMeetingRepo) updateLive(ctx context.Context, id string, fn func(*domain.Meeting)) error {
	canceled := false
	_, err := r.meetings.mutate(ctx, id, func(rec *meetingRecord) bool {
		canceled = rec.Meeting.State == domain.MeetingStateCanceled
		if canceled {
			return false
		}
		fn(&rec.Meeting)
		rec.Meeting.UpdatedAt = time.Now()
		return true
	})
	if err != nil {
		return err
	}
	if canceled {
		return domain.NewNotFoundError("meeting " + id + " canceled")
	}
	return nil
}

// SetState moves the meeting to state. Only Canceled may replace Canceled.
func (r *natsMeetingRepo) SetState(ctx context.Context, id string, state domain.MeetingState) error {
	if state == domain.MeetingStateCanceled {
		return r.update(ctx, id, func(m *domain.Meeting) { m.State = state })
	}
	return r.updateLive(ctx, id, func(m *domain.Meeting) { m.State = state })
}

func (r *natsMeetingRepo) SetCurrentTopic(ctx context.Context, id, topicID string) error {
	return r.update(ctx, id, func(m *domain.Meeting) { m.CurrentTopicID = topicID })
}

func (r *natsMeetingRepo) SetCompleted(ctx context.Context, id, completeMsgID string) error {
	return r.updateLive(ctx, id, func(m *domain.Meeting) {
		m.State = domain.MeetingStateCompleted
		m.CompleteMsgID = completeMsgID
	})
}

func (r *natsMeetingRepo) MarkVoiceUsed(ctx context.Context, id string) error {
	return r.update(ctx, id, func(m *domain.Meeting) { m.VoiceUsed = true })
}

func (r *natsMeetingRepo) RequestNextTopic(ctx context.Context, id string) error {
	return r.update(ctx, id, func(m *domain.Meeting) { m.QueueNextTopic = true })
}

func (r *natsMeetingRepo) RequestStart(ctx context.Context, id string) error {
	return r.update(ctx, id, func(m *domain.Meeting) { m.StartRequested = true })
}

func (r *natsMeetingRepo) Touch(ctx context.Context, id string) error {
	return r.update(ctx, id, func(*domain.Meeting) {})
}

func (r *natsMeetingRepo) ConsumeNextTopic(ctx context.Context, id string) (bool, error) {
	return r.meetings.mutate(ctx, id, func(rec *meetingRecord) bool {
		if !rec.Meeting.QueueNextTopic {
			return false
		}
		rec.Meeting.QueueNextTopic = false
		rec.Meeting.UpdatedAt = time.Now()
		return true
	})
}

func (r *natsMeetingRepo) Delete(ctx context.Context, id string) error {
	rec, _, err := r.meetings.get(ctx, id)
	if err != nil {
		return err
	}

	callerKeys, err := r.callers.keys(ctx, id+".")
	if err != nil {
		return err
	}
	for _, key := range callerKeys {
		if err := r.callers.delete(ctx, key); err != nil {
			return err
		}
	}
	for _, topicID := range rec.TopicIDs {
		if err := r.topics.delete(ctx, topicID); err != nil {
			return err
		}
	}
	if err := r.meetings.delete(ctx, id); err != nil {
		return err
	}
	_ = r.index.delete(ctx, chatIndexKey(rec.Meeting.ChatID))
	_ = r.index.delete(ctx, voiceIndexKey(rec.Meeting.VoiceCode))
	return nil
}

func (r *natsMeetingRepo) CleanupStale(ctx context.Context, before time.Time) (int64, error) {
	meetings, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, m := range meetings {
		if !m.UpdatedAt.Before(before) {
			continue
		}
		if err := r.Delete(ctx, m.ID); err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// natsTopicRepo implements repo.TopicRepo on JetStream KV
type natsTopicRepo struct {
	topics *kvBucket[domain.Topic]
}

func (r *natsTopicRepo) Get(ctx context.Context, id string) (*domain.Topic, error) {
	t, _, err := r.topics.get(ctx, id)
	return t, err
}

// ListByMeeting scans the bucket; meetings hold at most a handful of topics
func (r *natsTopicRepo) ListByMeeting(ctx context.Context, meetingID string) ([]*domain.Topic, error) {
	keys, err := r.topics.keys(ctx, "")
	if err != nil {
		return nil, err
	}
	var topics []*domain.Topic
	for _, key := range keys {
		t, err := r.Get(ctx, key)
		if err != nil || t.MeetingID != meetingID {
			continue
		}
		topics = append(topics, t)
	}
	sortTopics(topics)
	return topics, nil
}

func (r *natsTopicRepo) Begin(ctx context.Context, id, messageID string, timeLeft int) error {
	_, err := r.topics.mutate(ctx, id, func(t *domain.Topic) bool {
		t.MessageID = messageID
		t.TimeLeft = timeLeft
		return true
	})
	return err
}

func (r *natsTopicRepo) UpdateTimeLeft(ctx context.Context, id string, timeLeft int) error {
	_, err := r.topics.mutate(ctx, id, func(t *domain.Topic) bool {
		t.TimeLeft = timeLeft
		return true
	})
	return err
}

func (r *natsTopicRepo) MarkRecording(ctx context.Context, id string) (bool, error) {
	return r.topics.mutate(ctx, id, func(t *domain.Topic) bool {
		if t.Recording {
			return false
		}
		t.Recording = true
		return true
	})
}

func (r *natsTopicRepo) SetTranscription(ctx context.Context, id, text string) error {
	_, err := r.topics.mutate(ctx, id, func(t *domain.Topic) bool {
		t.Transcription = text
		return true
	})
	return err
}

// natsCallerRepo implements repo.CallerRepo on JetStream KV
type natsCallerRepo struct {
	meetings *kvBucket[meetingRecord]
	callers  *kvBucket[domain.Caller]
}

func (r *natsCallerRepo) Add(ctx context.Context, c *domain.Caller) error {
	if _, _, err := r.meetings.get(ctx, c.MeetingID); err != nil {
		return err
	}
	return r.callers.put(ctx, callerKey(c.MeetingID, c.ID), c)
}

func (r *natsCallerRepo) ListByMeeting(ctx context.Context, meetingID string) ([]*domain.Caller, error) {
	keys, err := r.callers.keys(ctx, meetingID+".")
	if err != nil {
		return nil, err
	}
	callers := make([]*domain.Caller, 0, len(keys))
	for _, key := range keys {
		c, _, err := r.callers.get(ctx, key)
		if err != nil {
			continue
		}
		callers = append(callers, c)
	}
	return callers, nil
}

func (r *natsCallerRepo) DeleteBySession(ctx context.Context, meetingID, sessionID string) error {
	callers, err := r.ListByMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	for _, c := range callers {
		if c.SessionID == sessionID {
			return r.callers.delete(ctx, callerKey(meetingID, c.ID))
		}
	}
	return domain.NewNotFoundError("caller " + sessionID + " not found")
}

func sortTopics(topics []*domain.Topic) {
	sort.Slice(topics, func(i, j int) bool { return topics[i].Seq < topics[j].Seq })
}
