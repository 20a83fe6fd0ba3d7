package therapy

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// EmotionTimeline maps a time marker (second offset or timestamp) to the emotion
// observed at that point.
type EmotionTimeline map[string]string

// SummaryEntry is one emotion label with its occurrence count.
type SummaryEntry struct {
	Emotion string
	Count   int
}

// EmotionSummary maps emotion labels to occurrence counts and keeps the order in
// which labels were first seen, including the key order of a decoded JSON object.
type EmotionSummary struct {
	m *orderedmap.OrderedMap[string, int]
}

func NewEmotionSummary(entries ...SummaryEntry) *EmotionSummary {
	s := &EmotionSummary{m: orderedmap.New[string, int]()}
	for _, e := range entries {
		s.Add(e.Emotion, e.Count)
	}
	return s
}

// Add increments the count for emotion, appending it if it is new.
func (s *EmotionSummary) Add(emotion string, count int) {
	if s.m == nil {
		s.m = orderedmap.New[string, int]()
	}
	cur, _ := s.m.Get(emotion)
	s.m.Set(emotion, cur+count)
}

func (s *EmotionSummary) Len() int {
	if s == nil || s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Entries returns the summary in stored order.
func (s *EmotionSummary) Entries() []SummaryEntry {
	if s.Len() == 0 {
		return nil
	}
	out := make([]SummaryEntry, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, SummaryEntry{Emotion: pair.Key, Count: pair.Value})
	}
	return out
}

// Dominant returns the emotion with the highest count. Ties go to the entry that
// appears first. ok is false for an empty summary.
func (s *EmotionSummary) Dominant() (emotion string, ok bool) {
	entries := s.Entries()
	if len(entries) == 0 {
		return "", false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Count > best.Count {
			best = e
		}
	}
	return best.Emotion, true
}

func (s *EmotionSummary) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		s.m = nil
		return nil
	}
	m := orderedmap.New[string, int]()
	if err := m.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("emotion_summary: %w", err)
	}
	s.m = m
	return nil
}

func (s *EmotionSummary) MarshalJSON() ([]byte, error) {
	if s == nil || s.m == nil {
		return []byte("{}"), nil
	}
	return s.m.MarshalJSON()
}

// EmotionData is the per-session payload sent by the emotion tracker.
// Both fields are pointers/maps so that absent keys can be told apart from
// empty ones.
type EmotionData struct {
	Timeline       EmotionTimeline `json:"timeline"`
	EmotionSummary *EmotionSummary `json:"emotion_summary"`
}

type ChatRequest struct {
	Message     string       `json:"message,omitempty"`
	EmotionData *EmotionData `json:"emotion_data"`
	TherapistID string       `json:"therapist_id"`
	PatientID   string       `json:"patient_id"`
}

type MessageRequest struct {
	Message   string                 `json:"message"`
	SessionID string                 `json:"session_id,omitempty"`
	Sessions  map[string]EmotionData `json:"sessions,omitempty"`
}

type Resource struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url,omitempty"`
}

// Analysis wraps the free-text pattern analysis.
type Analysis struct {
	Text string `json:"analysis"`
}

// RecommendationResult is the aggregate returned by the recommendation path.
type RecommendationResult struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       string     `json:"patient_id"`
	TherapistID     string     `json:"therapist_id"`
	Recommendations string     `json:"recommendations"`
	Analysis        Analysis   `json:"analysis"`
	Resources       []Resource `json:"resources"`
	DominantEmotion string     `json:"dominant_emotion"`
	Timestamp       time.Time  `json:"timestamp"`
}

// QuickRecommendationRequest is the payload of the standalone /recommendations
// endpoint.
type QuickRecommendationRequest struct {
	CurrentEmotion    string         `json:"current_emotion"`
	EmotionHistory    []any          `json:"emotion_history"`
	Timestamp         string         `json:"timestamp"`
	AdditionalContext map[string]any `json:"additional_context,omitempty"`
}

type QuickRecommendationResult struct {
	Recommendations string     `json:"recommendations"`
	Sources         []Resource `json:"sources"`
	Timestamp       string     `json:"timestamp"`
}
