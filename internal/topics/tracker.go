// Package topics maintains the bounded topic-popularity ranking. It is an
// approximate signal: tracking failures are logged and swallowed so quiz
// generation never depends on tracker health.
package topics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Duckierstone42/cf-ai-quiz-app/internal/kv"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/logger"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/models"
)

const (
	storageKey = "popular-topics"
	maxTracked = 50
	maxListed  = 10
)

type Tracker struct {
	store kv.Store
	log   *logger.Logger
}

func NewTracker(store kv.Store, log *logger.Logger) *Tracker {
	return &Tracker{store: store, log: log}
}

// Record increments the usage count for topic, matching existing entries
// case-insensitively. Errors never propagate to the caller.
func (t *Tracker) Record(ctx context.Context, topic string) {
	if err := t.record(ctx, topic); err != nil {
		t.log.Warnw("failed to track topic popularity", "topic", topic, "error", err)
	}
}

func (t *Tracker) record(ctx context.Context, topic string) error {
	entries, err := t.loadEntries(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	found := false
	for i := range entries {
		if strings.EqualFold(entries[i].Topic, topic) {
			entries[i].Count++
			entries[i].LastUsed = now
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, models.TopicCount{Topic: topic, Count: 1, LastUsed: now})
	}

	sortByCount(entries)
	if len(entries) > maxTracked {
		entries = entries[:maxTracked]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	return t.store.Put(ctx, storageKey, raw)
}

// List returns the top 10 topics by count. When nothing has been tracked
// yet it returns a fixed default list with zero counts.
func (t *Tracker) List(ctx context.Context) ([]models.TopicCount, error) {
	entries, err := t.loadEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return defaultTopics(), nil
	}

	sortByCount(entries)
	if len(entries) > maxListed {
		entries = entries[:maxListed]
	}
	return entries, nil
}

func (t *Tracker) loadEntries(ctx context.Context) ([]models.TopicCount, error) {
	raw, err := t.store.Get(ctx, storageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}

	var entries []models.TopicCount
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	return entries, nil
}

// Descending by count; stable so ties keep their relative order.
func sortByCount(entries []models.TopicCount) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
}

func defaultTopics() []models.TopicCount {
	names := []string{
		"JavaScript", "Python", "React", "Node.js", "CSS",
		"HTML", "SQL", "Git", "Algorithms", "Data Structures",
	}
	topics := make([]models.TopicCount, len(names))
	for i, name := range names {
		topics[i] = models.TopicCount{Topic: name, Count: 0}
	}
	return topics
}
