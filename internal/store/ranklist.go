package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rankKeyPrefix = "perpsignal:ranked:"

// rankedList is the persisted shape of one ranked symbol list.
type rankedList struct {
	Symbols    []string `json:"symbols"`
	UpdatedUTC string   `json:"updated_utc"`
}

// RankListStore persists ranked symbol lists in Redis as JSON documents
// and detects whether a list changed between saves. Order matters for
// change detection, a reshuffle of the same symbols counts as a change.
type RankListStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankListStore(client *redis.Client, ttl time.Duration) *RankListStore {
	return &RankListStore{client: client, ttl: ttl}
}

// SaveList writes the list and reports whether its symbol sequence
// differs from the stored one.
func (s *RankListStore) SaveList(ctx context.Context, name string, symbols []string) (bool, error) {
	prev, err := s.GetList(ctx, name)
	if err != nil {
		return false, err
	}
	changed := !equalSymbols(prev, symbols)

	doc := rankedList{
		Symbols:    symbols,
		UpdatedUTC: time.Now().UTC().Format(time.RFC3339),
	}
	if doc.Symbols == nil {
		doc.Symbols = []string{}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to encode ranked list: %w", err)
	}
	if err := s.client.Set(ctx, rankKeyPrefix+name, payload, s.ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to store ranked list %q: %w", name, err)
	}
	return changed, nil
}

// GetList returns the stored symbols for a list, nil when absent.
func (s *RankListStore) GetList(ctx context.Context, name string) ([]string, error) {
	raw, err := s.client.Get(ctx, rankKeyPrefix+name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ranked list %q: %w", name, err)
	}
	var doc rankedList
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode ranked list %q: %w", name, err)
	}
	return doc.Symbols, nil
}

func equalSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
