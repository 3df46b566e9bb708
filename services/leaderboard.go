package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardService keeps a week-scoped XP leaderboard in a Redis sorted
// set. Keys rotate with the ISO week, so stale boards age out on their own.
type LeaderboardService struct {
	client *redis.Client
}

func NewLeaderboardService(addr, password string, db int) (*LeaderboardService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &LeaderboardService{client: client}, nil
}

func (s *LeaderboardService) Close() error {
	return s.client.Close()
}

// weeklyKey returns the sorted-set key for the ISO week containing t.
func weeklyKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("leaderboard:weekly_xp:%d-%02d", year, week)
}

// RecordXP adds a grant to this week's board.
func (s *LeaderboardService) RecordXP(ctx context.Context, externalUserID string, xp int64) error {
	key := weeklyKey(time.Now())
	if err := s.client.ZIncrBy(ctx, key, float64(xp), externalUserID).Err(); err != nil {
		return fmt.Errorf("incrementing weekly score: %w", err)
	}
	// Keep two weeks of boards around, then let Redis reclaim them
	if err := s.client.Expire(ctx, key, 14*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("setting board expiry: %w", err)
	}
	return nil
}

// LeaderboardEntry is one row of the weekly board.
type LeaderboardEntry struct {
	Position       int    `json:"position"`
	ExternalUserID string `json:"external_user_id"`
	WeeklyXP       int64  `json:"weekly_xp"`
}

// Top returns the highest-scoring users for the current week.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 25
	}
	results, err := s.client.ZRevRangeWithScores(ctx, weeklyKey(time.Now()), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading weekly leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		entries = append(entries, LeaderboardEntry{
			Position:       i + 1,
			ExternalUserID: member,
			WeeklyXP:       int64(z.Score),
		})
	}
	return entries, nil
}

// PositionFor returns a user's 1-based position on this week's board, or 0
// when they have not scored yet.
func (s *LeaderboardService) PositionFor(ctx context.Context, externalUserID string) (int, error) {
	pos, err := s.client.ZRevRank(ctx, weeklyKey(time.Now()), externalUserID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading weekly rank: %w", err)
	}
	return int(pos) + 1, nil
}
