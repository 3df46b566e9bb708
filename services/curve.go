package services

import (
	"fmt"
	"math"

	"fitness-progression-system/models"
)

// levelThresholds holds cumulative XP needed to reach each level, hand-tuned
// for the early game. Index 0 is level 1 (always 0 XP). Levels beyond the
// table extrapolate geometrically.
var levelThresholds = []int64{
	0, 100, 250, 450, 700, // 1-5
	1000, 1400, 1900, 2500, 3200, // 6-10
	4000, 4900, 5900, 7000, 8200, // 11-15
	9500, 11000, 12700, 14600, 16700, // 16-20
	19000, 21500, 24200, 27100, 30200, // 21-25
	33600, 37300, 41300, 45600, 50200, // 26-30
	55200, 60600, 66400, 72600, 79300, // 31-35
	86500, 94200, 102500, 111400, 121000, // 36-40
}

// growthFactor governs the per-level XP growth past the lookup table.
const growthFactor = 1.15

// XPForLevel returns the cumulative XP threshold for a level. Levels below 1
// are treated as level 1.
func XPForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	if level <= len(levelThresholds) {
		return levelThresholds[level-1]
	}
	last := levelThresholds[len(levelThresholds)-1]
	exp := float64(level - len(levelThresholds))
	return int64(math.Floor(float64(last) * math.Pow(growthFactor, exp)))
}

// LevelFromXP returns the largest level whose threshold is <= xp.
// Negative XP is a caller bug, not something to clamp away.
func LevelFromXP(xp int64) (int, error) {
	if xp < 0 {
		return 0, fmt.Errorf("%w: negative xp %d", ErrInvalidState, xp)
	}
	level := 1
	for xp >= XPForLevel(level+1) {
		level++
	}
	return level, nil
}

// rankThresholds maps each rank to the minimum level required, ordered from
// highest tier to lowest.
var rankThresholds = []struct {
	Rank     models.Rank
	MinLevel int
}{
	{models.RankLegend, 150},
	{models.RankMaster, 100},
	{models.RankDiamond, 75},
	{models.RankPlatinum, 50},
	{models.RankGold, 25},
	{models.RankSilver, 10},
	{models.RankBronze, 1},
}

// RankFromLevel returns the highest tier whose threshold is <= level.
func RankFromLevel(level int) models.Rank {
	for _, t := range rankThresholds {
		if level >= t.MinLevel {
			return t.Rank
		}
	}
	return models.RankBronze
}

// LevelProgressInfo describes where xp sits inside its current level.
type LevelProgressInfo struct {
	Level           int   `json:"level"`
	XPInLevel       int64 `json:"xp_in_level"`
	XPToNext        int64 `json:"xp_to_next"`
	ProgressPercent int   `json:"progress_percent"`
}

// LevelProgress computes intra-level progress, with the percentage clamped to
// [0,100]. A zero-width level (should not happen with a sane table) reads as
// 100%.
func LevelProgress(xp int64) (LevelProgressInfo, error) {
	level, err := LevelFromXP(xp)
	if err != nil {
		return LevelProgressInfo{}, err
	}
	floor := XPForLevel(level)
	ceil := XPForLevel(level + 1)

	info := LevelProgressInfo{
		Level:     level,
		XPInLevel: xp - floor,
		XPToNext:  ceil - xp,
	}

	width := ceil - floor
	if width <= 0 {
		info.ProgressPercent = 100
		return info, nil
	}
	pct := int(info.XPInLevel * 100 / width)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	info.ProgressPercent = pct
	return info, nil
}
