package domain

import (
	"fmt"
	"sort"
)

// ============================================================
// Loyalty levels
// ============================================================

// LoyaltyLevel is a named tier unlocked at a point threshold.
type LoyaltyLevel struct {
	ID                 string   `json:"id" yaml:"id" toml:"id"`
	Name               string   `json:"name" yaml:"name" toml:"name"`
	MinPoints          int64    `json:"minPoints" yaml:"min_points" toml:"min_points"`
	DiscountPercentage float64  `json:"discountPercentage" yaml:"discount_percentage" toml:"discount_percentage"`
	Color              string   `json:"color" yaml:"color" toml:"color"`
	Benefits           []string `json:"benefits" yaml:"benefits" toml:"benefits"`
}

// LevelTable is the ordered, immutable list of levels.
// Build it with NewLevelTable; the zero value resolves nothing.
type LevelTable struct {
	levels []LoyaltyLevel
}

// NewLevelTable sorts the levels by threshold and validates that every
// non-negative balance resolves to exactly one level.
func NewLevelTable(levels []LoyaltyLevel) (*LevelTable, error) {
	if len(levels) == 0 {
		return nil, &ErrConfiguration{Reason: "level table is empty"}
	}

	sorted := make([]LoyaltyLevel, len(levels))
	for i, l := range levels {
		if l.ID == "" {
			return nil, &ErrConfiguration{Reason: fmt.Sprintf("level #%d has no id", i)}
		}
		if l.MinPoints < 0 {
			return nil, &ErrConfiguration{Reason: fmt.Sprintf("level %q has negative min_points", l.ID)}
		}
		l.Benefits = append([]string(nil), l.Benefits...)
		sorted[i] = l
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinPoints < sorted[j].MinPoints })

	if sorted[0].MinPoints != 0 {
		return nil, &ErrConfiguration{Reason: "no level starts at 0 points"}
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinPoints == sorted[i-1].MinPoints {
			return nil, &ErrConfiguration{
				Reason: fmt.Sprintf("levels %q and %q share min_points %d", sorted[i-1].ID, sorted[i].ID, sorted[i].MinPoints),
			}
		}
	}

	return &LevelTable{levels: sorted}, nil
}

// Levels returns a copy of the table in ascending threshold order.
func (t *LevelTable) Levels() []LoyaltyLevel {
	if t == nil {
		return nil
	}
	out := make([]LoyaltyLevel, len(t.levels))
	copy(out, t.levels)
	return out
}

func (t *LevelTable) indexFor(points int64) (int, error) {
	if t == nil || len(t.levels) == 0 {
		return 0, &ErrConfiguration{Reason: "level table is empty"}
	}
	if t.levels[0].MinPoints != 0 {
		return 0, &ErrConfiguration{Reason: "no level starts at 0 points"}
	}
	// first index whose threshold exceeds points, minus one
	i := sort.Search(len(t.levels), func(i int) bool { return t.levels[i].MinPoints > points })
	if i == 0 {
		return 0, nil
	}
	return i - 1, nil
}

// LevelFor returns the level with the greatest MinPoints not exceeding points.
// Negative balances resolve to the bottom level.
func (t *LevelTable) LevelFor(points int64) (LoyaltyLevel, error) {
	i, err := t.indexFor(points)
	if err != nil {
		return LoyaltyLevel{}, err
	}
	return t.levels[i], nil
}

// NextLevel returns the level immediately above the one holding points.
// ok is false at the top of the table.
func (t *LevelTable) NextLevel(points int64) (next LoyaltyLevel, ok bool, err error) {
	i, err := t.indexFor(points)
	if err != nil {
		return LoyaltyLevel{}, false, err
	}
	if i+1 >= len(t.levels) {
		return LoyaltyLevel{}, false, nil
	}
	return t.levels[i+1], true, nil
}

// ============================================================
// Rewards engine
// ============================================================

// Progress describes where a balance sits within its level.
type Progress struct {
	Current      LoyaltyLevel  `json:"currentLevel"`
	Next         *LoyaltyLevel `json:"nextLevel,omitempty"`
	Fraction     float64       `json:"progress"`
	PointsNeeded int64         `json:"pointsNeeded"`
}

// AtTop reports whether there is no level above the current one.
func (p Progress) AtTop() bool {
	return p.Next == nil
}

// ProgressFor computes level, next level, progress fraction and points
// needed for a balance. It has no side effects.
func (t *LevelTable) ProgressFor(points int64) (Progress, error) {
	current, err := t.LevelFor(points)
	if err != nil {
		return Progress{}, err
	}
	next, ok, err := t.NextLevel(points)
	if err != nil {
		return Progress{}, err
	}
	if !ok {
		return Progress{Current: current, Fraction: 1, PointsNeeded: 0}, nil
	}

	span := next.MinPoints - current.MinPoints
	fraction := float64(points-current.MinPoints) / float64(span)
	// negative balances sit below the bottom threshold
	if fraction < 0 {
		fraction = 0
	}

	needed := next.MinPoints - points
	if needed < 0 {
		needed = 0
	}

	return Progress{
		Current:      current,
		Next:         &next,
		Fraction:     fraction,
		PointsNeeded: needed,
	}, nil
}

// ProgressToNext returns the fraction in [0,1] of the way to the next level.
func (t *LevelTable) ProgressToNext(points int64) (float64, error) {
	p, err := t.ProgressFor(points)
	if err != nil {
		return 0, err
	}
	return p.Fraction, nil
}

// PointsNeeded returns how many points are missing to reach the next level.
func (t *LevelTable) PointsNeeded(points int64) (int64, error) {
	p, err := t.ProgressFor(points)
	if err != nil {
		return 0, err
	}
	return p.PointsNeeded, nil
}
