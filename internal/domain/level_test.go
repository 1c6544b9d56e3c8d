package domain_test

import (
	"errors"
	"testing"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

func defaultTable(t *testing.T) *domain.LevelTable {
	t.Helper()
	table, err := domain.NewLevelTable(domain.DefaultLevels())
	if err != nil {
		t.Fatalf("default levels rejected: %v", err)
	}
	return table
}

func TestNewLevelTable_Rejects(t *testing.T) {
	cases := map[string][]domain.LoyaltyLevel{
		"empty":          nil,
		"no zero level":  {{ID: "silver", MinPoints: 500}, {ID: "gold", MinPoints: 1000}},
		"duplicate":      {{ID: "bronze", MinPoints: 0}, {ID: "a", MinPoints: 10}, {ID: "b", MinPoints: 10}},
		"negative":       {{ID: "bronze", MinPoints: 0}, {ID: "neg", MinPoints: -5}},
		"missing id":     {{ID: "", MinPoints: 0}},
	}

	for name, levels := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := domain.NewLevelTable(levels)
			var cfgErr *domain.ErrConfiguration
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestNewLevelTable_SortsUnorderedInput(t *testing.T) {
	levels := domain.DefaultLevels()
	levels[0], levels[3] = levels[3], levels[0]

	table, err := domain.NewLevelTable(levels)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := table.Levels()
	for i := 1; i < len(got); i++ {
		if got[i].MinPoints <= got[i-1].MinPoints {
			t.Fatalf("levels not ascending at %d: %d <= %d", i, got[i].MinPoints, got[i-1].MinPoints)
		}
	}
}

func TestLevelFor_ZeroValueTable(t *testing.T) {
	var table domain.LevelTable
	_, err := table.LevelFor(10)
	var cfgErr *domain.ErrConfiguration
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLevelFor_Boundaries(t *testing.T) {
	table := defaultTable(t)

	cases := []struct {
		points int64
		want   string
	}{
		{-10, "bronze"},
		{0, "bronze"},
		{499, "bronze"},
		{500, "silver"},
		{999, "silver"},
		{1000, "gold"},
		{1999, "gold"},
		{2000, "platinum"},
		{1_000_000, "platinum"},
	}
	for _, tc := range cases {
		level, err := table.LevelFor(tc.points)
		if err != nil {
			t.Fatalf("LevelFor(%d): %v", tc.points, err)
		}
		if level.ID != tc.want {
			t.Errorf("LevelFor(%d) = %s, want %s", tc.points, level.ID, tc.want)
		}
	}
}

func TestLevelFor_Monotonic(t *testing.T) {
	table := defaultTable(t)

	prev := int64(-1)
	for p := int64(0); p <= 2500; p += 7 {
		level, err := table.LevelFor(p)
		if err != nil {
			t.Fatal(err)
		}
		if level.MinPoints < prev {
			t.Fatalf("LevelFor not monotonic at %d: %d < %d", p, level.MinPoints, prev)
		}
		if level.MinPoints > p {
			t.Fatalf("LevelFor(%d) returned threshold above balance: %d", p, level.MinPoints)
		}
		prev = level.MinPoints
	}
}

func TestProgressFor_Scenario(t *testing.T) {
	table := defaultTable(t)

	p, err := table.ProgressFor(1000)
	if err != nil {
		t.Fatal(err)
	}
	if p.Current.ID != "gold" || p.Next == nil || p.Next.MinPoints != 2000 {
		t.Fatalf("unexpected progress at 1000: %+v", p)
	}
	if p.Fraction != 0 {
		t.Errorf("expected progress 0, got %f", p.Fraction)
	}

	p, err = table.ProgressFor(1500)
	if err != nil {
		t.Fatal(err)
	}
	if p.Fraction != 0.5 {
		t.Errorf("expected progress 0.5, got %f", p.Fraction)
	}
	if p.PointsNeeded != 500 {
		t.Errorf("expected 500 points needed, got %d", p.PointsNeeded)
	}
}

func TestProgressFor_TopLevel(t *testing.T) {
	table := defaultTable(t)

	p, err := table.ProgressFor(2500)
	if err != nil {
		t.Fatal(err)
	}
	if !p.AtTop() {
		t.Fatal("expected top level")
	}
	if p.Fraction != 1 || p.PointsNeeded != 0 {
		t.Errorf("expected fraction 1 and 0 needed, got %f / %d", p.Fraction, p.PointsNeeded)
	}
}

func TestProgressFor_RangeAndTopOnlyOne(t *testing.T) {
	table := defaultTable(t)

	for p := int64(0); p <= 2200; p++ {
		progress, err := table.ProgressFor(p)
		if err != nil {
			t.Fatal(err)
		}
		if progress.Fraction < 0 || progress.Fraction > 1 {
			t.Fatalf("progress out of range at %d: %f", p, progress.Fraction)
		}
		if (progress.Fraction == 1) != progress.AtTop() {
			t.Fatalf("progress == 1 must coincide with top level (points=%d)", p)
		}
	}
}

func TestSingleLevelTable(t *testing.T) {
	table, err := domain.NewLevelTable([]domain.LoyaltyLevel{{ID: "member", Name: "Member"}})
	if err != nil {
		t.Fatal(err)
	}
	needed, err := table.PointsNeeded(42)
	if err != nil {
		t.Fatal(err)
	}
	frac, err := table.ProgressToNext(42)
	if err != nil {
		t.Fatal(err)
	}
	if needed != 0 || frac != 1 {
		t.Errorf("single level: expected 0 needed and progress 1, got %d / %f", needed, frac)
	}
}
