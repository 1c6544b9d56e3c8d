package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ProgramSettings are the tunables of the loyalty program.
type ProgramSettings struct {
	Name                 string          `json:"name"`
	PointsPerDollar      decimal.Decimal `json:"pointsPerDollar"`
	PointsExpirationDays int             `json:"pointsExpiration"`
	MinimumRedemption    int64           `json:"minimumRedemption"`
	WelcomeBonus         int64           `json:"welcomeBonus"`
	BirthdayBonus        int64           `json:"birthdayBonus"`
	MaxAwardPoints       int64           `json:"maxAwardPoints"` // 0 means no cap
}

// Validate checks settings for values the engine cannot work with.
func (s ProgramSettings) Validate() error {
	var problems []string
	if s.PointsPerDollar.IsNegative() {
		problems = append(problems, "points_per_dollar must not be negative")
	}
	if s.PointsExpirationDays < 0 {
		problems = append(problems, "points_expiration_days must not be negative")
	}
	if s.MinimumRedemption < 0 {
		problems = append(problems, "minimum_redemption must not be negative")
	}
	if s.WelcomeBonus < 0 {
		problems = append(problems, "welcome_bonus must not be negative")
	}
	if s.BirthdayBonus < 0 {
		problems = append(problems, "birthday_bonus must not be negative")
	}
	if s.MaxAwardPoints < 0 {
		problems = append(problems, "max_award_points must not be negative")
	}
	if len(problems) > 0 {
		return &ErrConfiguration{Reason: strings.Join(problems, "; ")}
	}
	return nil
}

// Program bundles settings with the level table. Loaded once at start-up.
type Program struct {
	Settings ProgramSettings
	Levels   *LevelTable
}

// NewProgram validates settings and levels together.
func NewProgram(settings ProgramSettings, levels []LoyaltyLevel) (*Program, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	table, err := NewLevelTable(levels)
	if err != nil {
		return nil, fmt.Errorf("level table: %w", err)
	}
	return &Program{Settings: settings, Levels: table}, nil
}

// DefaultSettings are the storefront's stock program values.
func DefaultSettings() ProgramSettings {
	return ProgramSettings{
		Name:                 "Loyalty Hive",
		PointsPerDollar:      decimal.NewFromInt(1),
		PointsExpirationDays: 365,
		MinimumRedemption:    100,
		WelcomeBonus:         100,
		BirthdayBonus:        50,
		MaxAwardPoints:       100000,
	}
}

// DefaultLevels is the Bronze/Silver/Gold/Platinum ladder.
func DefaultLevels() []LoyaltyLevel {
	return []LoyaltyLevel{
		{ID: "bronze", Name: "Bronze", MinPoints: 0, DiscountPercentage: 0, Color: "#cd7f32",
			Benefits: []string{"Welcome bonus points"}},
		{ID: "silver", Name: "Silver", MinPoints: 500, DiscountPercentage: 5, Color: "#9ca3af",
			Benefits: []string{"5% discount", "Birthday bonus"}},
		{ID: "gold", Name: "Gold", MinPoints: 1000, DiscountPercentage: 10, Color: "#f59e0b",
			Benefits: []string{"10% discount", "Free shipping", "Priority support"}},
		{ID: "platinum", Name: "Platinum", MinPoints: 2000, DiscountPercentage: 15, Color: "#e5e7eb",
			Benefits: []string{"15% discount", "Free shipping", "Priority support", "Exclusive offers"}},
	}
}

// DefaultProgram builds the program from the defaults above.
func DefaultProgram() *Program {
	p, err := NewProgram(DefaultSettings(), DefaultLevels())
	if err != nil {
		panic("default program is invalid: " + err.Error())
	}
	return p
}
