package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/BnaryBlade/loyalty-hive-core/internal/config"
	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

const yamlProgram = `
program:
  name: Coffee Club
  points_per_dollar: 1.5
  minimum_redemption: 50
  max_award_points: 5000
levels:
  - id: member
    name: Member
    min_points: 0
    color: "#cccccc"
    benefits: ["Free refill"]
  - id: vip
    name: VIP
    min_points: 300
    discount_percentage: 10
    benefits: ["10% off", "Free pastry"]
`

const tomlProgram = `
[program]
name = "Coffee Club"
points_per_dollar = "2"
welcome_bonus = 0

[[levels]]
id = "member"
name = "Member"
min_points = 0

[[levels]]
id = "vip"
name = "VIP"
min_points = 300
discount_percentage = 10.0
`

func TestLoadProgram_EmptyPathUsesDefaults(t *testing.T) {
	p, err := config.LoadProgram("")
	require.NoError(t, err)
	require.Equal(t, int64(100), p.Settings.WelcomeBonus)
	require.Len(t, p.Levels.Levels(), 4)
}

func TestParseProgram_YAML(t *testing.T) {
	p, err := config.ParseProgram([]byte(yamlProgram), ".yaml")
	require.NoError(t, err)

	require.Equal(t, "Coffee Club", p.Settings.Name)
	require.True(t, p.Settings.PointsPerDollar.Equal(decimal.RequireFromString("1.5")))
	require.Equal(t, int64(50), p.Settings.MinimumRedemption)
	require.Equal(t, int64(5000), p.Settings.MaxAwardPoints)
	// untouched settings keep defaults
	require.Equal(t, int64(100), p.Settings.WelcomeBonus)
	require.Equal(t, 365, p.Settings.PointsExpirationDays)

	levels := p.Levels.Levels()
	require.Len(t, levels, 2)
	require.Equal(t, "vip", levels[1].ID)
	require.Equal(t, 10.0, levels[1].DiscountPercentage)
	require.Equal(t, []string{"10% off", "Free pastry"}, levels[1].Benefits)
}

func TestParseProgram_TOML(t *testing.T) {
	p, err := config.ParseProgram([]byte(tomlProgram), ".toml")
	require.NoError(t, err)

	require.True(t, p.Settings.PointsPerDollar.Equal(decimal.NewFromInt(2)))
	require.Equal(t, int64(0), p.Settings.WelcomeBonus)

	level, err := p.Levels.LevelFor(299)
	require.NoError(t, err)
	require.Equal(t, "member", level.ID)
}

func TestParseProgram_Rejects(t *testing.T) {
	cases := map[string]struct {
		doc string
		ext string
	}{
		"no zero level":      {doc: "levels:\n  - {id: a, min_points: 10}\n", ext: ".yaml"},
		"duplicate":          {doc: "levels:\n  - {id: a, min_points: 0}\n  - {id: b, min_points: 0}\n", ext: ".yml"},
		"negative settings":  {doc: "program:\n  minimum_redemption: -1\n", ext: ".yaml"},
		"negative award cap": {doc: "program:\n  max_award_points: -5\n", ext: ".yaml"},
		"bad decimal":        {doc: "program:\n  points_per_dollar: lots\n", ext: ".yaml"},
		"unknown key":        {doc: "program:\n  colour: red\n", ext: ".yaml"},
		"unknown toml key":   {doc: "[program]\ncolour = \"red\"\n", ext: ".toml"},
		"extension":          {doc: "{}", ext: ".json"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseProgram([]byte(tc.doc), tc.ext)
			var cfgErr *domain.ErrConfiguration
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestLoadProgram_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlProgram), 0o600))

	p, err := config.LoadProgram(path)
	require.NoError(t, err)
	require.Equal(t, "Coffee Club", p.Settings.Name)

	_, err = config.LoadProgram(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
