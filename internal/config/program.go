package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// programFile is the on-disk layout shared by the YAML and TOML formats.
// Omitted settings keep their defaults; omitted levels use the default ladder.
type programFile struct {
	Program struct {
		Name                 *string `yaml:"name" toml:"name"`
		PointsPerDollar      any     `yaml:"points_per_dollar" toml:"points_per_dollar"`
		PointsExpirationDays *int    `yaml:"points_expiration_days" toml:"points_expiration_days"`
		MinimumRedemption    *int64  `yaml:"minimum_redemption" toml:"minimum_redemption"`
		WelcomeBonus         *int64  `yaml:"welcome_bonus" toml:"welcome_bonus"`
		BirthdayBonus        *int64  `yaml:"birthday_bonus" toml:"birthday_bonus"`
		MaxAwardPoints       *int64  `yaml:"max_award_points" toml:"max_award_points"`
	} `yaml:"program" toml:"program"`
	Levels []domain.LoyaltyLevel `yaml:"levels" toml:"levels"`
}

// LoadProgram reads the level table and program settings from path.
// The format follows the extension: .yaml/.yml or .toml. An empty path
// returns the built-in program.
func LoadProgram(path string) (*domain.Program, error) {
	if path == "" {
		return domain.DefaultProgram(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program file: %w", err)
	}
	return ParseProgram(data, filepath.Ext(path))
}

// ParseProgram decodes a program document in the format named by ext.
func ParseProgram(data []byte, ext string) (*domain.Program, error) {
	var pf programFile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&pf); err != nil {
			return nil, &domain.ErrConfiguration{Reason: fmt.Sprintf("parse yaml program: %v", err)}
		}
	case ".toml":
		md, err := toml.Decode(string(data), &pf)
		if err != nil {
			return nil, &domain.ErrConfiguration{Reason: fmt.Sprintf("parse toml program: %v", err)}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, &domain.ErrConfiguration{Reason: fmt.Sprintf("unknown program keys: %v", undecoded)}
		}
	default:
		return nil, &domain.ErrConfiguration{Reason: fmt.Sprintf("unsupported program file extension %q", ext)}
	}

	settings, err := pf.settings()
	if err != nil {
		return nil, err
	}
	levels := pf.Levels
	if len(levels) == 0 {
		levels = domain.DefaultLevels()
	}
	return domain.NewProgram(settings, levels)
}

func (pf *programFile) settings() (domain.ProgramSettings, error) {
	s := domain.DefaultSettings()
	p := pf.Program
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.PointsPerDollar != nil {
		d, err := decimal.NewFromString(fmt.Sprint(p.PointsPerDollar))
		if err != nil {
			return s, &domain.ErrConfiguration{Reason: fmt.Sprintf("points_per_dollar: %v", err)}
		}
		s.PointsPerDollar = d
	}
	if p.PointsExpirationDays != nil {
		s.PointsExpirationDays = *p.PointsExpirationDays
	}
	if p.MinimumRedemption != nil {
		s.MinimumRedemption = *p.MinimumRedemption
	}
	if p.WelcomeBonus != nil {
		s.WelcomeBonus = *p.WelcomeBonus
	}
	if p.BirthdayBonus != nil {
		s.BirthdayBonus = *p.BirthdayBonus
	}
	if p.MaxAwardPoints != nil {
		s.MaxAwardPoints = *p.MaxAwardPoints
	}
	return s, nil
}
