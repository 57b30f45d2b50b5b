package domain

import "strings"

const DefaultCronExpression = "*/30 * * * *"

var DefaultBrands = []string{"ARENA", "CJMW", "HARBOUR", "BASSARI", "FLAMENCO"}

type Brand struct {
	Name string `json:"name" yaml:"name"`
}

// Settings is the operator-editable runtime configuration of the sync.
type Settings struct {
	CronExpression string  `json:"cronExpression" yaml:"cron_expression"`
	BrandDelayMs   int64   `json:"brandDelayMs" yaml:"brand_delay_ms"`
	Brands         []Brand `json:"brands" yaml:"brands"`
}

// SettingsPatch carries the fields of a partial settings update.
type SettingsPatch struct {
	CronExpression *string  `json:"cronExpression,omitempty"`
	BrandDelayMs   *int64   `json:"brandDelayMs,omitempty"`
	Brands         *[]Brand `json:"brands,omitempty"`
}

func DefaultSettings() Settings {
	brands := make([]Brand, 0, len(DefaultBrands))
	for _, name := range DefaultBrands {
		brands = append(brands, Brand{Name: name})
	}
	return Settings{
		CronExpression: DefaultCronExpression,
		BrandDelayMs:   0,
		Brands:         brands,
	}
}

// Normalize fills defaults and drops unusable values.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	out := Settings{
		CronExpression: strings.TrimSpace(s.CronExpression),
		BrandDelayMs:   s.BrandDelayMs,
	}
	if out.CronExpression == "" {
		out.CronExpression = def.CronExpression
	}
	if out.BrandDelayMs < 0 {
		out.BrandDelayMs = 0
	}
	for _, b := range s.Brands {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			continue
		}
		out.Brands = append(out.Brands, Brand{Name: name})
	}
	if len(out.Brands) == 0 {
		out.Brands = def.Brands
	}
	return out
}

func (s Settings) Apply(p SettingsPatch) Settings {
	out := s
	if p.CronExpression != nil {
		out.CronExpression = *p.CronExpression
	}
	if p.BrandDelayMs != nil {
		out.BrandDelayMs = *p.BrandDelayMs
	}
	if p.Brands != nil {
		out.Brands = append([]Brand(nil), (*p.Brands)...)
	}
	return out.Normalize()
}

func (s Settings) BrandNames() []string {
	names := make([]string, 0, len(s.Brands))
	for _, b := range s.Brands {
		names = append(names, b.Name)
	}
	return names
}
