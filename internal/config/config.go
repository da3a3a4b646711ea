package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"vacancyline/internal/applications"
	"vacancyline/internal/importer"
	"vacancyline/internal/report"
)

// Config models vacancyline.yml.
type Config struct {
	Workspace struct {
		ID       string `yaml:"id" json:"id"`
		Timezone string `yaml:"timezone" json:"timezone"`
	} `yaml:"workspace" json:"workspace"`
	Blueprint struct {
		Version string `yaml:"version" json:"version"`
		// Constraint gates which stored vacancies this workspace can load.
		Constraint string `yaml:"constraint" json:"constraint"`
	} `yaml:"blueprint" json:"blueprint"`
	Report       ReportPolicy        `yaml:"report" json:"report"`
	Import       ImportSettings      `yaml:"import" json:"import"`
	Applications applications.Config `yaml:"applications" json:"applications"`
	Alerts       AlertSettings       `yaml:"alerts" json:"alerts"`
}

type ReportPolicy struct {
	OnTrackMin        int    `yaml:"on_track_min" json:"on_track_min"`
	MonitorMin        int    `yaml:"monitor_min" json:"monitor_min"`
	Focus             string `yaml:"focus" json:"focus"`
	MaxBlockers       int    `yaml:"max_blockers" json:"max_blockers"`
	PaceTolerancePct  int    `yaml:"pace_tolerance_pct" json:"pace_tolerance_pct"`
	MoveInWarningDays int    `yaml:"move_in_warning_days" json:"move_in_warning_days"`
	StandupWindowDays int    `yaml:"standup_window_days" json:"standup_window_days"`
}

// Policy converts the section into the report package policy.
func (p ReportPolicy) Policy() report.Policy {
	return report.Policy{
		OnTrackMin:        p.OnTrackMin,
		MonitorMin:        p.MonitorMin,
		Focus:             report.FocusRule(p.Focus),
		MaxBlockers:       p.MaxBlockers,
		PaceTolerancePct:  p.PaceTolerancePct,
		MoveInWarningDays: p.MoveInWarningDays,
		StandupWindowDays: p.StandupWindowDays,
	}
}

type ImportAlias struct {
	Name   string `yaml:"name" json:"name"`
	TaskID string `yaml:"task_id" json:"task_id"`
}

type ImportSettings struct {
	Source  string        `yaml:"source" json:"source"`
	Aliases []ImportAlias `yaml:"aliases" json:"aliases"`
}

// MappingEntries converts configured aliases for the importer.
func (s ImportSettings) MappingEntries() []importer.MappingEntry {
	out := make([]importer.MappingEntry, 0, len(s.Aliases))
	for _, a := range s.Aliases {
		out = append(out, importer.MappingEntry{Name: a.Name, TaskID: a.TaskID})
	}
	return out
}

type Webhook struct {
	ID        string   `yaml:"id" json:"id"`
	URL       string   `yaml:"url" json:"url"`
	Secret    string   `yaml:"secret" json:"secret,omitempty"`
	Templates []string `yaml:"templates" json:"templates,omitempty"`
}

type AlertSettings struct {
	RatePerSecond  float64   `yaml:"rate_per_second" json:"rate_per_second"`
	Burst          int       `yaml:"burst" json:"burst"`
	TimeoutSeconds int       `yaml:"timeout_seconds" json:"timeout_seconds"`
	Webhooks       []Webhook `yaml:"webhooks" json:"webhooks"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with vl config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Workspace.ID == "" {
		return fmt.Errorf("config.workspace.id is required")
	}
	if c.Workspace.Timezone != "" {
		if _, err := timeLocation(c.Workspace.Timezone); err != nil {
			return fmt.Errorf("config.workspace.timezone: %w", err)
		}
	}
	if _, err := semver.StrictNewVersion(c.Blueprint.Version); err != nil {
		return fmt.Errorf("config.blueprint.version %q is not a semantic version", c.Blueprint.Version)
	}
	if c.Blueprint.Constraint != "" {
		if _, err := semver.NewConstraint(c.Blueprint.Constraint); err != nil {
			return fmt.Errorf("config.blueprint.constraint: %w", err)
		}
	}
	if err := c.Report.Policy().Validate(); err != nil {
		return fmt.Errorf("config.report: %w", err)
	}
	for i, a := range c.Import.Aliases {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.TaskID) == "" {
			return fmt.Errorf("config.import.aliases[%d] needs name and task_id", i)
		}
	}
	if err := c.Applications.Validate(); err != nil {
		return fmt.Errorf("config.applications: %w", err)
	}
	if c.Alerts.RatePerSecond < 0 || c.Alerts.Burst < 0 || c.Alerts.TimeoutSeconds < 0 {
		return fmt.Errorf("config.alerts limits must be >= 0")
	}
	seen := map[string]bool{}
	for _, wh := range c.Alerts.Webhooks {
		if wh.ID == "" {
			return fmt.Errorf("config.alerts.webhooks contains empty id")
		}
		if seen[wh.ID] {
			return fmt.Errorf("webhook %s is declared twice", wh.ID)
		}
		seen[wh.ID] = true
		u, err := url.Parse(wh.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook %s url must be an absolute http(s) url", wh.ID)
		}
		for _, tmpl := range wh.Templates {
			if !applications.KnownAlertTemplate(tmpl) {
				return fmt.Errorf("webhook %s subscribes to unknown template %s", wh.ID, tmpl)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "vacancyline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(workspaceID string) string {
	return fmt.Sprintf(defaultTemplate, workspaceID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a workspace.
func Default(workspaceID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(workspaceID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Omitted sections keep
// their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("default")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func timeLocation(name string) (*time.Location, error) {
	return time.LoadLocation(name)
}

// Location is the workspace zone used to derive "today"; UTC when unset or invalid.
func (c *Config) Location() *time.Location {
	if c.Workspace.Timezone == "" {
		return time.UTC
	}
	loc, err := timeLocation(c.Workspace.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// YAML renders the config back to its file form.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `workspace:
  id: %s
  timezone: UTC

blueprint:
  version: 1.0.0
  constraint: "^1.0.0"

report:
  on_track_min: 70
  monitor_min: 40
  focus: most_open
  max_blockers: 5
  pace_tolerance_pct: 5
  move_in_warning_days: 7
  standup_window_days: 5

import:
  source: apollo
  aliases: []

applications:
  max_rent_to_income: 0.28
  min_credit_score: 650
  max_evictions: 0
  max_late_payments: 2
  approval_min_score: 50
  violent_felony_lookback_years: 7
  require_income_documentation: true
  default_jurisdiction: IA
  deposit_cap_multipliers:
    IA: 2.0
  deposit_cap_action: reject

alerts:
  rate_per_second: 2
  burst: 4
  timeout_seconds: 5
  webhooks: []
`
