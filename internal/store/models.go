// internal/store/models.go
package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quietlabs/edgebot/internal/types"
)

// RiskParams are the per-strategy sizing and acceptance parameters.
type RiskParams struct {
	MaxPositionSol float64 `json:"max_position_sol" gorm:"type:decimal(20,9);default:0"`
	MinConfidence  float64 `json:"min_confidence" gorm:"type:decimal(5,4);default:0"`
	// MinProgressPercent gates graduation-style signals.
	MinProgressPercent float64 `json:"min_progress_percent" gorm:"type:decimal(6,2);default:0"`
	// MinTrustScore gates copy-trade signals.
	MinTrustScore float64 `json:"min_trust_score" gorm:"type:decimal(5,4);default:0"`
	// HybridSizeThresholdSol: in hybrid mode, entries above this size require
	// consensus approval.
	HybridSizeThresholdSol float64 `json:"hybrid_size_threshold_sol" gorm:"type:decimal(20,9);default:0"`
}

// StrategyConfig is a persisted record defining what a configuration accepts
// and how it executes. StrategyType must equal a registered strategy's type
// key; a mismatch silently drops that strategy's signals.
type StrategyConfig struct {
	ID               string              `gorm:"primaryKey;type:varchar(64)"`
	Owner            string              `gorm:"type:varchar(100);index"`
	Name             string              `gorm:"type:varchar(100);not null"`
	StrategyType     string              `gorm:"type:varchar(50);not null;index"`
	VenuesRaw        string              `gorm:"column:accepted_venues;type:varchar(200)"`
	ExecutionMode    types.ExecutionMode `gorm:"type:varchar(20);not null"`
	Risk             RiskParams          `gorm:"embedded;embeddedPrefix:risk_"`
	ExitRaw          string              `gorm:"column:exit_config;type:text"`
	MomentumAdaptive bool                `gorm:"default:false"`
	IsActive         bool                `gorm:"default:true;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (StrategyConfig) TableName() string { return "strategy_configs" }

// AcceptedVenues decodes the stored venue list.
func (c *StrategyConfig) AcceptedVenues() []types.VenueType {
	if c.VenuesRaw == "" {
		return nil
	}
	parts := strings.Split(c.VenuesRaw, ",")
	venues := make([]types.VenueType, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			venues = append(venues, types.VenueType(v))
		}
	}
	return venues
}

// SetAcceptedVenues encodes the venue list for storage.
func (c *StrategyConfig) SetAcceptedVenues(venues []types.VenueType) {
	parts := make([]string, len(venues))
	for i, v := range venues {
		parts[i] = string(v)
	}
	c.VenuesRaw = strings.Join(parts, ",")
}

// AcceptsVenue reports whether the config accepts the given venue type.
func (c *StrategyConfig) AcceptsVenue(v types.VenueType) bool {
	for _, accepted := range c.AcceptedVenues() {
		if accepted == v {
			return true
		}
	}
	return false
}

// ExitConfig decodes the stored exit configuration, falling back to defaults
// when the record predates the field or is malformed.
func (c *StrategyConfig) ExitConfig() types.ExitConfig {
	if c.ExitRaw == "" {
		cfg := types.DefaultExitConfig()
		cfg.MomentumAdaptive = c.MomentumAdaptive
		return cfg
	}
	var cfg types.ExitConfig
	if err := json.Unmarshal([]byte(c.ExitRaw), &cfg); err != nil {
		cfg = types.DefaultExitConfig()
	}
	cfg.MomentumAdaptive = c.MomentumAdaptive
	return cfg
}

// SetExitConfig encodes the exit configuration for storage.
func (c *StrategyConfig) SetExitConfig(cfg types.ExitConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal exit config: %w", err)
	}
	c.ExitRaw = string(raw)
	return nil
}

// Validate checks required fields before persisting.
func (c *StrategyConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("strategy config id is required")
	}
	if c.StrategyType == "" {
		return fmt.Errorf("strategy_type is required")
	}
	if len(c.AcceptedVenues()) == 0 {
		return fmt.Errorf("accepted_venues is empty")
	}
	switch c.ExecutionMode {
	case types.ModeAutonomous, types.ModeAgentDirected, types.ModeHybrid:
	default:
		return fmt.Errorf("unknown execution mode %q", c.ExecutionMode)
	}
	return nil
}

// PositionRecord is the persisted outcome of a closed position.
type PositionRecord struct {
	ID            string  `gorm:"primaryKey;type:varchar(64)"`
	StrategyID    string  `gorm:"type:varchar(64);index"`
	TokenMint     string  `gorm:"type:varchar(64);index"`
	EntryAmount   float64 `gorm:"type:decimal(20,9)"`
	EntryPrice    float64 `gorm:"type:decimal(30,18)"`
	ExitPrice     float64 `gorm:"type:decimal(30,18)"`
	RealizedPnl   float64 `gorm:"type:decimal(20,9)"`
	ExitReason    string  `gorm:"type:varchar(40)"`
	HoldSeconds   float64 `gorm:"type:decimal(12,2)"`
	FinalStatus   string  `gorm:"type:varchar(20)"`
	OpenedAt      time.Time
	ClosedAt      time.Time
	CreatedAt     time.Time
}

func (PositionRecord) TableName() string { return "position_records" }
