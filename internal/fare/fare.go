// Package fare maps journey distances to fares through a stage table.
package fare

import (
	"math"
	"sort"
)

// Defaults mirror the operator's tariff: 3.5 km per stage, and a linear
// fallback tariff when no stage table is configured.
const (
	DefaultStageKM      = 3.5
	MinChargeableKM     = 0.1
	FallbackBaseFare    = 30.0
	FallbackStageAmount = 10.0
)

// Stage is one distance bracket of the tariff.
type Stage struct {
	Number int     `json:"stage_number"`
	Fare   float64 `json:"fare"`
	Active bool    `json:"is_active"`
}

// Calculator computes fares from a stage table. The zero value is not
// usable; construct with New.
type Calculator struct {
	stageKM    float64
	baseFare   float64
	stepAmount float64
}

func New(stageKM float64) *Calculator {
	if stageKM <= 0 {
		stageKM = DefaultStageKM
	}
	return &Calculator{stageKM: stageKM, baseFare: FallbackBaseFare, stepAmount: FallbackStageAmount}
}

// StageFor returns the stage number for a distance; distances below the
// minimum chargeable threshold are stage 0 (no real movement).
func (c *Calculator) StageFor(distanceKM float64) int {
	if distanceKM < MinChargeableKM {
		return 0
	}
	return int(math.Ceil(distanceKM / c.stageKM))
}

// Fare returns the fare for a distance, looking the stage up in the
// given table. When the exact stage is absent it takes the smallest
// higher stage, then the highest available stage; with no table at all
// it falls back to the built-in linear tariff.
func (c *Calculator) Fare(distanceKM float64, stages []Stage) (amount float64, stage int) {
	stage = c.StageFor(distanceKM)
	if stage == 0 {
		return 0, 0
	}

	active := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if s.Active {
			active = append(active, s)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Number < active[j].Number })

	// Exact stage, else smallest stage >= wanted.
	for _, s := range active {
		if s.Number >= stage {
			return s.Fare, stage
		}
	}
	// Distance beyond the table: charge the highest configured stage.
	if len(active) > 0 {
		return active[len(active)-1].Fare, stage
	}
	// No table configured at all.
	return c.baseFare + float64(stage-1)*c.stepAmount, stage
}

// DefaultStages is the seed tariff installed when the stage table is
// empty, matching the operator's published fares.
func DefaultStages() []Stage {
	fares := []float64{30, 40, 50, 65, 80, 95, 110, 130, 150, 170,
		190, 210, 235, 260, 285, 310, 340, 370, 400, 430}
	out := make([]Stage, len(fares))
	for i, f := range fares {
		out[i] = Stage{Number: i + 1, Fare: f, Active: true}
	}
	return out
}
