package problem

import (
	"fmt"
	"math"

	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// CostEstimate is a customer-facing repair cost projection in GBP.
type CostEstimate struct {
	BaseCost float64 `json:"base_cost"`
	LowCost  float64 `json:"low_cost"`
	HighCost float64 `json:"high_cost"`
	Currency string  `json:"currency"`
	Range    string  `json:"range"`
}

// baseCosts is the device-type × problem-category cost matrix.
var baseCosts = map[string]map[storage.ProblemCategory]float64{
	device.TypePhone: {
		storage.ProblemScreenDamage: 120,
		storage.ProblemBattery:      60,
		storage.ProblemWaterDamage:  100,
		storage.ProblemAudio:        70,
		storage.ProblemCharging:     55,
		storage.ProblemPerformance:  45,
		storage.ProblemConnectivity: 50,
		storage.ProblemGeneral:      40,
	},
	device.TypeTablet: {
		storage.ProblemScreenDamage: 150,
		storage.ProblemBattery:      80,
		storage.ProblemWaterDamage:  120,
		storage.ProblemAudio:        80,
		storage.ProblemCharging:     65,
		storage.ProblemPerformance:  55,
		storage.ProblemConnectivity: 55,
		storage.ProblemGeneral:      50,
	},
	device.TypeLaptop: {
		storage.ProblemScreenDamage: 200,
		storage.ProblemBattery:      110,
		storage.ProblemWaterDamage:  180,
		storage.ProblemAudio:        90,
		storage.ProblemCharging:     85,
		storage.ProblemPerformance:  70,
		storage.ProblemConnectivity: 60,
		storage.ProblemGeneral:      60,
	},
	device.TypeDesktop: {
		storage.ProblemScreenDamage: 160,
		storage.ProblemBattery:      90,
		storage.ProblemWaterDamage:  150,
		storage.ProblemAudio:        70,
		storage.ProblemCharging:     70,
		storage.ProblemPerformance:  65,
		storage.ProblemConnectivity: 55,
		storage.ProblemGeneral:      55,
	},
}

var brandMultipliers = map[string]float64{
	"apple":   1.2,
	"samsung": 1.1,
	"google":  1.1,
}

var severityMultipliers = map[storage.Severity]float64{
	storage.SeverityHigh:   1.3,
	storage.SeverityMedium: 1.0,
	storage.SeverityLow:    0.8,
}

// EstimateCost projects a repair cost from the device and problem matches.
// The range spreads ±15% around the adjusted base cost.
func EstimateCost(dev device.Match, prob Match) CostEstimate {
	deviceType := dev.Type
	if deviceType == "" {
		deviceType = device.TypePhone
	}

	base, ok := baseCosts[deviceType][prob.Category]
	if !ok {
		base = baseCosts[device.TypePhone][storage.ProblemGeneral]
	}

	if mult, ok := brandMultipliers[dev.Brand]; ok {
		base *= mult
	}
	if mult, ok := severityMultipliers[prob.Severity]; ok {
		base *= mult
	}

	base = math.Round(base)
	low := math.Round(base * 0.85)
	high := math.Round(base * 1.15)

	return CostEstimate{
		BaseCost: base,
		LowCost:  low,
		HighCost: high,
		Currency: "GBP",
		Range:    fmt.Sprintf("%.0f-%.0f GBP", low, high),
	}
}
