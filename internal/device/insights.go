package device

// RepairInsights is the historical repair profile for a device family,
// attached to high-confidence matches.
type RepairInsights struct {
	Repairability     string   `json:"repairability"` // easy, moderate, hard
	AverageCostBand   string   `json:"average_cost_band"`
	TypicalTurnaround string   `json:"typical_turnaround"`
	CommonIssues      []string `json:"common_issues"`
}

type insightKey struct {
	brand      string
	deviceType string
}

var repairInsights = map[insightKey]RepairInsights{
	{"apple", TypePhone}: {
		Repairability:     "moderate",
		AverageCostBand:   "80-250 GBP",
		TypicalTurnaround: "1-2 days",
		CommonIssues:      []string{"cracked screen", "battery degradation", "charging port wear"},
	},
	{"apple", TypeTablet}: {
		Repairability:     "hard",
		AverageCostBand:   "100-350 GBP",
		TypicalTurnaround: "2-4 days",
		CommonIssues:      []string{"cracked digitizer", "battery degradation"},
	},
	{"apple", TypeLaptop}: {
		Repairability:     "hard",
		AverageCostBand:   "150-600 GBP",
		TypicalTurnaround: "3-5 days",
		CommonIssues:      []string{"keyboard failure", "battery swelling", "display hinge wear"},
	},
	{"samsung", TypePhone}: {
		Repairability:     "moderate",
		AverageCostBand:   "70-220 GBP",
		TypicalTurnaround: "1-2 days",
		CommonIssues:      []string{"cracked screen", "battery degradation", "charging port wear"},
	},
	{"google", TypePhone}: {
		Repairability:     "easy",
		AverageCostBand:   "60-200 GBP",
		TypicalTurnaround: "1-2 days",
		CommonIssues:      []string{"cracked screen", "battery degradation"},
	},
	{"huawei", TypePhone}: {
		Repairability:     "moderate",
		AverageCostBand:   "60-180 GBP",
		TypicalTurnaround: "2-3 days",
		CommonIssues:      []string{"cracked screen", "charging port wear"},
	},
	{"oneplus", TypePhone}: {
		Repairability:     "easy",
		AverageCostBand:   "50-180 GBP",
		TypicalTurnaround: "1-2 days",
		CommonIssues:      []string{"cracked screen", "battery degradation"},
	},
}

var genericInsights = map[string]RepairInsights{
	TypePhone: {
		Repairability:     "moderate",
		AverageCostBand:   "50-200 GBP",
		TypicalTurnaround: "1-3 days",
		CommonIssues:      []string{"cracked screen", "battery degradation"},
	},
	TypeTablet: {
		Repairability:     "moderate",
		AverageCostBand:   "70-250 GBP",
		TypicalTurnaround: "2-4 days",
		CommonIssues:      []string{"cracked screen", "battery degradation"},
	},
	TypeLaptop: {
		Repairability:     "hard",
		AverageCostBand:   "100-500 GBP",
		TypicalTurnaround: "3-5 days",
		CommonIssues:      []string{"battery failure", "keyboard wear", "fan noise"},
	},
	TypeDesktop: {
		Repairability:     "easy",
		AverageCostBand:   "80-400 GBP",
		TypicalTurnaround: "2-5 days",
		CommonIssues:      []string{"power supply failure", "storage failure"},
	},
}

// InsightsFor returns the repair profile for a device match. Matches below
// 0.8 confidence (or without a resolvable profile) report no insights.
func InsightsFor(m Match) (RepairInsights, bool) {
	if m.Confidence <= 0.8 {
		return RepairInsights{}, false
	}
	if ins, ok := repairInsights[insightKey{m.Brand, m.Type}]; ok {
		return ins, true
	}
	if ins, ok := genericInsights[m.Type]; ok {
		return ins, true
	}
	return RepairInsights{}, false
}
