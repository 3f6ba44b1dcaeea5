package problem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

func strongDevice() device.Match {
	return device.Match{
		Brand: "apple", Model: "iPhone 14", Type: device.TypePhone,
		Confidence: 0.9, Source: device.SourceTextPattern,
	}
}

func TestClassify_ScreenDamage(t *testing.T) {
	c := NewClassifier(nil)

	m := c.Classify("my iphone screen is cracked", device.Match{Confidence: 0.5})

	assert.Equal(t, storage.ProblemScreenDamage, m.Category)
	assert.Equal(t, "cracked_screen", m.IssueCode)
	assert.InDelta(t, 0.8, m.Confidence, 0.001)
	// Screen damage is intrinsically high severity.
	assert.Equal(t, storage.SeverityHigh, m.Severity)
}

func TestClassify_DeviceConfidenceBoost(t *testing.T) {
	c := NewClassifier(nil)

	m := c.Classify("battery drains too fast", strongDevice())

	assert.Equal(t, storage.ProblemBattery, m.Category)
	// 0.8 base + 0.05 device confidence boost.
	assert.InDelta(t, 0.85, m.Confidence, 0.001)
}

func TestClassify_AppleScreenNudge(t *testing.T) {
	c := NewClassifier(nil)

	m := c.Classify("the display is shattered", strongDevice())

	assert.Equal(t, storage.ProblemScreenDamage, m.Category)
	// 0.8 base + 0.05 device boost + 0.05 apple phone screen nudge.
	assert.InDelta(t, 0.9, m.Confidence, 0.001)
}

func TestClassify_ConfidenceCap(t *testing.T) {
	c := NewClassifier(nil)

	texts := []string{
		"screen cracked urgently broken display shattered",
		"battery drains and dies quickly won't hold charge",
	}
	for _, text := range texts {
		m := c.Classify(text, strongDevice())
		assert.LessOrEqual(t, m.Confidence, 0.95)
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
	}
}

func TestClassify_FallbackGeneral(t *testing.T) {
	c := NewClassifier(nil)

	m := c.Classify("something feels off with my device", device.Match{Confidence: 0.5})

	assert.Equal(t, storage.ProblemGeneral, m.Category)
	assert.InDelta(t, 0.2, m.Confidence, 0.001)
}

func TestClassify_EmptyInput(t *testing.T) {
	c := NewClassifier(nil)

	m := c.Classify("   ", device.Match{})

	assert.Equal(t, storage.ProblemGeneral, m.Category)
	assert.Equal(t, storage.SeverityUnknown, m.Severity)
	assert.InDelta(t, UnknownConfidence, m.Confidence, 0.001)
}

func TestSeverity_Keywords(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		text string
		want storage.Severity
	}{
		{"phone is dead, urgent help needed", storage.SeverityHigh},
		{"battery sometimes drains fast", storage.SeverityMedium},
		{"battery drains fast", storage.SeverityLow},
		{"dropped it in water", storage.SeverityHigh},
	}
	for _, tt := range tests {
		m := c.Classify(tt.text, device.Match{})
		assert.Equal(t, tt.want, m.Severity, "text %q", tt.text)
	}
}

func TestRepairTime_LaptopGetsLongerBand(t *testing.T) {
	c := NewClassifier(nil)

	phone := c.Classify("cracked screen", device.Match{Type: device.TypePhone})
	laptop := c.Classify("cracked screen", device.Match{Type: device.TypeLaptop})

	assert.Equal(t, "1-2 hours", phone.EstimatedRepairTime)
	assert.Equal(t, "2-4 hours", laptop.EstimatedRepairTime)
}

func TestIntentClassify(t *testing.T) {
	c := NewIntentClassifier()

	tests := []struct {
		text string
		want storage.Intent
	}{
		{"how much does a screen repair cost", storage.IntentPriceInquiry},
		{"can I book an appointment", storage.IntentBookingRequest},
		{"how long does a battery swap take", storage.IntentTimeInquiry},
		{"why is my phone so hot", storage.IntentProblemDiagnosis},
		{"do you repair ipads", storage.IntentServiceInquiry},
		{"please fix my phone", storage.IntentRepairRequest},
	}
	for _, tt := range tests {
		m := c.Classify(tt.text, device.Match{})
		assert.Equal(t, tt.want, m.Intent, "text %q", tt.text)
		assert.GreaterOrEqual(t, m.Confidence, 0.7)
	}
}

func TestIntentClassify_Boosts(t *testing.T) {
	c := NewIntentClassifier()

	base := c.Classify("book an appointment", device.Match{Confidence: 0.5})
	assert.InDelta(t, 0.7, base.Confidence, 0.001)

	boosted := c.Classify("book an appointment", strongDevice())
	assert.InDelta(t, 0.8, boosted.Confidence, 0.001)

	urgent := c.Classify("book an appointment today, it's urgent", strongDevice())
	assert.InDelta(t, 0.85, urgent.Confidence, 0.001)
}

func TestIntentClassify_GeneralFloor(t *testing.T) {
	c := NewIntentClassifier()

	m := c.Classify("hello there", device.Match{})

	assert.Equal(t, storage.IntentGeneralInquiry, m.Intent)
	assert.InDelta(t, 0.3, m.Confidence, 0.001)
}

func TestEstimateCost(t *testing.T) {
	dev := device.Match{Brand: "apple", Type: device.TypePhone, Confidence: 0.9}
	prob := Match{Category: storage.ProblemScreenDamage, Severity: storage.SeverityHigh}

	est := EstimateCost(dev, prob)

	// 120 base × 1.2 apple × 1.3 high severity = 187 (rounded).
	assert.InDelta(t, 187, est.BaseCost, 0.5)
	assert.Less(t, est.LowCost, est.BaseCost)
	assert.Greater(t, est.HighCost, est.BaseCost)
	assert.Equal(t, "GBP", est.Currency)
	assert.NotEmpty(t, est.Range)
}

func TestEstimateCost_UnknownDeviceDefaults(t *testing.T) {
	est := EstimateCost(device.Unknown(""), Unknown())

	assert.Greater(t, est.BaseCost, 0.0)
	assert.Equal(t, "GBP", est.Currency)
}
