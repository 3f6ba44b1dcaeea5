package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixfirst/repair-advisor/internal/cache"
)

type fakePrimary struct {
	fp PrimaryFingerprint
	ok bool
}

func (f fakePrimary) Parse(string) (PrimaryFingerprint, bool) { return f.fp, f.ok }

type fakeSecondary struct {
	fp SecondaryFingerprint
	ok bool
}

func (f fakeSecondary) Parse(string) (SecondaryFingerprint, bool) { return f.fp, f.ok }

func newTestMatcher(primary PrimaryParser, secondary SecondaryParser) *Matcher {
	if primary == nil {
		primary = fakePrimary{}
	}
	if secondary == nil {
		secondary = fakeSecondary{}
	}
	return NewMatcher(MatcherOptions{
		Primary:   primary,
		Secondary: secondary,
		Cache:     cache.NewMemoryClient(100),
	})
}

func TestMatchFromText_PatternHit(t *testing.T) {
	m := newTestMatcher(nil, nil)

	match := m.MatchFromText(context.Background(), "My iPhone 14 Pro screen is cracked")

	assert.Equal(t, "apple", match.Brand)
	assert.Contains(t, match.Model, "iPhone 14")
	assert.Equal(t, TypePhone, match.Type)
	assert.Equal(t, SourceTextPattern, match.Source)
	assert.Greater(t, match.Confidence, 0.6)
	assert.LessOrEqual(t, match.Confidence, 0.95)
}

func TestMatchFromText_AliasBrandOnly(t *testing.T) {
	m := newTestMatcher(nil, nil)

	match := m.MatchFromText(context.Background(), "my samsung won't charge anymore")

	assert.Equal(t, "samsung", match.Brand)
	assert.Equal(t, SourceTextFuzzy, match.Source)
	assert.InDelta(t, 0.5, match.Confidence, 0.26) // 0.5 brand-only or 0.75 with model
}

func TestMatchFromText_NoSignal(t *testing.T) {
	m := newTestMatcher(nil, nil)

	for _, text := range []string{"", "   ", "the thing is broken"} {
		match := m.MatchFromText(context.Background(), text)
		assert.Equal(t, SourceUnknown, match.Source, "text %q", text)
		assert.InDelta(t, UnknownConfidence, match.Confidence, 0.001)
	}
}

type fakeRecognizer struct {
	entities []Entity
}

func (f fakeRecognizer) Recognize(context.Context, string) ([]Entity, error) {
	return f.entities, nil
}

func TestMatchFromText_EntityFallback(t *testing.T) {
	m := NewMatcher(MatcherOptions{
		Primary:   fakePrimary{},
		Secondary: fakeSecondary{},
		Cache:     cache.NewMemoryClient(100),
		NER:       fakeRecognizer{entities: []Entity{{Text: "Apple Inc", Label: EntityLabelOrganization}}},
	})

	// No pattern or alias fires on the message itself, so the entity
	// fallback resolves the brand. Its confidence sits above a brand-only
	// alias hit (0.5) and below an alias hit with a model (0.75).
	match := m.MatchFromText(context.Background(), "my handset from that fruit company keeps crashing")

	assert.Equal(t, "apple", match.Brand)
	assert.Equal(t, TypePhone, match.Type)
	assert.Equal(t, SourceTextFuzzy, match.Source)
	assert.InDelta(t, 0.6, match.Confidence, 0.001)
	assert.Contains(t, match.Evidence, "Apple Inc")
}

func TestMatchFromText_Cached(t *testing.T) {
	m := newTestMatcher(nil, nil)
	ctx := context.Background()

	first := m.MatchFromText(ctx, "iphone 13 battery dying")
	second := m.MatchFromText(ctx, "iphone 13 battery dying")

	assert.Equal(t, first, second)
}

func TestMatchFromHeader_PrimaryMobile(t *testing.T) {
	m := newTestMatcher(fakePrimary{
		fp: PrimaryFingerprint{IsMobile: true, Brand: "apple", Model: "iPhone", OS: "iOS"},
		ok: true,
	}, nil)

	match := m.MatchFromHeader(context.Background(), "some-header")

	assert.Equal(t, SourceUserAgentPrimary, match.Source)
	assert.InDelta(t, 0.9, match.Confidence, 0.001)
	assert.Equal(t, TypePhone, match.Type)
}

func TestMatchFromHeader_SecondaryFallback(t *testing.T) {
	m := newTestMatcher(
		fakePrimary{fp: PrimaryFingerprint{OS: "Windows"}, ok: true},
		fakeSecondary{fp: SecondaryFingerprint{Brand: "samsung", Model: "SM-G991B", Family: "Samsung SM-G991B"}, ok: true},
	)

	match := m.MatchFromHeader(context.Background(), "some-header")

	assert.Equal(t, SourceUserAgentFallback, match.Source)
	assert.InDelta(t, 0.8, match.Confidence, 0.001)
	assert.Equal(t, "samsung", match.Brand)
}

func TestMatchFromHeader_NoMatch(t *testing.T) {
	m := newTestMatcher(nil, nil)

	match := m.MatchFromHeader(context.Background(), "curl/8.0")

	assert.Equal(t, SourceUnknown, match.Source)
	assert.InDelta(t, UnknownConfidence, match.Confidence, 0.001)
}

func TestUserAgentParser_IPhone(t *testing.T) {
	p := NewUserAgentParser()
	fp, ok := p.Parse("Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1")

	require.True(t, ok)
	assert.True(t, fp.IsMobile)
	assert.Equal(t, "apple", fp.Brand)
}

func TestFuse_Agreement(t *testing.T) {
	m := newTestMatcher(nil, nil)

	text := Match{Brand: "Apple", Model: "iPhone 14 Pro", Type: TypePhone, Confidence: 0.85, Source: SourceTextPattern}
	header := Match{Brand: "Apple", Model: "iPhone 14 Pro Max", Type: TypePhone, Confidence: 0.9, Source: SourceUserAgentPrimary}

	fused := m.fuse(text, header)

	assert.Equal(t, SourceHybridPerfect, fused.Source)
	assert.Equal(t, "Apple", fused.Brand)
	// Header's model wins on agreement.
	assert.Equal(t, "iPhone 14 Pro Max", fused.Model)
	assert.InDelta(t, 0.975, fused.Confidence, 0.001)
}

func TestFuse_Conflict(t *testing.T) {
	m := newTestMatcher(nil, nil)

	text := Match{Brand: "Apple", Model: "iPhone 14", Confidence: 0.85, Source: SourceTextPattern}
	header := Match{Brand: "Samsung", Model: "Galaxy S23", Confidence: 0.9, Source: SourceUserAgentPrimary}

	fused := m.fuse(text, header)

	assert.Equal(t, SourceHybridConflict, fused.Source)
	assert.Equal(t, "Samsung", fused.Brand)
	assert.InDelta(t, 0.81, fused.Confidence, 0.001)
}

func TestFuse_HeaderOnlyStrong(t *testing.T) {
	m := newTestMatcher(nil, nil)

	text := Match{Brand: "apple", Confidence: 0.5, Source: SourceTextFuzzy}
	header := Match{Brand: "samsung", Model: "Galaxy S23", Confidence: 0.9, Source: SourceUserAgentPrimary}

	fused := m.fuse(text, header)

	assert.Equal(t, header, fused)
}

func TestFuse_TextEnhanced(t *testing.T) {
	m := newTestMatcher(nil, nil)

	text := Match{Brand: "apple", Model: "iPhone 14", Confidence: 0.75, Source: SourceTextPattern}
	header := Match{Brand: "apple", Confidence: 0.5, Source: SourceUserAgentFallback}

	fused := m.fuse(text, header)

	assert.Equal(t, SourceHybridEnhanced, fused.Source)
	assert.InDelta(t, 0.8, fused.Confidence, 0.001)
	assert.Equal(t, "iPhone 14", fused.Model)
}

func TestFuse_TextUnenhancedWithoutHeader(t *testing.T) {
	m := newTestMatcher(nil, nil)

	text := Match{Brand: "apple", Model: "iPhone 14", Confidence: 0.75, Source: SourceTextPattern}
	header := Unknown("empty header")

	fused := m.fuse(text, header)

	assert.Equal(t, text, fused)
}

func TestFuse_WeakSignalsFavorText(t *testing.T) {
	m := newTestMatcher(nil, nil)

	text := Match{Brand: "apple", Confidence: 0.5, Source: SourceTextFuzzy}
	header := Match{Brand: "samsung", Confidence: 0.5, Source: SourceUserAgentFallback}

	assert.Equal(t, text, m.fuse(text, header))

	stronger := Match{Brand: "samsung", Confidence: 0.6, Source: SourceUserAgentFallback}
	assert.Equal(t, stronger, m.fuse(text, stronger))
}

func TestMatchHybrid_Idempotent(t *testing.T) {
	m := newTestMatcher(fakePrimary{
		fp: PrimaryFingerprint{IsMobile: true, Brand: "apple", Model: "iPhone", OS: "iOS"},
		ok: true,
	}, nil)
	ctx := context.Background()

	// Cold cache, then warm cache: results must be identical.
	first := m.MatchHybrid(ctx, "iphone 14 cracked screen", "some-ua")
	second := m.MatchHybrid(ctx, "iphone 14 cracked screen", "some-ua")

	assert.Equal(t, first, second)
}

func TestMatchConfidence_AlwaysInRange(t *testing.T) {
	m := newTestMatcher(fakePrimary{
		fp: PrimaryFingerprint{IsMobile: true, Brand: "apple", Model: "iPhone 14 Pro", OS: "iOS"},
		ok: true,
	}, nil)
	ctx := context.Background()

	texts := []string{"", "iphone 14 pro", "samsung", "random gibberish", "galaxy s23 ultra broken"}
	headers := []string{"", "some-ua"}
	for _, text := range texts {
		for _, header := range headers {
			match := m.MatchHybrid(ctx, text, header)
			assert.GreaterOrEqual(t, match.Confidence, 0.0)
			assert.LessOrEqual(t, match.Confidence, 1.0)
		}
	}
}

func TestInsightsFor(t *testing.T) {
	_, ok := InsightsFor(Match{Brand: "apple", Type: TypePhone, Confidence: 0.7})
	assert.False(t, ok, "low confidence matches get no insights")

	ins, ok := InsightsFor(Match{Brand: "apple", Type: TypePhone, Confidence: 0.9})
	require.True(t, ok)
	assert.Equal(t, "moderate", ins.Repairability)
	assert.NotEmpty(t, ins.CommonIssues)

	// Unprofiled brand falls back to the device-type profile.
	ins, ok = InsightsFor(Match{Brand: "sony", Type: TypePhone, Confidence: 0.9})
	require.True(t, ok)
	assert.NotEmpty(t, ins.AverageCostBand)
}

func TestMatchString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown("").String())
	assert.Equal(t, "apple", Match{Brand: "apple"}.String())
	assert.Equal(t, "apple iPhone 14", Match{Brand: "apple", Model: "iPhone 14"}.String())
}
