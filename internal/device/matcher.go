package device

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/fixfirst/repair-advisor/internal/cache"
	"github.com/fixfirst/repair-advisor/internal/observability"
)

const (
	defaultFuzzyThreshold     = 60
	defaultAgreementThreshold = 70
	defaultCacheTTL           = 5 * time.Minute
)

// MatcherOptions configures a Matcher. Zero-value thresholds fall back to
// the defaults.
type MatcherOptions struct {
	Primary   PrimaryParser
	Secondary SecondaryParser
	NER       EntityRecognizer
	Cache     cache.Client
	CacheTTL  time.Duration
	// FuzzyThreshold is the minimum similarity (0-100) to accept a fuzzy
	// model match.
	FuzzyThreshold int
	// AgreementThreshold is the minimum model similarity (0-100) for two
	// sources to agree during hybrid fusion.
	AgreementThreshold int
	Logger             *observability.Logger
}

// Matcher identifies devices from text, headers, or both.
type Matcher struct {
	primary            PrimaryParser
	secondary          SecondaryParser
	ner                EntityRecognizer
	cache              cache.Client
	cacheTTL           time.Duration
	fuzzyThreshold     int
	agreementThreshold int
	logger             *observability.Logger
}

// NewMatcher creates a device matcher.
func NewMatcher(opts MatcherOptions) *Matcher {
	if opts.Primary == nil {
		opts.Primary = NewUserAgentParser()
	}
	if opts.Secondary == nil {
		opts.Secondary = NewUAPParser()
	}
	if opts.NER == nil {
		opts.NER = NopRecognizer{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = defaultFuzzyThreshold
	}
	if opts.AgreementThreshold <= 0 {
		opts.AgreementThreshold = defaultAgreementThreshold
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}

	return &Matcher{
		primary:            opts.Primary,
		secondary:          opts.Secondary,
		ner:                opts.NER,
		cache:              opts.Cache,
		cacheTTL:           opts.CacheTTL,
		fuzzyThreshold:     opts.FuzzyThreshold,
		agreementThreshold: opts.AgreementThreshold,
		logger:             opts.Logger.WithComponent("device_matcher"),
	}
}

// MatchFromText identifies a device from free text. Pattern matches are
// tried first; below 0.8 confidence the brand-alias path runs as well and
// the better result wins. Never fails; no signal yields the Unknown
// sentinel.
func (m *Matcher) MatchFromText(ctx context.Context, text string) Match {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Unknown("empty text")
	}

	if cached, ok := m.cacheGet(ctx, "text", normalized); ok {
		return cached
	}

	best := m.matchPatterns(normalized)
	if best.Confidence <= 0.8 {
		if alias := m.matchAliases(normalized); alias.Confidence > best.Confidence {
			best = alias
		}
	}
	if !best.IsKnown() {
		if nerMatch := m.matchEntities(ctx, text); nerMatch.Confidence > best.Confidence {
			best = nerMatch
		}
	}

	m.logger.Debug().
		Str("source", string(best.Source)).
		Str("brand", best.Brand).
		Str("model", best.Model).
		Float64("confidence", best.Confidence).
		Msg("text match")

	m.cacheSet(ctx, "text", normalized, best)
	return best
}

// MatchFromHeader identifies a device from a fingerprint header. The primary
// parser wins when it detects a mobile or tablet device; otherwise the
// secondary parser is tried.
func (m *Matcher) MatchFromHeader(ctx context.Context, header string) Match {
	header = strings.TrimSpace(header)
	if header == "" {
		return Unknown("empty header")
	}

	if cached, ok := m.cacheGet(ctx, "header", header); ok {
		return cached
	}

	result := m.matchHeader(header)

	m.logger.Debug().
		Str("source", string(result.Source)).
		Str("brand", result.Brand).
		Float64("confidence", result.Confidence).
		Msg("header match")

	m.cacheSet(ctx, "header", header, result)
	return result
}

func (m *Matcher) matchHeader(header string) Match {
	if fp, ok := m.primary.Parse(header); ok && (fp.IsMobile || fp.IsTablet) {
		return Match{
			Brand:      fp.Brand,
			Model:      fp.Model,
			Type:       deviceTypeFromFingerprint(fp),
			Confidence: 0.9,
			Source:     SourceUserAgentPrimary,
			Evidence:   "primary fingerprint: " + fp.OS + " " + fp.Client,
		}
	}

	if fp, ok := m.secondary.Parse(header); ok && fp.Brand != "" && fp.Model != "" {
		return Match{
			Brand:      fp.Brand,
			Model:      fp.Model,
			Type:       TypeDesktop,
			Confidence: 0.8,
			Source:     SourceUserAgentFallback,
			Evidence:   "secondary fingerprint: " + fp.Family,
		}
	}

	return Unknown("no fingerprint match")
}

// MatchHybrid fuses the text and header signals with an ordered rule set.
// The ordering guarantees a strong single-source signal is never diluted by
// a weak secondary one; agreement is rewarded and conflict resolves to the
// header, which is structurally more reliable than free text.
func (m *Matcher) MatchHybrid(ctx context.Context, text, header string) Match {
	textMatch := m.MatchFromText(ctx, text)
	headerMatch := m.MatchFromHeader(ctx, header)
	return m.fuse(textMatch, headerMatch)
}

func (m *Matcher) fuse(textMatch, headerMatch Match) Match {
	switch {
	case headerMatch.Confidence > 0.8 && textMatch.Confidence > 0.8:
		if m.agree(textMatch, headerMatch) {
			avg := (textMatch.Confidence + headerMatch.Confidence) / 2
			return Match{
				Brand:      headerMatch.Brand,
				Model:      headerMatch.Model,
				Type:       headerMatch.Type,
				Confidence: clamp(minFloat(0.98, avg+0.1)),
				Source:     SourceHybridPerfect,
				Evidence:   "text and header agree",
			}
		}
		return Match{
			Brand:      headerMatch.Brand,
			Model:      headerMatch.Model,
			Type:       headerMatch.Type,
			Confidence: clamp(maxFloat(textMatch.Confidence, headerMatch.Confidence) * 0.9),
			Source:     SourceHybridConflict,
			Evidence:   "text says " + textMatch.String() + ", header says " + headerMatch.String(),
		}

	case headerMatch.Confidence > 0.8:
		return headerMatch

	case textMatch.Confidence > 0.7:
		if headerMatch.IsKnown() && headerMatch.Confidence > 0.3 {
			enhanced := textMatch
			enhanced.Confidence = clamp(textMatch.Confidence + 0.05)
			enhanced.Source = SourceHybridEnhanced
			return enhanced
		}
		return textMatch

	case headerMatch.Confidence > textMatch.Confidence:
		return headerMatch

	default:
		return textMatch
	}
}

// agree checks same brand (case-insensitive) and model similarity above the
// agreement threshold.
func (m *Matcher) agree(a, b Match) bool {
	if !strings.EqualFold(a.Brand, b.Brand) {
		return false
	}
	if a.Model == "" || b.Model == "" {
		return false
	}
	return fuzzy.Ratio(strings.ToLower(a.Model), strings.ToLower(b.Model)) > m.agreementThreshold
}

// matchPatterns scans the prioritized pattern table and resolves the model
// through fuzzy matching against the pattern's candidate list.
func (m *Matcher) matchPatterns(text string) Match {
	best := Unknown("no pattern match")
	for _, bp := range brandPatterns {
		loc := bp.Pattern.FindString(text)
		if loc == "" {
			continue
		}

		model, score := bestModel(loc, bp.Models)
		if score <= m.fuzzyThreshold {
			continue
		}

		conf := minFloat(0.95, float64(score)/100)
		if conf > best.Confidence {
			best = Match{
				Brand:      bp.Brand,
				Model:      model,
				Type:       bp.DeviceType,
				Confidence: conf,
				Source:     SourceTextPattern,
				Evidence:   "pattern hit: " + loc,
			}
		}
	}
	return best
}

// matchAliases looks for brand alias substrings, then tries to resolve a
// model across the brand's full model list.
func (m *Matcher) matchAliases(text string) Match {
	for _, alias := range orderedAliases {
		brand := brandAliases[alias]
		if !strings.Contains(text, alias) {
			continue
		}

		model, score := bestModel(text, modelsForBrand(brand))
		if score > m.fuzzyThreshold {
			return Match{
				Brand:      brand,
				Model:      model,
				Type:       typeForModel(brand, model),
				Confidence: 0.75,
				Source:     SourceTextFuzzy,
				Evidence:   "alias hit: " + alias,
			}
		}
		return Match{
			Brand:      brand,
			Type:       defaultBrandType[brand],
			Confidence: 0.5,
			Source:     SourceTextFuzzy,
			Evidence:   "alias hit: " + alias,
		}
	}
	return Unknown("no alias match")
}

// matchEntities is the NER fallback: recognized organization or product
// entities are mapped through the alias table.
func (m *Matcher) matchEntities(ctx context.Context, text string) Match {
	entities, err := m.ner.Recognize(ctx, text)
	if err != nil || len(entities) == 0 {
		return Unknown("no entities")
	}

	for _, e := range entities {
		if e.Label != EntityLabelOrganization && e.Label != EntityLabelProduct {
			continue
		}
		lower := strings.ToLower(e.Text)
		for _, alias := range orderedAliases {
			if strings.Contains(lower, alias) {
				brand := brandAliases[alias]
				return Match{
					Brand:      brand,
					Type:       defaultBrandType[brand],
					Confidence: 0.6,
					Source:     SourceTextFuzzy,
					Evidence:   "entity: " + e.Text,
				}
			}
		}
	}
	return Unknown("no entity match")
}

// bestModel returns the candidate with the highest partial-ratio similarity
// to the extracted text, with its score.
func bestModel(extracted string, candidates []string) (string, int) {
	bestScore := 0
	bestCandidate := ""
	lower := strings.ToLower(extracted)
	for _, c := range candidates {
		score := fuzzy.PartialRatio(lower, strings.ToLower(c))
		if score > bestScore {
			bestScore = score
			bestCandidate = c
		}
	}
	return bestCandidate, bestScore
}

func (m *Matcher) cacheGet(ctx context.Context, kind, key string) (Match, bool) {
	if m.cache == nil {
		return Match{}, false
	}
	data, err := m.cache.Get(ctx, cache.CacheKey("device", kind, key))
	if err != nil {
		return Match{}, false
	}
	var match Match
	if err := json.Unmarshal(data, &match); err != nil {
		return Match{}, false
	}
	return match, true
}

func (m *Matcher) cacheSet(ctx context.Context, kind, key string, match Match) {
	if m.cache == nil {
		return
	}
	data, err := json.Marshal(match)
	if err != nil {
		return
	}
	// Cache failures are invisible; recomputing is always safe.
	_ = m.cache.Set(ctx, cache.CacheKey("device", kind, key), data, m.cacheTTL)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
