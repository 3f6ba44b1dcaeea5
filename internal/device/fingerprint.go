package device

import (
	"strings"

	"github.com/mileusna/useragent"
	"github.com/ua-parser/uap-go/uaparser"
)

// PrimaryFingerprint is the output of the primary header parser.
type PrimaryFingerprint struct {
	IsMobile bool
	IsTablet bool
	Brand    string
	Model    string
	OS       string
	Client   string
}

// SecondaryFingerprint is the simpler output of the fallback header parser.
type SecondaryFingerprint struct {
	Brand  string
	Model  string
	Family string
}

// PrimaryParser turns a raw header string into device facts. The boolean
// result reports whether the header matched anything at all.
type PrimaryParser interface {
	Parse(header string) (PrimaryFingerprint, bool)
}

// SecondaryParser is the fallback fingerprint parser.
type SecondaryParser interface {
	Parse(header string) (SecondaryFingerprint, bool)
}

// UserAgentParser implements PrimaryParser on top of a user-agent string
// parser with mobile/tablet detection.
type UserAgentParser struct{}

// NewUserAgentParser creates the default primary parser.
func NewUserAgentParser() *UserAgentParser {
	return &UserAgentParser{}
}

// Parse extracts device facts from a user-agent header.
func (p *UserAgentParser) Parse(header string) (PrimaryFingerprint, bool) {
	if strings.TrimSpace(header) == "" {
		return PrimaryFingerprint{}, false
	}

	ua := useragent.Parse(header)
	if ua.Name == "" && ua.OS == "" && ua.Device == "" {
		return PrimaryFingerprint{}, false
	}

	fp := PrimaryFingerprint{
		IsMobile: ua.Mobile,
		IsTablet: ua.Tablet,
		Model:    ua.Device,
		OS:       ua.OS,
		Client:   ua.Name,
	}
	fp.Brand = brandFromFacts(ua.Device, ua.OS)
	if fp.Model == "" && fp.Brand == "apple" {
		switch {
		case ua.Tablet:
			fp.Model = "iPad"
		case ua.Mobile:
			fp.Model = "iPhone"
		}
	}
	return fp, true
}

// UAPParser implements SecondaryParser using the uap-core regex database.
type UAPParser struct {
	parser *uaparser.Parser
}

// NewUAPParser creates the default secondary parser from the bundled
// uap-core definitions.
func NewUAPParser() *UAPParser {
	return &UAPParser{parser: uaparser.NewFromSaved()}
}

// Parse extracts brand/model/family facts from a header.
func (p *UAPParser) Parse(header string) (SecondaryFingerprint, bool) {
	if strings.TrimSpace(header) == "" {
		return SecondaryFingerprint{}, false
	}

	client := p.parser.Parse(header)
	dev := client.Device
	if dev == nil || dev.Family == "" || dev.Family == "Other" {
		return SecondaryFingerprint{}, false
	}

	return SecondaryFingerprint{
		Brand:  strings.ToLower(dev.Brand),
		Model:  dev.Model,
		Family: dev.Family,
	}, true
}

// brandFromFacts maps parser output onto a canonical brand.
func brandFromFacts(deviceStr, os string) string {
	lower := strings.ToLower(deviceStr)
	for _, alias := range orderedAliases {
		if lower != "" && strings.Contains(lower, alias) {
			return brandAliases[alias]
		}
	}
	switch strings.ToLower(os) {
	case "ios", "macos":
		return "apple"
	}
	return ""
}

// deviceTypeFromFingerprint classifies the fingerprint into the device type
// taxonomy used by retrieval.
func deviceTypeFromFingerprint(fp PrimaryFingerprint) string {
	switch {
	case fp.IsTablet:
		return TypeTablet
	case fp.IsMobile:
		return TypePhone
	case strings.EqualFold(fp.OS, "macos") || strings.EqualFold(fp.OS, "windows") || strings.EqualFold(fp.OS, "linux"):
		return TypeLaptop
	default:
		return ""
	}
}
