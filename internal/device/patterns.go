package device

import (
	"regexp"
	"sort"
)

// brandPattern is one prioritized text pattern for a brand. When the pattern
// fires, the captured text is fuzzy-matched against Models to resolve the
// specific device.
type brandPattern struct {
	Brand      string
	DeviceType string
	Pattern    *regexp.Regexp
	Models     []string
}

// brandPatterns is scanned in order; earlier entries win on equal confidence.
var brandPatterns = []brandPattern{
	{
		Brand:      "apple",
		DeviceType: TypePhone,
		Pattern:    regexp.MustCompile(`(?i)iphone\s*(\d+\s*(?:pro\s*max|pro|plus|max|mini|se)?)?`),
		Models: []string{
			"iPhone 15 Pro Max", "iPhone 15 Pro", "iPhone 15 Plus", "iPhone 15",
			"iPhone 14 Pro Max", "iPhone 14 Pro", "iPhone 14 Plus", "iPhone 14",
			"iPhone 13 Pro Max", "iPhone 13 Pro", "iPhone 13 Mini", "iPhone 13",
			"iPhone 12 Pro Max", "iPhone 12 Pro", "iPhone 12 Mini", "iPhone 12",
			"iPhone 11 Pro Max", "iPhone 11 Pro", "iPhone 11", "iPhone SE",
		},
	},
	{
		Brand:      "apple",
		DeviceType: TypeTablet,
		Pattern:    regexp.MustCompile(`(?i)ipad\s*(pro|air|mini)?\s*(\d+)?`),
		Models: []string{
			"iPad Pro 12.9", "iPad Pro 11", "iPad Air 5", "iPad Air 4",
			"iPad Mini 6", "iPad 10", "iPad 9",
		},
	},
	{
		Brand:      "apple",
		DeviceType: TypeLaptop,
		Pattern:    regexp.MustCompile(`(?i)macbook\s*(pro|air)?\s*(\d+)?`),
		Models: []string{
			"MacBook Pro 16", "MacBook Pro 14", "MacBook Pro 13",
			"MacBook Air M2", "MacBook Air M1", "MacBook Air 13",
		},
	},
	{
		Brand:      "apple",
		DeviceType: TypeDesktop,
		Pattern:    regexp.MustCompile(`(?i)imac|mac\s*mini|mac\s*studio`),
		Models:     []string{"iMac 24", "iMac 27", "Mac Mini", "Mac Studio"},
	},
	{
		Brand:      "samsung",
		DeviceType: TypePhone,
		Pattern:    regexp.MustCompile(`(?i)galaxy\s*(s|note|a|z)\s*(\d+\s*(?:ultra|plus|fe|flip|fold)?)?`),
		Models: []string{
			"Galaxy S24 Ultra", "Galaxy S24", "Galaxy S23 Ultra", "Galaxy S23",
			"Galaxy S22 Ultra", "Galaxy S22", "Galaxy S21 FE", "Galaxy S21",
			"Galaxy Note 20 Ultra", "Galaxy Note 20", "Galaxy A54", "Galaxy A34",
			"Galaxy Z Flip 5", "Galaxy Z Fold 5",
		},
	},
	{
		Brand:      "google",
		DeviceType: TypePhone,
		Pattern:    regexp.MustCompile(`(?i)pixel\s*(\d+\s*(?:pro|a|xl)?)?`),
		Models: []string{
			"Pixel 8 Pro", "Pixel 8", "Pixel 7 Pro", "Pixel 7", "Pixel 7a",
			"Pixel 6 Pro", "Pixel 6", "Pixel 6a",
		},
	},
	{
		Brand:      "huawei",
		DeviceType: TypePhone,
		Pattern:    regexp.MustCompile(`(?i)huawei\s*(p|mate)\s*(\d+\s*(?:pro|lite)?)?`),
		Models: []string{
			"Huawei P60 Pro", "Huawei P50 Pro", "Huawei P40", "Huawei P30 Pro",
			"Huawei Mate 50 Pro", "Huawei Mate 40",
		},
	},
	{
		Brand:      "oneplus",
		DeviceType: TypePhone,
		Pattern:    regexp.MustCompile(`(?i)oneplus\s*(\d+\s*(?:pro|t|r)?)?`),
		Models: []string{
			"OnePlus 12", "OnePlus 11", "OnePlus 10 Pro", "OnePlus 10T",
			"OnePlus 9 Pro", "OnePlus 9",
		},
	},
}

// brandAliases maps substrings found in free text to a canonical brand.
var brandAliases = map[string]string{
	"apple":    "apple",
	"iphone":   "apple",
	"ipad":     "apple",
	"macbook":  "apple",
	"imac":     "apple",
	"samsung":  "samsung",
	"galaxy":   "samsung",
	"google":   "google",
	"pixel":    "google",
	"huawei":   "huawei",
	"oneplus":  "oneplus",
	"one plus": "oneplus",
	"xiaomi":   "xiaomi",
	"redmi":    "xiaomi",
	"oppo":     "oppo",
	"sony":     "sony",
	"xperia":   "sony",
	"lg":       "lg",
	"motorola": "motorola",
}

// orderedAliases fixes the scan order so multi-brand messages resolve
// deterministically.
var orderedAliases = func() []string {
	keys := make([]string, 0, len(brandAliases))
	for k := range brandAliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// defaultBrandType is assumed when an alias hit has no model to narrow the
// device type.
var defaultBrandType = map[string]string{
	"apple":    TypePhone,
	"samsung":  TypePhone,
	"google":   TypePhone,
	"huawei":   TypePhone,
	"oneplus":  TypePhone,
	"xiaomi":   TypePhone,
	"oppo":     TypePhone,
	"sony":     TypePhone,
	"lg":       TypePhone,
	"motorola": TypePhone,
}

// modelsForBrand collects every known model for a brand across its patterns.
func modelsForBrand(brand string) []string {
	var models []string
	for _, bp := range brandPatterns {
		if bp.Brand == brand {
			models = append(models, bp.Models...)
		}
	}
	return models
}

// typeForModel finds the device type of a resolved model by locating which
// pattern's model list contains it.
func typeForModel(brand, model string) string {
	for _, bp := range brandPatterns {
		if bp.Brand != brand {
			continue
		}
		for _, m := range bp.Models {
			if m == model {
				return bp.DeviceType
			}
		}
	}
	return defaultBrandType[brand]
}
