package device

import "context"

// Entity labels returned by the recognizer.
const (
	EntityLabelOrganization = "organization"
	EntityLabelProduct      = "product"
)

// Entity is one recognized named entity.
type Entity struct {
	Text  string
	Label string
}

// EntityRecognizer is the external NER model consumed as a last-resort
// fallback when pattern-based matching is weak.
type EntityRecognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// NopRecognizer recognizes nothing. Used when no NER model is wired.
type NopRecognizer struct{}

// Recognize always returns an empty entity set.
func (NopRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	return nil, nil
}
