package classify

import (
	"context"

	"github.com/nvdai/suriwatch/internal/domain"
)

// StaticClassifier returns the same verdict for every flow. It stands in
// while no model adapter is wired; the benign variant keeps the capture loop
// running end to end without ever touching the blacklist.
type StaticClassifier struct {
	class domain.TrafficClass
}

func NewStaticClassifier(class domain.TrafficClass) *StaticClassifier {
	return &StaticClassifier{class: class}
}

// NewBenignClassifier is the default placeholder model.
func NewBenignClassifier() *StaticClassifier {
	return NewStaticClassifier(domain.ClassBenign)
}

func (c *StaticClassifier) Classify(ctx context.Context, rows []domain.FlowRecord) ([]domain.TrafficClass, error) {
	verdicts := make([]domain.TrafficClass, len(rows))
	for i := range verdicts {
		verdicts[i] = c.class
	}
	return verdicts, nil
}
