package remote

import (
	"context"

	"github.com/wit-terminal/voicecore/internal/voice"
)

// Scorer adapts a Client onto voice.Scorer, the shape the core's
// PooledScorer actually calls. Kept separate from Client so Client's own
// method signature stays idiomatic Go (named returns) rather than
// contorted to match the core's Detection type.
type Scorer struct {
	client *Client
}

// NewScorer wraps client as a voice.Scorer.
func NewScorer(client *Client) *Scorer {
	return &Scorer{client: client}
}

func (s *Scorer) Score(ctx context.Context, features []float32) (voice.Detection, bool, error) {
	name, confidence, detected, err := s.client.Score(ctx, features)
	if err != nil {
		return voice.Detection{}, false, err
	}
	if !detected {
		return voice.Detection{}, false, nil
	}
	return voice.Detection{Name: name, Confidence: confidence}, true, nil
}
