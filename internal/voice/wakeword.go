package voice

import (
	"context"
	"sync"

	"github.com/wit-terminal/voicecore/internal/errors"
	"github.com/wit-terminal/voicecore/internal/resilience"
	"github.com/wit-terminal/voicecore/internal/syncx"
)

// Detection is a single wake-word hit.
type Detection struct {
	Name        string
	Confidence  float64
	TimestampMs int64
}

// Scorer is the core's stable adapter onto the wake-word inference backend
// (spec.md §4.5/§6). The core never parses model blobs — it only calls Score
// with already-extracted features and gets back an optional detection.
type Scorer interface {
	Score(ctx context.Context, features []float32) (Detection, bool, error)
}

// NullScorer is the total, always-absent backend required by spec.md's
// Design Notes ("stubs are total"): the absence of a wake-word backend must
// be a normal, tested mode where detections simply never fire.
type NullScorer struct{}

// Score always reports no detection and never errors.
func (NullScorer) Score(context.Context, []float32) (Detection, bool, error) {
	return Detection{}, false, nil
}

// WakeWordRegistry holds the ordered set of registered models, at most
// MaxWakeWords, per spec.md §3's "Wake-word registry".
type WakeWordRegistry struct {
	mu       sync.RWMutex
	models   []WakeWordModel
	maxCount int
}

// NewWakeWordRegistry creates an empty registry bounded at max entries.
func NewWakeWordRegistry(max int) *WakeWordRegistry {
	if max <= 0 {
		max = MaxWakeWords
	}
	return &WakeWordRegistry{maxCount: max}
}

// Register adds a model, rejecting once the registry is full.
func (r *WakeWordRegistry) Register(m WakeWordModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.models) >= r.maxCount {
		return errors.Newf(errors.InvalidParam, "wake-word registry full (max %d)", r.maxCount)
	}
	r.models = append(r.models, m)
	return nil
}

// Models returns a snapshot of registered models in registration order.
func (r *WakeWordRegistry) Models() []WakeWordModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]WakeWordModel(nil), r.models...)
}

// PooledScorer wraps a backend Scorer with a short pooling window per model
// (spec.md §4.5) and a sensitivity-adjusted effective threshold. Backend
// calls are guarded by a circuit breaker: a failed call contributes zero
// confidence to every window, and Score returns a BackendFailure error
// alongside whatever the pooled windows yield.
type PooledScorer struct {
	backend    Scorer
	registry   *WakeWordRegistry
	breaker    *resilience.Breaker
	poolSize   int
	sensitivity *syncx.RWGuard[float64]

	mu      sync.Mutex
	windows map[string][]float64 // model name -> ring of recent confidences
}

// NewPooledScorer builds the adapter. breakerCfg governs how aggressively a
// misbehaving backend is circuit-broken away from the hot path.
func NewPooledScorer(backend Scorer, registry *WakeWordRegistry, poolSize int, breakerCfg resilience.Config) *PooledScorer {
	if backend == nil {
		backend = NullScorer{}
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolingWindow
	}
	return &PooledScorer{
		backend:     backend,
		registry:    registry,
		breaker:     resilience.New(breakerCfg),
		poolSize:    poolSize,
		sensitivity: syncx.NewGuard(0.5),
		windows:     make(map[string][]float64),
	}
}

// SetSensitivity updates the global sensitivity parameter s in [0,1].
func (p *PooledScorer) SetSensitivity(s float64) error {
	if s < 0 || s > 1 {
		return errors.New(errors.InvalidParam, "sensitivity must be in [0,1]")
	}
	p.sensitivity.Set(s)
	return nil
}

// effectiveThreshold implements spec.md's `threshold * (1 - s*margin)`.
func (p *PooledScorer) effectiveThreshold(threshold float64) float64 {
	s := p.sensitivity.Get()
	eff := threshold * (1 - s*SensitivityMarginConstant)
	if eff < 0 {
		eff = 0
	}
	return eff
}

// Score calls the backend once, pools the result into every registered
// model's window, and returns the first (by registration order) model whose
// pooled confidence crosses its effective threshold. Ties broken by
// registration order, matching spec.md §4.5 ("Only one wake-word callback
// fires per detection; ties broken by registration order").
func (p *PooledScorer) Score(ctx context.Context, features []float32, tsMs int64) (Detection, bool, error) {
	models := p.registry.Models()
	if len(models) == 0 {
		return Detection{}, false, nil
	}

	det, ok, err := resilience.ExecuteWithResult(p.breaker, func() (Detection, error) {
		d, hit, berr := p.backend.Score(ctx, features)
		if berr != nil {
			return Detection{}, berr
		}
		if !hit {
			return Detection{}, nil
		}
		return d, nil
	})
	backendFailed := err != nil
	if backendFailed {
		ok = false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range models {
		conf := 0.0
		if ok && det.Name == m.Name {
			conf = det.Confidence
		}
		win := p.windows[m.Name]
		win = append(win, conf)
		if len(win) > p.poolSize {
			win = win[len(win)-p.poolSize:]
		}
		p.windows[m.Name] = win
	}

	for _, m := range models {
		win := p.windows[m.Name]
		if len(win) == 0 {
			continue
		}
		var sum float64
		for _, c := range win {
			sum += c
		}
		pooled := sum / float64(len(win))
		if pooled >= p.effectiveThreshold(m.Threshold) {
			return Detection{Name: m.Name, Confidence: pooled, TimestampMs: tsMs}, true, boolToBackendErr(backendFailed)
		}
	}
	return Detection{}, false, boolToBackendErr(backendFailed)
}

func boolToBackendErr(failed bool) error {
	if !failed {
		return nil
	}
	return errors.New(errors.BackendFailure, "wake-word backend call failed")
}
