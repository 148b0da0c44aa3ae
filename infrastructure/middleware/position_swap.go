package middleware

import (
	"context"
	"math/rand/v2"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-zsb/internal/domain"
)

// DefaultPlacementSeed is the base seed of pairwise placement.
const DefaultPlacementSeed = 42

// PositionSwap mitigates positional bias in pairwise judging. Each item's
// answers are shown in an order drawn from an RNG seeded with seed*i, so a
// rerun with the same seed reproduces every placement. Winners reported in
// display terms are mapped back to the original answers, and an
// unparseable winner is replaced with a uniform random label.
type PositionSwap struct {
	name string
	seed uint64

	mu       sync.Mutex
	fallback *rand.Rand
}

// NewPositionSwap creates a placement assigner. fallback supplies random
// winners for unparseable judgments; nil seeds one from the placement seed.
func NewPositionSwap(name string, seed int, fallback *rand.Rand) *PositionSwap {
	if fallback == nil {
		fallback = rand.New(rand.NewPCG(uint64(seed), 0))
	}
	return &PositionSwap{name: name, seed: uint64(seed), fallback: fallback}
}

func (ps *PositionSwap) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("position-swap-middleware")
	ctx, span := tracer.Start(ctx, name)

	span.SetAttributes(
		attribute.String("middleware.name", ps.name),
		attribute.String("middleware.type", "position_swap"),
	)
	span.SetAttributes(attrs...)
	return ctx, span
}

// Placement returns the display order of item i. The RNG is reseeded per
// item so the result does not depend on how many items precede it.
func (ps *PositionSwap) Placement(i int) domain.Placement {
	rng := rand.New(rand.NewPCG(ps.seed*uint64(i), 0))
	order := []int{0, 1}
	rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
	return domain.Placement{APlace: order[0]}
}

// Placements assigns a placement to each of n items.
func (ps *PositionSwap) Placements(ctx context.Context, n int) []domain.Placement {
	_, span := ps.startSpan(ctx, "PositionSwap.Placements", attribute.Int("items", n))
	defer span.End()

	out := make([]domain.Placement, n)
	swapped := 0
	for i := range out {
		out[i] = ps.Placement(i)
		swapped += out[i].APlace
	}
	span.SetAttributes(attribute.Int("swapped", swapped))
	return out
}

// Resolve maps a display-position judgment back to the original answers.
// The second return is false when the winner was drawn at random.
func (ps *PositionSwap) Resolve(p domain.Placement, j domain.RelativeJudgment) (string, bool) {
	if !j.WinnerOK {
		return ps.randomLabel(), false
	}
	return p.Remap(j.Winner), true
}

func (ps *PositionSwap) randomLabel() string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.fallback.IntN(2) == 0 {
		return domain.LabelA
	}
	return domain.LabelB
}
