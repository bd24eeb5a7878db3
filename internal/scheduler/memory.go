package scheduler

import (
	"math"

	"github.com/pvannier/recall/internal/model"
)

// minStability is the floor applied to every stability update. Stability
// is used as a divisor in retention estimates and must stay positive.
const minStability = 0.1

// memory holds precomputed constants derived from the weights.
type memory struct {
	w      Weights
	decay  float64 // -w[20]
	factor float64 // 0.9^(1/decay) - 1
}

func newMemory(w Weights) memory {
	decay := -w[20]
	return memory{
		w:      w,
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}
}

// retrievability computes R(t, S) = (1 + FACTOR * t / S) ^ DECAY.
func (m *memory) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay)
}

// initStability returns the initial stability S₀(G) for the first review.
func (m *memory) initStability(r model.Rating) float64 {
	return clampStability(m.w[r-1])
}

// initDifficulty returns the initial difficulty D₀(G).
// D₀(G) = w[4] - e^(w[5] * (G - 1)) + 1
func (m *memory) initDifficulty(r model.Rating, clamp bool) float64 {
	d := m.w[4] - math.Exp(m.w[5]*float64(r-1)) + 1
	if clamp {
		return clampDifficulty(d)
	}
	return d
}

// nextInterval computes the next review interval in days from stability
// and the target retention probability, clamped to [1, maxIvl].
func (m *memory) nextInterval(stability, desiredRetention float64, maxIvl int) int {
	ivl := stability / m.factor * (math.Pow(desiredRetention, 1.0/m.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > maxIvl {
		days = maxIvl
	}
	return days
}

// shortTermStability computes the same-day review stability update.
// For Good and Easy the multiplier never drops below 1, so successful
// same-day reviews cannot shrink stability.
func (m *memory) shortTermStability(stability float64, r model.Rating) float64 {
	inc := math.Exp(m.w[17]*(float64(r)-3+m.w[18])) * math.Pow(stability, -m.w[19])
	if r == model.Good || r == model.Easy {
		inc = math.Max(inc, 1.0)
	}
	return clampStability(stability * inc)
}

// nextStability dispatches on the rating: Again uses the forget curve,
// everything else the recall curve.
func (m *memory) nextStability(d, s, r float64, rating model.Rating) float64 {
	if rating == model.Again {
		return clampStability(m.forgetStability(d, s, r))
	}
	return clampStability(m.recallStability(d, s, r, rating))
}

// recallStability computes stability after a successful recall.
// S' = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * hardPenalty * easyBonus)
func (m *memory) recallStability(d, s, r float64, rating model.Rating) float64 {
	hardPenalty := 1.0
	if rating == model.Hard {
		hardPenalty = m.w[15]
	}
	easyBonus := 1.0
	if rating == model.Easy {
		easyBonus = m.w[16]
	}
	return s * (1 + math.Exp(m.w[8])*
		(11-d)*
		math.Pow(s, -m.w[9])*
		(math.Exp((1-r)*m.w[10])-1)*
		hardPenalty*easyBonus)
}

// forgetStability computes stability after forgetting.
// S' = min(long, short); the short-term branch guarantees the result
// never exceeds the pre-review stability.
func (m *memory) forgetStability(d, s, r float64) float64 {
	long := m.w[11] *
		math.Pow(d, -m.w[12]) *
		(math.Pow(s+1, m.w[13]) - 1) *
		math.Exp((1-r)*m.w[14])
	short := s / math.Exp(m.w[17]*m.w[18])
	return math.Min(long, short)
}

// nextDifficulty computes the updated difficulty with linear damping and
// mean reversion toward D₀(Easy). Difficulty rises on Again and falls on
// Easy, always inside [1, 10].
func (m *memory) nextDifficulty(difficulty float64, r model.Rating) float64 {
	deltaD := -m.w[6] * (float64(r) - 3)
	damped := difficulty + (10-difficulty)*deltaD/9
	target := m.initDifficulty(model.Easy, false)
	return clampDifficulty(m.w[7]*target + (1-m.w[7])*damped)
}

func clampStability(s float64) float64 {
	return math.Max(s, minStability)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
