package draw

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"
)

// Source produces a uniform random float in [0, 1). Injectable so tests can
// drive the selection deterministically.
type Source func() (float64, error)

// CryptoSource draws 53 bits from crypto/rand, which is the mantissa width of
// a float64, so every representable value in [0, 1) is reachable.
func CryptoSource() (float64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	n := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(n) / (1 << 53), nil
}

type Engine struct {
	source Source
}

func NewEngine(source Source) *Engine {
	if source == nil {
		source = CryptoSource
	}
	return &Engine{source: source}
}

// Draw selects one prize from the active, drawable subset of prizes. Weights
// are normalized over that subset, so illustrative prizes never skew the odds
// of the real ones. Returns store.ErrNoDrawablePrizes when nothing is
// eligible.
func (e *Engine) Draw(prizes []models.Prize) (*models.Prize, error) {
	var eligible []models.Prize
	total := 0.0
	for _, prize := range prizes {
		if !prize.Active || !prize.Drawable {
			continue
		}
		if prize.Probability < 0 {
			return nil, fmt.Errorf("prize %s has negative probability %f", prize.Id, prize.Probability)
		}
		eligible = append(eligible, prize)
		total += prize.Probability
	}
	if len(eligible) == 0 || total <= 0 {
		return nil, fmt.Errorf("%w: no eligible prizes with positive weight", store.ErrNoDrawablePrizes)
	}

	roll, err := e.source()
	if err != nil {
		return nil, err
	}
	target := roll * total

	cumulative := 0.0
	for i := range eligible {
		cumulative += eligible[i].Probability
		if target < cumulative {
			return &eligible[i], nil
		}
	}

	// Float accumulation can leave target a hair past the final boundary.
	return &eligible[len(eligible)-1], nil
}
