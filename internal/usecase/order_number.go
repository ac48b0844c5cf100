package usecase

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/oklog/ulid/v2"
)

const orderNumberPrefix = "YF"

// 注文番号（人が読める・推測されにくい）を作る
type OrderNumberGenerator interface {
	Next() string
}

// "YF" + ULID。同じミリ秒内でも単調増加するので重複しない
type ULIDOrderNumberGenerator struct {
	clock   Clock
	mu      sync.Mutex
	entropy io.Reader
}

func NewULIDOrderNumberGenerator(clock Clock) *ULIDOrderNumberGenerator {
	return &ULIDOrderNumberGenerator{
		clock:   clock,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *ULIDOrderNumberGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy)
	return orderNumberPrefix + id.String()
}
