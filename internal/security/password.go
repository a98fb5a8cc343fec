package security

import (
	"context"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"driverhub/internal/observability"
)

// DefaultCost matches the cost the legacy service used, so hashes stay
// interchangeable with rows it wrote.
const DefaultCost = 8

// Hasher wraps bcrypt behind a weighted semaphore. Hashing is CPU bound, and
// without the bound a burst of logins would occupy every scheduler thread
// and starve the rest of the request path.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
	prom *observability.Prom
}

func NewHasher(cost int, prom *observability.Prom) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}

	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		prom: prom,
	}
}

func (h *Hasher) observe(op string, fn func()) {
	if h.prom != nil {
		h.prom.ObserveHash(op, fn)
		return
	}
	fn()
}

// Hash derives a salted bcrypt hash from a plain text password.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	var (
		hash []byte
		err  error
	)

	h.observe("hash", func() {
		hash, err = bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	})

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify reports whether plain matches the stored hash. It is total over all
// inputs: an empty hash (account with no local password) or a malformed hash
// is a mismatch, never an error. bcrypt accepts both the $2a$ and $2b$
// prefixes, so rows written by the legacy service still verify.
func (h *Hasher) Verify(ctx context.Context, plain, storedHash string) bool {
	if storedHash == "" {
		return false
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	var err error

	h.observe("verify", func() {
		err = bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain))
	})

	return err == nil
}
