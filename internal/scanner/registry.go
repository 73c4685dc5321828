package scanner

import (
	"sync"
	"time"
)

// DefaultClaimTTL is how long a claim stays fresh without a Touch. A crashed
// holder stops touching and its claim expires instead of wedging the scanner.
const DefaultClaimTTL = 30 * time.Second

// Registry tracks which session currently owns the scanner hardware within
// this process. Claims go stale after a TTL so an owner that died without
// releasing does not block the device forever.
type Registry struct {
	mu      sync.Mutex
	owner   string
	touched time.Time
	ttl     time.Duration

	now func() time.Time // test hook
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &Registry{ttl: ttl, now: time.Now}
}

// Acquire claims the scanner for owner. Re-acquiring by the current owner
// refreshes the claim. A fresh claim by someone else returns ErrScannerBusy;
// a stale one is taken over.
func (r *Registry) Acquire(owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owner != "" && r.owner != owner && r.now().Sub(r.touched) < r.ttl {
		return ErrScannerBusy
	}
	r.owner = owner
	r.touched = r.now()
	return nil
}

// TTL reports the freshness window. Fixed at construction.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Touch refreshes the claim. A Touch by a non-owner is ignored.
func (r *Registry) Touch(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == owner {
		r.touched = r.now()
	}
}

// Release drops the claim. Only the current owner can release; anyone else's
// Release is ignored.
func (r *Registry) Release(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == owner {
		r.owner = ""
		r.touched = time.Time{}
	}
}

// Holder reports the current owner, or "" when unclaimed or stale.
func (r *Registry) Holder() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == "" || r.now().Sub(r.touched) >= r.ttl {
		return ""
	}
	return r.owner
}
