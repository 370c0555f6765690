package telephony

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voicecoach/pkg/utils"
)

// CallLimiter bounds how many outbound calls may be live at once. Acquire is
// taken before a call is placed; Release when the call ends.
type CallLimiter interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

const callSlotKey = "calls:active"

// slotTTL caps how long a crashed process can pin slots. A live process
// releases explicitly well before this.
const slotTTL = time.Hour

// RedisCallLimiter counts live outbound calls in redis so the cap holds
// across replicas.
type RedisCallLimiter struct {
	rdb   *redis.Client
	limit int
}

func NewRedisCallLimiter(rdb *redis.Client, limit int) *RedisCallLimiter {
	return &RedisCallLimiter{rdb: rdb, limit: limit}
}

func (l *RedisCallLimiter) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireCallSlot(ctx, l.rdb, callSlotKey, l.limit, slotTTL)
}

func (l *RedisCallLimiter) Release(ctx context.Context) error {
	return utils.ReleaseCallSlot(ctx, l.rdb, callSlotKey)
}

// NopCallLimiter never refuses a slot. Used when redis is not configured.
type NopCallLimiter struct{}

func (NopCallLimiter) Acquire(context.Context) (bool, error) { return true, nil }
func (NopCallLimiter) Release(context.Context) error         { return nil }

// SlotTracker binds acquired call slots to provider call ids so that exactly
// the calls this process placed release slots, and each at most once. The
// limiter alone is a blind counter; without the binding, a terminal event for
// a call that never got a session (unanswered, busy, failed before pickup)
// would leave its slot pinned until the redis TTL.
type SlotTracker struct {
	limiter CallLimiter

	mu   sync.Mutex
	held map[string]struct{}
}

func NewSlotTracker(limiter CallLimiter) *SlotTracker {
	if limiter == nil {
		limiter = NopCallLimiter{}
	}
	return &SlotTracker{limiter: limiter, held: map[string]struct{}{}}
}

// TryAcquire reserves a slot ahead of call placement. The slot is anonymous
// until Bind ties it to the provider's call id.
func (t *SlotTracker) TryAcquire(ctx context.Context) (bool, error) {
	return t.limiter.Acquire(ctx)
}

// Abort gives back a reserved slot when placement failed before the provider
// assigned a call id.
func (t *SlotTracker) Abort(ctx context.Context) error {
	return t.limiter.Release(ctx)
}

// Bind ties the most recent reservation to the placed call's id.
func (t *SlotTracker) Bind(callID string) {
	if callID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held[callID] = struct{}{}
}

// Release frees the slot bound to callID. Unknown ids are a no-op: inbound
// calls and repeated terminal events for the same call hold no slot.
func (t *SlotTracker) Release(ctx context.Context, callID string) error {
	t.mu.Lock()
	_, bound := t.held[callID]
	if bound {
		delete(t.held, callID)
	}
	t.mu.Unlock()
	if !bound {
		return nil
	}
	return t.limiter.Release(ctx)
}

// Holds reports whether callID currently owns a slot.
func (t *SlotTracker) Holds(callID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[callID]
	return ok
}
