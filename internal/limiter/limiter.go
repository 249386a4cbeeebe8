package limiter

import (
    "context"
    "fmt"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"

    "github.com/local/examprep/internal/metrics"
)

// Adaptive keeps a per-capability cooldown in Redis so that 429/402
// responses from the gateway pause further paid calls for that
// capability, with exponential backoff on repeat offenses, plus a local
// in-process inflight cap.
type Adaptive struct {
    rdb         *redis.Client
    maxInflight int
    baseBackoff time.Duration
    maxBackoff  time.Duration
    mu          sync.Mutex
    sem         map[string]chan struct{}
}

type Options struct {
    MaxInflight int
    BaseBackoff time.Duration
    MaxBackoff  time.Duration
}

func New(rdb *redis.Client, opts Options) *Adaptive {
    if opts.MaxInflight <= 0 { opts.MaxInflight = 2 }
    if opts.BaseBackoff <= 0 { opts.BaseBackoff = 30 * time.Second }
    if opts.MaxBackoff <= 0 { opts.MaxBackoff = 5 * time.Minute }
    return &Adaptive{
        rdb:         rdb,
        maxInflight: opts.MaxInflight,
        baseBackoff: opts.BaseBackoff,
        maxBackoff:  opts.MaxBackoff,
        sem:         map[string]chan struct{}{},
    }
}

func (a *Adaptive) key(capability string) string { return fmt.Sprintf("cooldown:%s", capability) }

// IsOpen reports whether the capability is cooling down.
func (a *Adaptive) IsOpen(ctx context.Context, capability string) bool {
    ts, err := a.rdb.Get(ctx, a.key(capability)).Int64()
    if err != nil { return false }
    return time.Now().Unix() < ts
}

// Open starts or extends the cooldown; backoff doubles per attempt up
// to the configured max.
func (a *Adaptive) Open(ctx context.Context, capability string) {
    k := a.key(capability)
    attempts, _ := a.rdb.Incr(ctx, k+":attempts").Result()
    if attempts < 1 { attempts = 1 }
    if attempts > 16 { attempts = 16 }
    d := a.baseBackoff * (1 << (attempts - 1))
    if d > a.maxBackoff { d = a.maxBackoff }
    until := time.Now().Add(d).Unix()
    _ = a.rdb.Set(ctx, k, until, d).Err()
    metrics.CooldownOpened(capability)
}

// Reset clears the cooldown after a successful call.
func (a *Adaptive) Reset(ctx context.Context, capability string) {
    k := a.key(capability)
    deleted, _ := a.rdb.Del(ctx, k, k+":attempts").Result()
    if deleted > 0 { metrics.CooldownClosed(capability) }
}

// Allow reserves a local inflight slot for the capability. The returned
// release func must be called when the remote call finishes.
func (a *Adaptive) Allow(capability string) (func(), bool) {
    a.mu.Lock()
    ch, ok := a.sem[capability]
    if !ok {
        ch = make(chan struct{}, a.maxInflight)
        a.sem[capability] = ch
    }
    a.mu.Unlock()
    select {
    case ch <- struct{}{}:
        return func() { <-ch }, true
    default:
        return func() {}, false
    }
}
