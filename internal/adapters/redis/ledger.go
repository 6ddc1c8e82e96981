package redisad

import (
	"context"

	"github.com/redis/go-redis/v9"

	"gbp_responder/internal/adapters/observability"
)

const processedSetKey = "automation:processed"

// Ledger is the redis-backed dedupe ledger: a single set of handled review
// ids. SADD gives the atomic test-and-insert the claim semantics require, so
// concurrent pollers and webhook handlers agree on a single winner.
type Ledger struct{ c *redis.Client }

func New(addr, pass string, db int) *Ledger {
	return &Ledger{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (l *Ledger) TryClaim(ctx context.Context, id string) (bool, error) {
	n, err := l.c.SAdd(ctx, processedSetKey, id).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		observability.ObserveLedger("redis", "claimed")
		return true, nil
	}
	observability.ObserveLedger("redis", "duplicate")
	return false, nil
}

func (l *Ledger) Size(ctx context.Context) (int, error) {
	n, err := l.c.SCard(ctx, processedSetKey).Result()
	return int(n), err
}
