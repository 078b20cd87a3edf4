package gate

import (
	"context"
	"errors"
	"time"

	"jobboard-gate/middleware/ratelimit/domain"
)

type brokenStore struct{}

func (brokenStore) Hit(context.Context, domain.Key, time.Duration, time.Time) (domain.Record, error) {
	return domain.Record{}, errors.New("store unavailable")
}
