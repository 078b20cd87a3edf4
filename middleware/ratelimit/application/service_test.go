package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobboard-gate/middleware/ratelimit/domain"
)

// fakeStore devolve sempre o mesmo registro, com contagem controlada pelo teste.
type fakeStore struct {
	rec  domain.Record
	err  error
	hits int
}

func (s *fakeStore) Hit(_ context.Context, key domain.Key, window time.Duration, now time.Time) (domain.Record, error) {
	s.hits++
	if s.err != nil {
		return domain.Record{}, s.err
	}
	r := s.rec
	r.Key = key
	return r, nil
}

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec, err := svc.Decide(context.Background(), "k", domain.Policy{Limit: 1, Window: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_DisabledPolicySkipsStore(t *testing.T) {
	store := &fakeStore{}
	svc := Service{Store: store}

	dec, err := svc.Decide(context.Background(), "k", domain.Policy{})
	if err != nil || !dec.Allowed {
		t.Fatalf("expected allowed without error, got %+v %v", dec, err)
	}
	if store.hits != 0 {
		t.Fatalf("expected store untouched, got %d hits", store.hits)
	}
}

func TestService_Decide_AllowsWithinLimit(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	store := &fakeStore{rec: domain.Record{Count: 3, ResetAt: now.Add(50 * time.Second)}}
	svc := Service{Store: store, Now: fixedNow(now)}

	dec, err := svc.Decide(context.Background(), "k", domain.Policy{Limit: 5, Window: time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.Remaining != 2 {
		t.Fatalf("expected remaining=2, got %d", dec.Remaining)
	}
}

func TestService_Decide_BlocksOverLimitWithCeilRetryAfter(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	store := &fakeStore{rec: domain.Record{Count: 6, ResetAt: now.Add(2500 * time.Millisecond)}}
	svc := Service{Store: store, Now: fixedNow(now)}

	dec, err := svc.Decide(context.Background(), "k", domain.Policy{Limit: 5, Window: time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", dec.Remaining)
	}
	if dec.RetryAfter != 3*time.Second {
		t.Fatalf("expected RetryAfter=3s (ceil of 2.5s), got %s", dec.RetryAfter)
	}
}

func TestService_Decide_WrapsStoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := Service{Store: &fakeStore{err: boom}}

	_, err := svc.Decide(context.Background(), "k", domain.Policy{Limit: 1, Window: time.Second})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestCeilSeconds(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		0:                       time.Second,
		-time.Second:            time.Second,
		time.Millisecond:        time.Second,
		time.Second:             time.Second,
		1001 * time.Millisecond: 2 * time.Second,
		60 * time.Second:        60 * time.Second,
	}
	for in, want := range cases {
		if got := ceilSeconds(in); got != want {
			t.Fatalf("ceilSeconds(%s) = %s, want %s", in, got, want)
		}
	}
}
