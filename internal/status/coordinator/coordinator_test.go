package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veristat/internal/status/classifier"
	"veristat/internal/status/models"
	"veristat/internal/status/store"
	"veristat/pkg/domain"
)

// scriptedFetcher records the order of fetches and serves records from fn.
type scriptedFetcher struct {
	mu    sync.Mutex
	calls []domain.ClientID
	fn    func(id domain.ClientID) (*models.VerificationRecord, error)
}

func (f *scriptedFetcher) FetchRecord(_ context.Context, id domain.ClientID) (*models.VerificationRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	return f.fn(id)
}

func (f *scriptedFetcher) Calls() []domain.ClientID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ClientID(nil), f.calls...)
}

func fullyVerifiedRecord(id domain.ClientID) (*models.VerificationRecord, error) {
	return &models.VerificationRecord{
		ClientID: id,
		Documents: map[string]bool{
			models.DocProofOfIdentity: true,
			models.DocProofOfAddress:  true,
		},
	}, nil
}

type CoordinatorSuite struct {
	suite.Suite

	cache   *store.InMemoryCache
	fetcher *scriptedFetcher
	coord   *Coordinator
	cancel  context.CancelFunc
	done    chan struct{}
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.cache = store.NewInMemoryCache(5 * time.Minute)
	s.fetcher = &scriptedFetcher{fn: fullyVerifiedRecord}
	s.coord = New(s.cache, s.fetcher, classifier.Default(), slog.Default(),
		WithDebounce(20*time.Millisecond),
		WithFetchDelay(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.coord.Run(ctx)
	}()
}

func (s *CoordinatorSuite) TearDownTest() {
	s.cancel()
	<-s.done
}

func (s *CoordinatorSuite) waitUpdate(ch <-chan Update) Update {
	s.T().Helper()
	select {
	case u, ok := <-ch:
		s.Require().True(ok, "subscription closed before update arrived")
		return u
	case <-time.After(2 * time.Second):
		s.Require().FailNow("timed out waiting for status update")
		return Update{}
	}
}

func (s *CoordinatorSuite) TestBatchDedupesAndPreservesOrder() {
	updates, cancel := s.coord.Subscribe()
	defer cancel()

	a, b := domain.NewClientID(), domain.NewClientID()
	s.coord.Request(a, b)
	s.coord.Request(a) // duplicate keeps its original position

	first := s.waitUpdate(updates)
	second := s.waitUpdate(updates)

	s.Equal(a, first.ClientID)
	s.Equal(b, second.ClientID)
	s.Equal([]domain.ClientID{a, b}, s.fetcher.Calls())
	s.Equal(models.StateFullyVerified, first.Status.State)
}

func (s *CoordinatorSuite) TestBurstCollapsesIntoOneBatch() {
	updates, cancel := s.coord.Subscribe()
	defer cancel()

	a, b := domain.NewClientID(), domain.NewClientID()
	s.coord.Request(a)
	time.Sleep(5 * time.Millisecond) // within the debounce window
	s.coord.Request(b)

	s.waitUpdate(updates)
	s.waitUpdate(updates)
	s.Equal([]domain.ClientID{a, b}, s.fetcher.Calls())
}

func (s *CoordinatorSuite) TestFreshCacheEntrySkipsFetch() {
	ctx := context.Background()
	a, b := domain.NewClientID(), domain.NewClientID()
	s.Require().NoError(s.cache.Put(ctx, a, models.StatusInfo{State: models.StateFullyVerified}))

	updates, cancel := s.coord.Subscribe()
	defer cancel()
	s.coord.Request(a, b)

	u := s.waitUpdate(updates)
	s.Equal(b, u.ClientID, "only the uncached client should be fetched")
	s.Equal([]domain.ClientID{b}, s.fetcher.Calls())
}

func (s *CoordinatorSuite) TestNotFoundIsCachedAsNotVerified() {
	s.fetcher.fn = func(id domain.ClientID) (*models.VerificationRecord, error) {
		return nil, store.ErrNotFound
	}

	updates, cancel := s.coord.Subscribe()
	defer cancel()
	a := domain.NewClientID()
	s.coord.Request(a)

	u := s.waitUpdate(updates)
	s.Equal(models.StateNotVerified, u.Status.State)

	cached, err := s.cache.Get(context.Background(), a)
	s.Require().NoError(err, "a definitive no-record answer should be cached")
	s.Equal(models.StateNotVerified, cached.State)
}

func (s *CoordinatorSuite) TestTransportErrorDegradesToNotVerified() {
	s.fetcher.fn = func(id domain.ClientID) (*models.VerificationRecord, error) {
		return nil, errors.New("backend unreachable")
	}

	updates, cancel := s.coord.Subscribe()
	defer cancel()
	a := domain.NewClientID()
	s.coord.Request(a)

	u := s.waitUpdate(updates)
	s.Equal(models.StateNotVerified, u.Status.State)
	s.Contains(u.Status.Message, "backend unreachable")

	// The degraded status is cached like any answer, so the row renders
	// instead of re-fetching on every request within the TTL.
	cached, err := s.cache.Get(context.Background(), a)
	s.Require().NoError(err)
	s.Equal(models.StateNotVerified, cached.State)
	s.Contains(cached.Message, "backend unreachable")
}

func (s *CoordinatorSuite) TestFailedItemDoesNotAbortBatch() {
	a, b := domain.NewClientID(), domain.NewClientID()
	s.fetcher.fn = func(id domain.ClientID) (*models.VerificationRecord, error) {
		if id == a {
			return nil, errors.New("backend unreachable")
		}
		return fullyVerifiedRecord(id)
	}

	updates, cancel := s.coord.Subscribe()
	defer cancel()
	s.coord.Request(a, b)

	first := s.waitUpdate(updates)
	second := s.waitUpdate(updates)
	s.Equal(a, first.ClientID)
	s.Equal(models.StateNotVerified, first.Status.State)
	s.NotEmpty(first.Status.Message)
	s.Equal(b, second.ClientID)
	s.Equal(models.StateFullyVerified, second.Status.State)
}

// pacingFetcher times every call and tracks how many are in flight at once.
type pacingFetcher struct {
	mu          sync.Mutex
	starts      []time.Time
	inFlight    int
	maxInFlight int
}

func (f *pacingFetcher) FetchRecord(_ context.Context, id domain.ClientID) (*models.VerificationRecord, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.starts = append(f.starts, time.Now())
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return fullyVerifiedRecord(id)
}

func (s *CoordinatorSuite) TestSequentialPacingBetweenFetches() {
	const delay = 40 * time.Millisecond
	paced := &pacingFetcher{}
	coord := New(store.NewInMemoryCache(5*time.Minute), paced, classifier.Default(), slog.Default(),
		WithDebounce(10*time.Millisecond),
		WithFetchDelay(delay),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coord.Run(ctx)
	}()

	updates, cancelSub := coord.Subscribe()
	defer cancelSub()

	ids := []domain.ClientID{domain.NewClientID(), domain.NewClientID(), domain.NewClientID()}
	coord.Request(ids...)
	for range ids {
		s.waitUpdate(updates)
	}
	cancel()
	<-done

	s.Require().Len(paced.starts, len(ids), "exactly one fetch per uncached client")
	s.Equal(1, paced.maxInFlight, "no two fetches may be in flight at once")
	for i := 1; i < len(paced.starts); i++ {
		gap := paced.starts[i].Sub(paced.starts[i-1])
		s.GreaterOrEqual(gap, delay, "consecutive fetches must be separated by the pacing delay")
	}
}

func (s *CoordinatorSuite) TestSubscribeCancelClosesChannel() {
	updates, cancel := s.coord.Subscribe()
	cancel()

	_, ok := <-updates
	s.False(ok)
}

func (s *CoordinatorSuite) TestSinkReceivesResolvedStatuses() {
	sink := &captureSink{}
	s.coord.sink = sink

	updates, cancel := s.coord.Subscribe()
	defer cancel()
	a := domain.NewClientID()
	s.coord.Request(a)
	s.waitUpdate(updates)

	s.Equal([]domain.ClientID{a}, sink.IDs())
}

type captureSink struct {
	mu  sync.Mutex
	ids []domain.ClientID
}

func (c *captureSink) StatusResolved(_ context.Context, id domain.ClientID, _ models.StatusInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
}

func (c *captureSink) IDs() []domain.ClientID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ClientID(nil), c.ids...)
}
