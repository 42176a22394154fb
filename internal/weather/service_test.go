package weather_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/weather-records/internal/observability"
	"github.com/i474232898/weather-records/internal/store"
	"github.com/i474232898/weather-records/internal/weather"
)

// --- helpers ---

type failingStore struct {
	err error
}

func (f *failingStore) Create(context.Context, weather.Record) (weather.Record, error) {
	return weather.Record{}, f.err
}
func (f *failingStore) FindAll(context.Context) ([]weather.Record, error) { return nil, f.err }
func (f *failingStore) FindByLocation(context.Context, string) (weather.Record, error) {
	return weather.Record{}, f.err
}
func (f *failingStore) Find(context.Context, weather.Query) ([]weather.Record, error) {
	return nil, f.err
}
func (f *failingStore) Delete(context.Context, string) (int64, error) { return 0, f.err }
func (f *failingStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

func newService(t *testing.T, st weather.Store, faults *weather.FaultConfig) (*weather.Service, *observability.Metrics) {
	t.Helper()
	if faults == nil {
		faults = weather.NewFaultConfig(0, 0)
	}
	metrics := observability.NewMetricsForTesting()
	return weather.NewService(st, faults, zap.NewNop(), metrics), metrics
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := weather.ParseDate(s)
	require.NoError(t, err)
	return d
}

func seed(t *testing.T, svc *weather.Service, recs ...weather.Record) {
	t.Helper()
	for _, r := range recs {
		_, err := svc.Create(context.Background(), r)
		require.NoError(t, err)
	}
}

func locations(recs []weather.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Location)
	}
	return out
}

// --- tests ---

func TestService_CreateThenGetByLocation(t *testing.T) {
	svc, metrics := newService(t, store.NewMemoryStore(), nil)
	ctx := context.Background()

	in := weather.Record{
		Location:  "Paris",
		Date:      time.Date(2024, 1, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600)),
		TempMin:   2,
		TempMax:   8,
		Condition: "cloudy",
	}
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, created.Date.Location())

	got, err := svc.GetByLocation(ctx, "Paris")
	require.NoError(t, err)
	assert.True(t, in.Date.Equal(got.Date))
	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("record mismatch (-created +got):\n%s", diff)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsCreated))
}

func TestService_CreateRejectsInvertedTemperatures(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)

	_, err := svc.Create(context.Background(), weather.Record{
		Location: "Oslo", Date: date(t, "2024-01-01"), TempMin: 5, TempMax: -3,
	})

	var verr *weather.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Msg, "tempMin")
}

func TestService_CreateDuplicateLocationIsStoreError(t *testing.T) {
	svc, metrics := newService(t, store.NewMemoryStore(), nil)
	rec := weather.Record{Location: "Rome", Date: date(t, "2024-01-01"), Condition: "sunny"}
	seed(t, svc, rec)

	_, err := svc.Create(context.Background(), rec)

	var serr *weather.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, weather.OpCreate, serr.Op)
	assert.ErrorIs(t, err, weather.ErrDuplicate)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues(weather.OpCreate)))
}

func TestService_SearchEmptyFilterReturnsAll(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)
	seed(t, svc,
		weather.Record{Location: "Paris", Date: date(t, "2024-01-01")},
		weather.Record{Location: "Nashville", Date: date(t, "2024-01-02")},
	)

	recs, err := svc.Search(context.Background(), weather.SearchFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Paris", "Nashville"}, locations(recs))
}

func TestService_SearchByLocationSubstring(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)
	seed(t, svc,
		weather.Record{Location: "Nashville", Date: date(t, "2024-01-01")},
		weather.Record{Location: "Louisville", Date: date(t, "2024-01-01")},
		weather.Record{Location: "Paris", Date: date(t, "2024-01-01")},
		weather.Record{Location: "Villeneuve", Date: date(t, "2024-01-01")},
	)

	recs, err := svc.Search(context.Background(), weather.SearchFilter{Location: "ville"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Nashville", "Louisville"}, locations(recs))
}

func TestService_SearchByDateMatchesWholeDay(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)
	seed(t, svc,
		weather.Record{Location: "a", Date: date(t, "2024-05-04T00:00:00Z")},
		weather.Record{Location: "b", Date: date(t, "2024-05-04T13:15:00Z")},
		weather.Record{Location: "c", Date: date(t, "2024-05-04T23:59:59.999Z")},
		weather.Record{Location: "d", Date: date(t, "2024-05-05T00:00:00Z")},
		weather.Record{Location: "e", Date: date(t, "2024-05-03T23:59:59Z")},
	)

	day := date(t, "2024-05-04")
	recs, err := svc.Search(context.Background(), weather.SearchFilter{Date: &day})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, locations(recs))
}

func TestService_SearchCombinesFilters(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)
	seed(t, svc,
		weather.Record{Location: "Nashville", Date: date(t, "2024-01-01"), Condition: "light rain"},
		weather.Record{Location: "Louisville", Date: date(t, "2024-01-01"), Condition: "sunny"},
		weather.Record{Location: "Paris", Date: date(t, "2024-01-01"), Condition: "rain"},
	)

	recs, err := svc.Search(context.Background(), weather.SearchFilter{Location: "ville", Condition: "rain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Nashville"}, locations(recs))
}

func TestService_GetByLocationNotFound(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)

	_, err := svc.GetByLocation(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, weather.ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	svc, metrics := newService(t, store.NewMemoryStore(), nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, "Atlantis"), weather.ErrNotFound)

	seed(t, svc, weather.Record{Location: "Berlin", Date: date(t, "2024-01-01")})
	require.NoError(t, svc.Delete(ctx, "Berlin"))

	_, err := svc.GetByLocation(ctx, "Berlin")
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "Berlin"), weather.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsDeleted))
}

func TestService_ForecastParisScenario(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)
	ctx := context.Background()
	seed(t, svc, weather.Record{
		Location: "Paris", Date: date(t, "2024-01-01"), TempMin: 2, TempMax: 8, Condition: "cloudy",
	})

	recs, err := svc.GetForecast(ctx, "2024-01-01", "Paris")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "cloudy", recs[0].Condition)

	recs, err = svc.GetForecast(ctx, "2024-01-08", "Paris")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestService_ForecastWindowBoundsAndExactLocation(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)
	seed(t, svc,
		weather.Record{Location: "Lyon", Date: date(t, "2024-01-07T23:59:59.999Z")},
		weather.Record{Location: "Lyonnais", Date: date(t, "2024-01-03")},
	)

	recs, err := svc.GetForecast(context.Background(), "2024-01-01", "Lyon")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	w, err := weather.ForecastWindow("2024-01-01")
	require.NoError(t, err)
	for _, r := range recs {
		assert.Equal(t, "Lyon", r.Location)
		assert.True(t, w.Contains(r.Date))
	}
}

func TestService_ForecastRequiresParams(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)

	for _, tc := range [][2]string{{"", "Paris"}, {"2024-01-01", ""}, {"", ""}} {
		_, err := svc.GetForecast(context.Background(), tc[0], tc[1])
		var verr *weather.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "startDate and location required", verr.Msg)
	}
}

func TestService_ForecastSimulatedFailure(t *testing.T) {
	faults := weather.NewFaultConfig(0, 1, weather.WithRandom(func() float64 { return 0.2 }))
	svc, metrics := newService(t, store.NewMemoryStore(), faults)

	_, err := svc.GetForecast(context.Background(), "2024-01-01", "Paris")
	assert.ErrorIs(t, err, weather.ErrSimulatedFailure)

	var serr *weather.StoreError
	assert.False(t, errors.As(err, &serr), "simulated failure must not look like a store error")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SimulatedFailures))
}

func TestService_OnlyForecastIsFaultInjected(t *testing.T) {
	faults := weather.NewFaultConfig(0, 1, weather.WithRandom(func() float64 { return 0 }))
	svc, _ := newService(t, store.NewMemoryStore(), faults)
	ctx := context.Background()

	seed(t, svc, weather.Record{Location: "Paris", Date: date(t, "2024-01-01")})
	_, err := svc.GetAll(ctx)
	assert.NoError(t, err)
	_, err = svc.Search(ctx, weather.SearchFilter{Location: "P"})
	assert.NoError(t, err)
	_, err = svc.GetByLocation(ctx, "Paris")
	assert.NoError(t, err)
	assert.NoError(t, svc.Delete(ctx, "Paris"))
}

func TestService_DelayOnlyBlocksForecastCaller(t *testing.T) {
	if testing.Short() {
		t.Skip("wall-clock test")
	}
	svc, _ := newService(t, store.NewMemoryStore(), nil)
	ctx := context.Background()
	seed(t, svc, weather.Record{Location: "Paris", Date: date(t, "2024-01-01")})

	svc.SetDelay(500)
	assert.Equal(t, int64(500), svc.Faults().DelayMs)

	var (
		wg              sync.WaitGroup
		forecastElapsed time.Duration
		getAllElapsed   time.Duration
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		_, err := svc.GetForecast(ctx, "2024-01-01", "Paris")
		forecastElapsed = time.Since(start)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		_, err := svc.GetAll(ctx)
		getAllElapsed = time.Since(start)
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.GreaterOrEqual(t, forecastElapsed, 500*time.Millisecond)
	assert.Less(t, getAllElapsed, 250*time.Millisecond)
}

func TestService_StoreErrorsAreWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	svc, metrics := newService(t, &failingStore{err: cause}, nil)
	ctx := context.Background()

	calls := map[string]func() error{
		weather.OpCreate: func() error {
			_, err := svc.Create(ctx, weather.Record{Location: "x"})
			return err
		},
		weather.OpGetAll: func() error { _, err := svc.GetAll(ctx); return err },
		weather.OpSearch: func() error {
			_, err := svc.Search(ctx, weather.SearchFilter{Condition: "rain"})
			return err
		},
		weather.OpGetByLocation: func() error { _, err := svc.GetByLocation(ctx, "x"); return err },
		weather.OpDelete:        func() error { return svc.Delete(ctx, "x") },
		weather.OpForecast: func() error {
			_, err := svc.GetForecast(ctx, "2024-01-01", "x")
			return err
		},
		weather.OpPurge: func() error { _, err := svc.PurgeBefore(ctx, time.Now()); return err },
	}
	for op, call := range calls {
		t.Run(op, func(t *testing.T) {
			err := call()
			var serr *weather.StoreError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, op, serr.Op)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues(op)))
		})
	}
}

func TestService_PurgeBefore(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore(), nil)
	ctx := context.Background()
	seed(t, svc,
		weather.Record{Location: "old", Date: date(t, "2023-12-31")},
		weather.Record{Location: "new", Date: date(t, "2024-01-02")},
	)

	n, err := svc.PurgeBefore(ctx, date(t, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recs, err := svc.GetAll(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"new"}, locations(recs), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("remaining locations (-want +got):\n%s", diff)
	}
}

func TestService_SetDelayUpdatesGauge(t *testing.T) {
	svc, metrics := newService(t, store.NewMemoryStore(), weather.NewFaultConfig(100, 0.25))
	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.FaultDelay))

	svc.SetDelay(300)
	assert.Equal(t, 300.0, testutil.ToFloat64(metrics.FaultDelay))
	assert.Equal(t, weather.FaultSnapshot{DelayMs: 300, FailRate: 0.25}, svc.Faults())
}

func TestService_InjectedDelayObservedOnFaultClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	faults := weather.NewFaultConfig(500, 0, weather.WithClock(clock), weather.WithRandom(func() float64 { return 0.5 }))
	svc, metrics := newService(t, store.NewMemoryStore(), faults)

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetForecast(context.Background(), "2024-01-01", "Paris")
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(500 * time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("forecast did not return after the delay elapsed")
	}

	var m dto.Metric
	require.NoError(t, metrics.InjectedDelay.Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.5, m.GetHistogram().GetSampleSum(), 1e-9)
}
