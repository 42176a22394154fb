package weather

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-records/internal/observability"
)

// Service orchestrates the record store, query building and fault injection.
type Service struct {
	store   Store
	faults  *FaultConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewService creates a new Service. faults is shared with whoever else holds
// it; updates through SetDelay are visible to every caller.
func NewService(store Store, faults *FaultConfig, logger *zap.Logger, metrics *observability.Metrics) *Service {
	metrics.FaultDelay.Set(float64(faults.Delay()))
	return &Service{
		store:   store,
		faults:  faults,
		logger:  logger,
		metrics: metrics,
	}
}

// Create validates and persists rec, returning the stored record.
func (s *Service) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.Location == "" {
		return Record{}, invalid("location required")
	}
	if rec.TempMin > rec.TempMax {
		return Record{}, invalid("tempMin must not exceed tempMax")
	}
	rec.Date = rec.Date.UTC()

	s.logger.Debug("creating weather record",
		zap.String("location", rec.Location),
		zap.Time("date", rec.Date))

	stored, err := s.store.Create(ctx, rec)
	if err != nil {
		return Record{}, s.storeFailure(OpCreate, err)
	}
	s.metrics.RecordsCreated.Inc()
	return stored, nil
}

// GetAll returns every record.
func (s *Service) GetAll(ctx context.Context) ([]Record, error) {
	s.logger.Info("fetching all weather records")
	recs, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, s.storeFailure(OpGetAll, err)
	}
	return recs, nil
}

// Search returns records matching every set field of f. An empty filter
// returns everything.
func (s *Service) Search(ctx context.Context, f SearchFilter) ([]Record, error) {
	if f.IsEmpty() {
		return s.GetAll(ctx)
	}
	s.logger.Info("searching weather records", zap.Any("filter", f))
	recs, err := s.store.Find(ctx, BuildSearchQuery(f))
	if err != nil {
		return nil, s.storeFailure(OpSearch, err)
	}
	return recs, nil
}

// GetByLocation returns the record stored for exactly location.
func (s *Service) GetByLocation(ctx context.Context, location string) (Record, error) {
	s.logger.Info("fetching weather for location", zap.String("location", location))
	rec, err := s.store.FindByLocation(ctx, location)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("weather for location not found", zap.String("location", location))
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, s.storeFailure(OpGetByLocation, err)
	}
	return rec, nil
}

// Delete removes the record for exactly location.
func (s *Service) Delete(ctx context.Context, location string) error {
	s.logger.Warn("deleting weather records", zap.String("location", location))
	n, err := s.store.Delete(ctx, location)
	if err != nil {
		return s.storeFailure(OpDelete, err)
	}
	if n == 0 {
		s.logger.Warn("weather for location not found", zap.String("location", location))
		return ErrNotFound
	}
	s.metrics.RecordsDeleted.Add(float64(n))
	return nil
}

// GetForecast returns the records for exactly location within the seven-day
// window starting at startDate. It is the only operation subject to fault
// injection.
func (s *Service) GetForecast(ctx context.Context, startDate, location string) ([]Record, error) {
	if startDate == "" || location == "" {
		return nil, invalid("startDate and location required")
	}
	w, err := ForecastWindow(startDate)
	if err != nil {
		return nil, err
	}

	began := s.faults.Now()
	err = s.faults.Inject(ctx)
	s.metrics.InjectedDelay.Observe(s.faults.Since(began).Seconds())
	if err != nil {
		if errors.Is(err, ErrSimulatedFailure) {
			s.metrics.SimulatedFailures.Inc()
			s.logger.Warn("simulated failure injected",
				zap.String("fault", "simulated"),
				zap.String("location", location),
				zap.String("startDate", startDate))
		}
		return nil, err
	}

	s.logger.Info("fetching seven-day forecast",
		zap.String("location", location),
		zap.Time("start", w.Start),
		zap.Time("end", w.End))

	recs, err := s.store.Find(ctx, ForecastQuery(location, w))
	if err != nil {
		return nil, s.storeFailure(OpForecast, err)
	}
	return recs, nil
}

// SetDelay updates the artificial forecast delay.
func (s *Service) SetDelay(ms int64) {
	s.logger.Debug("updating artificial delay", zap.Int64("delayMs", ms))
	s.faults.SetDelay(ms)
	s.metrics.FaultDelay.Set(float64(ms))
}

// Faults returns the current fault injection settings.
func (s *Service) Faults() FaultSnapshot {
	return s.faults.Snapshot()
}

// PurgeBefore deletes records dated strictly before cutoff.
func (s *Service) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.DeleteBefore(ctx, cutoff.UTC())
	if err != nil {
		return 0, s.storeFailure(OpPurge, err)
	}
	if n > 0 {
		s.metrics.RecordsDeleted.Add(float64(n))
	}
	return n, nil
}

func (s *Service) storeFailure(op string, err error) error {
	s.metrics.StoreErrors.WithLabelValues(op).Inc()
	s.logger.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return wrapStore(op, err)
}
