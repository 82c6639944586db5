package fusionsolar

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"solarwatch/internal/observability/metrics"
	readings "solarwatch/internal/readings/domain"
)

// Source adapts the vendor API to the sampler. It logs in lazily, caches the
// inverter list, and re-authenticates once when the session expires.
type Source struct {
	client      *Client
	stationCode string
	logger      *log.Logger

	mu        sync.Mutex
	session   *Session
	deviceIDs []int64
}

// NewSource constructs a vendor-backed reading source. stationCode may be
// empty, in which case the first station on the account is used.
func NewSource(client *Client, stationCode string, logger *log.Logger) (*Source, error) {
	if client == nil {
		return nil, errors.New("fusionsolar: nil client")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Source{client: client, stationCode: stationCode, logger: logger}, nil
}

// Next fetches one reading from the first inverter's PV string 1.
func (s *Source) Next(ctx context.Context, now time.Time) (readings.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	reading, err := s.poll(ctx, now)
	if err != nil {
		metrics.ObserveVendorPoll("error", time.Since(start))
		return readings.Reading{}, err
	}
	metrics.ObserveVendorPoll("ok", time.Since(start))
	return reading, nil
}

func (s *Source) poll(ctx context.Context, now time.Time) (readings.Reading, error) {
	reading, err := s.fetch(ctx, now)
	if errors.Is(err, ErrSessionExpired) {
		s.logger.Printf("fusionsolar: session expired, logging in again")
		s.session = nil
		reading, err = s.fetch(ctx, now)
	}
	return reading, err
}

func (s *Source) fetch(ctx context.Context, now time.Time) (readings.Reading, error) {
	if !s.session.Valid() {
		session, err := s.client.Login(ctx)
		if err != nil {
			return readings.Reading{}, err
		}
		s.session = session
		s.deviceIDs = nil
	}

	if len(s.deviceIDs) == 0 {
		if err := s.discoverDevices(ctx); err != nil {
			return readings.Reading{}, err
		}
	}

	kpis, err := s.client.DeviceRealKPI(ctx, s.session, s.deviceIDs[:1])
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			s.session = nil
		}
		return readings.Reading{}, err
	}
	if len(kpis) == 0 {
		return readings.Reading{}, errors.New("fusionsolar: no kpi data")
	}

	kpi := kpis[0]
	watts := kpi.ActivePower * 1000
	return readings.Reading{
		Timestamp: now,
		Voltage:   round2(kpi.PV1Voltage),
		Current:   round2(kpi.PV1Current),
		Watts:     round2(watts),
		Kilowatts: round3(kpi.ActivePower),
	}, nil
}

func (s *Source) discoverDevices(ctx context.Context) error {
	code := s.stationCode
	if code == "" {
		stations, err := s.client.Stations(ctx, s.session)
		if err != nil {
			return err
		}
		if len(stations) == 0 {
			return errors.New("fusionsolar: account has no stations")
		}
		code = stations[0].Code
	}

	devices, err := s.client.DeviceList(ctx, s.session, []string{code})
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("fusionsolar: station has no string inverters")
	}
	s.deviceIDs = make([]int64, len(devices))
	for i, dev := range devices {
		s.deviceIDs[i] = dev.ID
	}
	return nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func round3(value float64) float64 {
	return math.Round(value*1000) / 1000
}
