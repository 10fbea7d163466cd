package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/metrics"
	"tenant-onboarding-service/internal/models"
)

// spotsUnavailableAlert is shown inline when the lookup fails
const spotsUnavailableAlert = "Parking spots could not be loaded. You can continue without parking or try again later."

// ParkingBackend lists available spots of a property
type ParkingBackend interface {
	AvailableParkingSpots(ctx context.Context, propertyID string) ([]models.ParkingSpot, error)
}

// AvailableSpotsResult is the lookup result shown by the parking step
type AvailableSpotsResult struct {
	PropertyID string               `json:"propertyId"`
	Spots      []models.ParkingSpot `json:"spots"`
	Alert      string               `json:"alert,omitempty"`
}

// ParkingService looks up available parking spots
type ParkingService struct {
	backend ParkingBackend
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewParkingService creates a new parking service
func NewParkingService(backend ParkingBackend, m *metrics.Metrics, logger *logrus.Logger) *ParkingService {
	return &ParkingService{
		backend: backend,
		metrics: m,
		logger:  logger,
	}
}

// Lookup never fails: an empty property gives an empty list and a backend
// failure gives an empty list with an alert
func (s *ParkingService) Lookup(ctx context.Context, propertyID string) *AvailableSpotsResult {
	propertyID = strings.TrimSpace(propertyID)
	result := &AvailableSpotsResult{PropertyID: propertyID, Spots: []models.ParkingSpot{}}
	if propertyID == "" {
		s.count("skipped")
		return result
	}

	spots, err := s.AvailableSpots(ctx, propertyID)
	if err != nil {
		s.count("failed")
		fields := logrus.Fields{"property_id": propertyID}
		if errors.Is(err, clients.ErrBackendUnavailable) {
			s.logger.WithFields(fields).Warn("Parking lookup skipped, backend circuit open")
		} else {
			s.logger.WithFields(fields).WithError(err).Warn("Parking lookup failed")
		}
		result.Alert = spotsUnavailableAlert
		return result
	}

	s.count("ok")
	result.Spots = spots
	return result
}

// AvailableSpots returns the spots with status AVAILABLE
func (s *ParkingService) AvailableSpots(ctx context.Context, propertyID string) ([]models.ParkingSpot, error) {
	if strings.TrimSpace(propertyID) == "" {
		return []models.ParkingSpot{}, nil
	}
	spots, err := s.backend.AvailableParkingSpots(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	available := make([]models.ParkingSpot, 0, len(spots))
	for _, spot := range spots {
		if spot.Status == models.ParkingSpotAvailable {
			available = append(available, spot)
		}
	}
	return available, nil
}

func (s *ParkingService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.ParkingLookups.WithLabelValues(outcome).Inc()
	}
}
