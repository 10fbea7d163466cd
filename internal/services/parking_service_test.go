package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/models"
)

type MockParkingBackend struct {
	mock.Mock
}

func (m *MockParkingBackend) AvailableParkingSpots(ctx context.Context, propertyID string) ([]models.ParkingSpot, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ParkingSpot), args.Error(1)
}

func newParkingService(backend ParkingBackend) *ParkingService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewParkingService(backend, nil, logger)
}

func TestParkingLookup_EmptyPropertyReturnsEmptyList(t *testing.T) {
	backend := &MockParkingBackend{}
	svc := newParkingService(backend)

	result := svc.Lookup(context.Background(), "  ")
	assert.NotNil(t, result.Spots)
	assert.Empty(t, result.Spots)
	assert.Empty(t, result.Alert)
	backend.AssertNotCalled(t, "AvailableParkingSpots", mock.Anything, mock.Anything)
}

func TestParkingLookup_ExcludesUnavailableSpots(t *testing.T) {
	backend := &MockParkingBackend{}
	backend.On("AvailableParkingSpots", mock.Anything, "prop-1").Return([]models.ParkingSpot{
		{ID: "s1", SpotNumber: "B1-01", Status: models.ParkingSpotAvailable, MonthlyFee: 200},
		{ID: "s2", SpotNumber: "B1-02", Status: models.ParkingSpotAssigned},
		{ID: "s3", SpotNumber: "B1-03", Status: models.ParkingSpotUnderMaintenance},
	}, nil)
	svc := newParkingService(backend)

	result := svc.Lookup(context.Background(), "prop-1")
	require.Len(t, result.Spots, 1)
	assert.Equal(t, "s1", result.Spots[0].ID)
	assert.Empty(t, result.Alert)
}

func TestParkingLookup_FailureGivesAlert(t *testing.T) {
	for _, backendErr := range []error{clients.ErrBackendUnavailable, errors.New("timeout")} {
		backend := &MockParkingBackend{}
		backend.On("AvailableParkingSpots", mock.Anything, "prop-1").Return(nil, backendErr)
		svc := newParkingService(backend)

		result := svc.Lookup(context.Background(), "prop-1")
		assert.Empty(t, result.Spots)
		assert.Equal(t, spotsUnavailableAlert, result.Alert)

		_, err := svc.AvailableSpots(context.Background(), "prop-1")
		assert.ErrorIs(t, err, backendErr)
	}
}
