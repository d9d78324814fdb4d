// README: Driver self-service updates (availability, position).
package driver

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"haulr/internal/logger"
	"haulr/internal/types"
)

// PositionIndex is the geo index kept in sync with driver positions.
type PositionIndex interface {
	SetDriverPosition(ctx context.Context, id types.ID, pos types.Coordinate) error
	RemoveDriver(ctx context.Context, id types.ID) error
}

type Repository interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	UpdateStatus(ctx context.Context, id types.ID, status Status) error
	UpdateLocation(ctx context.Context, id types.ID, pos types.Coordinate) error
}

type Service struct {
	store    Repository
	index    PositionIndex
	validate *validator.Validate
	log      *zap.Logger
}

// NewService wires the driver service. index may be nil when no geo index is configured.
func NewService(store Repository, index PositionIndex, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		index:    index,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

type UpdateLocationCommand struct {
	DriverID types.ID
	Position types.Coordinate
}

type SetAvailabilityCommand struct {
	DriverID types.ID
	Status   Status
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) UpdateLocation(ctx context.Context, cmd UpdateLocationCommand) error {
	if cmd.DriverID == "" {
		return fmt.Errorf("%w: missing driver id", ErrNotFound)
	}
	if err := s.validate.Struct(cmd.Position); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	if err := s.store.UpdateLocation(ctx, cmd.DriverID, cmd.Position); err != nil {
		return err
	}
	if s.index == nil {
		return nil
	}
	d, err := s.store.Get(ctx, cmd.DriverID)
	if err != nil {
		return err
	}
	// Offline drivers stay out of the index until they come back.
	if d.Status == StatusOffline {
		return nil
	}
	if err := s.index.SetDriverPosition(ctx, cmd.DriverID, cmd.Position); err != nil {
		logger.FromContext(ctx, s.log).Warn("geo index update failed",
			zap.String("driver_id", cmd.DriverID.String()), zap.Error(err))
	}
	return nil
}

func (s *Service) SetAvailability(ctx context.Context, cmd SetAvailabilityCommand) (*Driver, error) {
	if !cmd.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.store.UpdateStatus(ctx, cmd.DriverID, cmd.Status); err != nil {
		return nil, err
	}
	d, err := s.store.Get(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if s.index != nil {
		var ierr error
		switch {
		case cmd.Status == StatusOffline:
			ierr = s.index.RemoveDriver(ctx, d.ID)
		case d.Location != nil:
			ierr = s.index.SetDriverPosition(ctx, d.ID, *d.Location)
		}
		if ierr != nil {
			logger.FromContext(ctx, s.log).Warn("geo index sync failed",
				zap.String("driver_id", d.ID.String()), zap.Error(ierr))
		}
	}
	logger.FromContext(ctx, s.log).Info("driver availability changed",
		zap.String("driver_id", d.ID.String()), zap.String("status", string(d.Status)))
	return d, nil
}
