// README: Delivery service implements the lifecycle: request, guarded accept,
// driver/customer transitions, payout on delivery and best-effort notifications.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"haulr/internal/infra"
	"haulr/internal/logger"
	"haulr/internal/metrics"
	"haulr/internal/modules/driver"
	"haulr/internal/modules/location"
	"haulr/internal/modules/matching"
	"haulr/internal/modules/notification"
	"haulr/internal/modules/payout"
	"haulr/internal/modules/pricing"
	"haulr/internal/modules/realtime"
	"haulr/internal/types"
)

type Repository interface {
	Create(ctx context.Context, d *Delivery) error
	Get(ctx context.Context, id types.ID) (*Delivery, error)
	ConditionalUpdateStatus(ctx context.Context, id types.ID, expected Status, version int, next Status, p Patch) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	SavePayout(ctx context.Context, r payout.Record) error
	ListEvents(ctx context.Context, id types.ID) ([]Event, error)
}

// DriverStore is the driver bookkeeping the lifecycle keeps in step with deliveries.
type DriverStore interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	UpdateJobCount(ctx context.Context, id types.ID, delta int) error
	RecordCompletion(ctx context.Context, id types.ID, at time.Time) error
	AddRating(ctx context.Context, id, deliveryID types.ID, rating int) (float64, error)
}

type Matcher interface {
	Rank(ctx context.Context, c matching.Criteria, limit int) ([]matching.DriverScore, error)
	Best(ctx context.Context, c matching.Criteria) (matching.DriverScore, bool, error)
	RecordOffer(ctx context.Context, deliveryID types.ID, scores []matching.DriverScore) error
}

type Quoter interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (types.Money, error)
}

type Notifier interface {
	Notify(in notification.Intent) error
}

type PayoutPublisher interface {
	Publish(ctx context.Context, r payout.Record) error
}

type Deps struct {
	Store    Repository
	Drivers  DriverStore
	Tx       infra.TxManager
	Matcher  Matcher
	Engine   *matching.Engine
	Pricing  Quoter
	Notifier Notifier
	Events   realtime.Publisher
	Billing  PayoutPublisher
	Now      func() time.Time
	Log      *zap.Logger
	// OfferCount is how many top-ranked drivers are told about a new delivery.
	OfferCount int
}

type Service struct {
	store      Repository
	drivers    DriverStore
	tx         infra.TxManager
	matcher    Matcher
	engine     *matching.Engine
	pricing    Quoter
	notifier   Notifier
	events     realtime.Publisher
	billing    PayoutPublisher
	now        func() time.Time
	log        *zap.Logger
	offerCount int
	validate   *validator.Validate
}

func NewService(d Deps) *Service {
	s := &Service{
		store:      d.Store,
		drivers:    d.Drivers,
		tx:         d.Tx,
		matcher:    d.Matcher,
		engine:     d.Engine,
		pricing:    d.Pricing,
		notifier:   d.Notifier,
		events:     d.Events,
		billing:    d.Billing,
		now:        d.Now,
		log:        d.Log,
		offerCount: d.OfferCount,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tx == nil {
		s.tx = infra.InlineTx{}
	}
	if s.engine == nil {
		s.engine = matching.NewEngine(matching.NewScorer(s.now, 0), 0)
	}
	if s.events == nil {
		s.events = realtime.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.offerCount <= 0 {
		s.offerCount = matching.DefaultLimit
	}
	return s
}

type RequestCommand struct {
	CustomerID            types.ID             `validate:"required"`
	Pickup                Place                `validate:"required"`
	Dropoff               Place                `validate:"required"`
	ItemDescription       string               `validate:"required,max=500"`
	ItemSize              pricing.ItemSize     `validate:"required,oneof=small medium large"`
	ItemWeight            ItemWeight           `validate:"required,oneof=light medium heavy"`
	MaterialType          driver.MaterialType  `validate:"required"`
	WeightKg              float64              `validate:"gte=0"`
	Urgency               matching.Urgency     `validate:"omitempty,oneof=low medium high"`
	PaymentMethod         PaymentMethod        `validate:"required,oneof=paypal eft"`
	Fee                   *types.Money         // customer quote; estimated when nil
	MaxDistanceKm         *float64             `validate:"omitempty,gt=0"`
	MinRating             *float64             `validate:"omitempty,gte=0,lte=5"`
	PreferredVehicleTypes []driver.VehicleType `validate:"dive,oneof=motorcycle car bakkie van truck"`
}

func (cmd RequestCommand) criteria() matching.Criteria {
	pickup, dropoff := cmd.Pickup.Coordinate, cmd.Dropoff.Coordinate
	return matching.Criteria{
		CustomerLocation:      &pickup,
		DeliveryLocation:      &dropoff,
		MaterialType:          cmd.MaterialType,
		WeightKg:              cmd.WeightKg,
		Urgency:               cmd.Urgency,
		MaxDistanceKm:         cmd.MaxDistanceKm,
		MinRating:             cmd.MinRating,
		PreferredVehicleTypes: cmd.PreferredVehicleTypes,
	}
}

type AcceptCommand struct {
	DeliveryID types.ID
	DriverID   types.ID
}

type TransitionCommand struct {
	DeliveryID types.ID
	Action     Action
	ActorType  ActorType
	ActorID    types.ID
	Rating     *int
	Reason     string
}

// RequestDelivery creates a pending delivery and offers it to the best-ranked
// drivers. An empty ranking is not an error.
func (s *Service) RequestDelivery(ctx context.Context, cmd RequestCommand) (*Delivery, []matching.DriverScore, error) {
	c := cmd.criteria()
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.validate.Struct(cmd); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if cmd.Fee != nil && cmd.Fee.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: fee must be positive", ErrBadRequest)
	}

	now := s.now()
	d := &Delivery{
		ID:              types.ID(uuid.NewString()),
		CustomerID:      cmd.CustomerID,
		Status:          StatusPending,
		Pickup:          cmd.Pickup,
		Dropoff:         cmd.Dropoff,
		ItemDescription: cmd.ItemDescription,
		ItemSize:        cmd.ItemSize,
		ItemWeight:      cmd.ItemWeight,
		MaterialType:    cmd.MaterialType,
		WeightKg:        cmd.WeightKg,
		Urgency:         cmd.Urgency,
		DistanceKm:      location.DistanceKm(cmd.Pickup.Coordinate, cmd.Dropoff.Coordinate),
		PaymentMethod:   cmd.PaymentMethod,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
	}
	if d.Urgency == "" {
		d.Urgency = matching.UrgencyLow
	}
	fee, err := s.fee(ctx, cmd, d.DistanceKm)
	if err != nil {
		return nil, nil, err
	}
	d.DeliveryFee = fee

	ctx = logger.With(ctx, zap.String("delivery_id", d.ID.String()))
	log := logger.FromContext(ctx, s.log)

	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, d); err != nil {
			return err
		}
		return s.store.AppendEvent(ctx, &Event{
			DeliveryID: d.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusPending,
			ActorType:  ActorCustomer,
			ActorID:    &d.CustomerID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create delivery: %w", err)
	}
	s.record("create", nil)
	s.publish(ctx, d, "delivery.created")

	if s.matcher == nil {
		return d, nil, nil
	}
	ranked, err := s.matcher.Rank(ctx, c, s.offerCount)
	if err != nil {
		// The delivery stays pending and can still be accepted or auto-assigned.
		log.Warn("ranking drivers for new delivery failed", zap.Error(err))
		return d, nil, nil
	}
	if err := s.matcher.RecordOffer(ctx, d.ID, ranked); err != nil {
		log.Warn("recording offer failed", zap.Error(err))
	}
	for _, sc := range ranked {
		s.notify(ctx, notification.Intent{
			UserID:   sc.DriverID,
			Title:    "New delivery request",
			Message:  fmt.Sprintf("%s pickup %.1f km away, estimated %s", d.MaterialType, sc.DistanceKm, sc.EstimatedCost),
			Category: notification.CategoryNewDelivery,
			Metadata: map[string]string{
				"delivery_id": d.ID.String(),
				"eta_minutes": fmt.Sprint(sc.EstimatedArrivalMinutes),
			},
		})
	}
	log.Info("delivery requested", zap.Int("offered", len(ranked)), zap.Stringer("fee", d.DeliveryFee))
	return d, ranked, nil
}

func (s *Service) fee(ctx context.Context, cmd RequestCommand, distanceKm float64) (types.Money, error) {
	if cmd.Fee != nil {
		fee := *cmd.Fee
		if fee.Currency == "" {
			fee.Currency = types.CurrencyZAR
		}
		return fee, nil
	}
	if s.pricing == nil {
		mult := cmd.Urgency.Multiplier()
		return pricing.EstimateCost(distanceKm, cmd.WeightKg, mult), nil
	}
	fee, err := s.pricing.Quote(ctx, pricing.QuoteRequest{DistanceKm: distanceKm, ItemSize: cmd.ItemSize})
	if err != nil {
		return types.Money{}, fmt.Errorf("quote delivery fee: %w", err)
	}
	return fee, nil
}

// AcceptDelivery claims a pending delivery for a driver. Exactly one of any
// number of concurrent callers succeeds; the rest get ErrDeliveryAlreadyAssigned.
func (s *Service) AcceptDelivery(ctx context.Context, cmd AcceptCommand) (*Delivery, error) {
	if cmd.DeliveryID == "" || cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	ctx = logger.With(ctx,
		zap.String("delivery_id", cmd.DeliveryID.String()),
		zap.String("driver_id", cmd.DriverID.String()),
	)

	d, err := s.store.Get(ctx, cmd.DeliveryID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPending {
		err := acceptRejection(d.Status)
		s.record(ActionAccept, err)
		return nil, err
	}

	drv, err := s.drivers.Get(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if drv.Status != driver.StatusAvailable {
		s.record(ActionAccept, ErrDriverUnavailable)
		return nil, ErrDriverUnavailable
	}

	now := s.now()
	won := false
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		ok, err := s.store.ConditionalUpdateStatus(ctx, d.ID, StatusPending, d.StatusVersion, StatusAccepted, Patch{
			DriverID: &cmd.DriverID,
			At:       now,
		})
		if err != nil || !ok {
			return err
		}
		won = true
		if err := s.drivers.UpdateJobCount(ctx, cmd.DriverID, 1); err != nil {
			return err
		}
		return s.store.AppendEvent(ctx, &Event{
			DeliveryID: d.ID,
			FromStatus: StatusPending,
			ToStatus:   StatusAccepted,
			ActorType:  ActorDriver,
			ActorID:    &cmd.DriverID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		s.record(ActionAccept, err)
		return nil, err
	}
	if !won {
		// Lost the race; report what the winner did.
		current, err := s.store.Get(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		err = acceptRejection(current.Status)
		s.record(ActionAccept, err)
		return nil, err
	}
	s.record(ActionAccept, nil)

	updated, err := s.store.Get(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, "delivery.accepted")
	s.notify(ctx, notification.Intent{
		UserID:   updated.CustomerID,
		Title:    "Driver on the way",
		Message:  fmt.Sprintf("%s accepted your delivery", drv.Name),
		Category: notification.CategoryAccepted,
		Metadata: map[string]string{"delivery_id": d.ID.String(), "driver_id": cmd.DriverID.String()},
	})
	logger.FromContext(ctx, s.log).Info("delivery accepted")
	return updated, nil
}

// acceptRejection classifies why a delivery in s cannot be accepted.
func acceptRejection(s Status) error {
	if holdsDriver(s) {
		return ErrDeliveryAlreadyAssigned
	}
	if s == StatusPending {
		return ErrConflict
	}
	return illegal(s, ActionAccept)
}

// TransitionDelivery applies a driver, customer or system action to a delivery.
// Accept is routed through AcceptDelivery.
func (s *Service) TransitionDelivery(ctx context.Context, cmd TransitionCommand) (*Delivery, error) {
	if cmd.Action == ActionAccept {
		if cmd.ActorType != ActorDriver {
			return nil, ErrActorNotPermitted
		}
		return s.AcceptDelivery(ctx, AcceptCommand{DeliveryID: cmd.DeliveryID, DriverID: cmd.ActorID})
	}
	to, ok := cmd.Action.Target()
	if !ok || cmd.DeliveryID == "" {
		return nil, fmt.Errorf("%w: unknown action %q", ErrBadRequest, cmd.Action)
	}
	ctx = logger.With(ctx,
		zap.String("delivery_id", cmd.DeliveryID.String()),
		zap.String("action", string(cmd.Action)),
	)
	log := logger.FromContext(ctx, s.log)

	d, err := s.store.Get(ctx, cmd.DeliveryID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, to) {
		err := illegal(d.Status, cmd.Action)
		s.record(cmd.Action, err)
		return nil, err
	}
	if err := authorize(d, cmd); err != nil {
		s.record(cmd.Action, err)
		return nil, err
	}

	now := s.now()
	patch := Patch{At: now}
	var record *payout.Record

	switch cmd.Action {
	case ActionRate:
		if cmd.Rating == nil || *cmd.Rating < 1 || *cmd.Rating > 5 {
			return nil, ErrInvalidRating
		}
		patch.Rating = cmd.Rating
	case ActionCancel:
		voided := PaymentVoided
		patch.PaymentStatus = &voided
		if cmd.Reason != "" {
			patch.CancelReason = &cmd.Reason
		}
	case ActionDeliver:
		r, err := s.computePayout(d, now)
		if err != nil {
			s.record(cmd.Action, err)
			log.Error("payout computation failed; delivery held in transit for reconciliation", zap.Error(err))
			s.publish(ctx, d, "delivery.payout_failed")
			return nil, err
		}
		record = &r
		queued := PaymentPayoutQueued
		patch.PaymentStatus = &queued
	}

	err = s.tx.Do(ctx, func(ctx context.Context) error {
		ok, err := s.store.ConditionalUpdateStatus(ctx, d.ID, d.Status, d.StatusVersion, to, patch)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		if err := s.applySideEffects(ctx, d, cmd, record, now); err != nil {
			return err
		}
		actorID := cmd.ActorID
		var actor *types.ID
		if actorID != "" {
			actor = &actorID
		}
		return s.store.AppendEvent(ctx, &Event{
			DeliveryID: d.ID,
			FromStatus: d.Status,
			ToStatus:   to,
			ActorType:  cmd.ActorType,
			ActorID:    actor,
			CreatedAt:  now,
		})
	})
	s.record(cmd.Action, err)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Get(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, "delivery."+string(to))
	if record != nil && s.billing != nil {
		if err := s.billing.Publish(ctx, *record); err != nil {
			// The payout row is committed; billing catches up from the table.
			log.Error("emit payout to billing failed", zap.Error(err))
		}
	}
	s.notifyTransition(ctx, d, updated, record)
	log.Info("delivery transitioned", zap.String("from", string(d.Status)), zap.String("to", string(to)))
	return updated, nil
}

func authorize(d *Delivery, cmd TransitionCommand) error {
	switch cmd.Action {
	case ActionPickup, ActionTransit, ActionDeliver:
		if cmd.ActorType == ActorDriver && d.assignedTo(cmd.ActorID) {
			return nil
		}
	case ActionRate:
		if cmd.ActorType == ActorCustomer && cmd.ActorID == d.CustomerID {
			return nil
		}
	case ActionCancel:
		if cmd.ActorType == ActorSystem {
			return nil
		}
		if cmd.ActorType == ActorCustomer && cmd.ActorID == d.CustomerID {
			return nil
		}
	}
	return ErrActorNotPermitted
}

func (s *Service) computePayout(d *Delivery, at time.Time) (payout.Record, error) {
	if d.DriverID == nil {
		return payout.Record{}, &PayoutComputationError{DeliveryID: d.ID, Fee: d.DeliveryFee, Err: errors.New("no driver assigned")}
	}
	if d.DeliveryFee.Amount <= 0 {
		return payout.Record{}, &PayoutComputationError{DeliveryID: d.ID, Fee: d.DeliveryFee, Err: errors.New("fee must be positive")}
	}
	r, err := payout.NewRecord(d.ID, *d.DriverID, d.DeliveryFee, at)
	if err != nil {
		return payout.Record{}, &PayoutComputationError{DeliveryID: d.ID, Fee: d.DeliveryFee, Err: err}
	}
	return r, nil
}

// applySideEffects runs inside the transition's transaction so driver counters
// never drift from the delivery states that justify them.
func (s *Service) applySideEffects(ctx context.Context, d *Delivery, cmd TransitionCommand, record *payout.Record, now time.Time) error {
	switch cmd.Action {
	case ActionDeliver:
		if err := s.store.SavePayout(ctx, *record); err != nil {
			return fmt.Errorf("save payout: %w", err)
		}
		return s.drivers.RecordCompletion(ctx, *d.DriverID, now)
	case ActionRate:
		mean, err := s.drivers.AddRating(ctx, *d.DriverID, d.ID, *cmd.Rating)
		if err != nil {
			return fmt.Errorf("record rating: %w", err)
		}
		logger.FromContext(ctx, s.log).Debug("driver rating recomputed", zap.Float64("rating", mean))
	case ActionCancel:
		if holdsDriver(d.Status) && d.DriverID != nil {
			return s.drivers.UpdateJobCount(ctx, *d.DriverID, -1)
		}
	}
	return nil
}

func (s *Service) notifyTransition(ctx context.Context, before, after *Delivery, record *payout.Record) {
	meta := map[string]string{"delivery_id": after.ID.String()}
	switch after.Status {
	case StatusPickedUp:
		s.notify(ctx, notification.Intent{UserID: after.CustomerID, Title: "Parcel collected",
			Message: "Your driver has picked up the item", Category: notification.CategoryPickedUp, Metadata: meta})
	case StatusInTransit:
		s.notify(ctx, notification.Intent{UserID: after.CustomerID, Title: "On the way",
			Message: "Your delivery is in transit", Category: notification.CategoryInTransit, Metadata: meta})
	case StatusDelivered:
		s.notify(ctx, notification.Intent{UserID: after.CustomerID, Title: "Delivered",
			Message: "Your delivery has arrived. Rate your driver", Category: notification.CategoryDelivered, Metadata: meta})
		if record != nil {
			s.notify(ctx, notification.Intent{UserID: record.DriverID, Title: "Payment on its way",
				Message: fmt.Sprintf("You earned %s for this delivery", record.Amount), Category: notification.CategoryPayment, Metadata: meta})
		}
	case StatusCancelled:
		s.notify(ctx, notification.Intent{UserID: after.CustomerID, Title: "Delivery cancelled",
			Message: "Your delivery was cancelled", Category: notification.CategoryCancelled, Metadata: meta})
		if before.DriverID != nil {
			s.notify(ctx, notification.Intent{UserID: *before.DriverID, Title: "Delivery cancelled",
				Message: "A delivery you accepted was cancelled", Category: notification.CategoryCancelled, Metadata: meta})
		}
	}
}

// AutoAssign picks the best available driver for a pending delivery and claims
// it on their behalf. A nil score with a nil error means nobody was eligible.
func (s *Service) AutoAssign(ctx context.Context, id types.ID) (*Delivery, *matching.DriverScore, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.Status != StatusPending {
		return nil, nil, acceptRejection(d.Status)
	}
	if s.matcher == nil {
		return d, nil, nil
	}
	best, ok, err := s.matcher.Best(ctx, d.Criteria())
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		logger.FromContext(ctx, s.log).Info("no eligible driver for auto-assign", zap.String("delivery_id", id.String()))
		return d, nil, nil
	}
	updated, err := s.AcceptDelivery(ctx, AcceptCommand{DeliveryID: id, DriverID: best.DriverID})
	if err != nil {
		return nil, nil, err
	}
	return updated, &best, nil
}

// RankDrivers scores a caller-supplied pool without touching any state.
func (s *Service) RankDrivers(c matching.Criteria, pool []driver.Driver, limit int) ([]matching.DriverScore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.engine.FindBestMatches(pool, c, limit), nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Delivery, error) {
	return s.store.Get(ctx, id)
}

// History returns the delivery's state events oldest first.
func (s *Service) History(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id)
}

func (s *Service) notify(ctx context.Context, in notification.Intent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(in); err != nil {
		logger.FromContext(ctx, s.log).Warn("notification not queued",
			zap.String("user_id", in.UserID.String()),
			zap.String("category", string(in.Category)),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, d *Delivery, eventType string) {
	err := s.events.Publish(ctx, realtime.Event{
		Type:       eventType,
		DeliveryID: d.ID,
		Status:     string(d.Status),
		DriverID:   d.DriverID,
		CustomerID: d.CustomerID,
		OccurredAt: s.now(),
	})
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("publish delivery event failed", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) record(action Action, err error) {
	result := "ok"
	var illegalErr *IllegalTransitionError
	var payoutErr *PayoutComputationError
	switch {
	case err == nil:
	case errors.Is(err, ErrDeliveryAlreadyAssigned):
		result = "already_assigned"
	case errors.As(err, &illegalErr):
		result = "illegal"
	case errors.As(err, &payoutErr):
		result = "payout_failed"
	case errors.Is(err, ErrActorNotPermitted), errors.Is(err, ErrDriverUnavailable):
		result = "rejected"
	case errors.Is(err, ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	metrics.TransitionsTotal.WithLabelValues(string(action), result).Inc()
}
