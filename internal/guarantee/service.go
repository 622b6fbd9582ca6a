package guarantee

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"garantias.org/internal/apperr"
	"garantias.org/internal/audit"
	"garantias.org/internal/auth"
	"garantias.org/internal/ids"
	"garantias.org/internal/obs"
	"garantias.org/internal/policy"
	"garantias.org/internal/query"
)

const (
	EventCreated     = "guarantee.created"
	EventDeactivated = "guarantee.deactivated"
)

// Service coordinates policy checks, state transitions and audit recording.
type Service struct {
	store     Store
	recorder  *audit.Recorder
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithPublisher registers a sink for committed events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		recorder: recorder,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("guarantee-service")
	return s
}

// Create validates f, checks the actor may create in f.Region, and stores the guarantee
// together with its INSERT audit entry.
func (s *Service) Create(ctx context.Context, f Fields) (g Guarantee, err error) {
	defer func() { obs.ObserveMutation("create", apperr.Kind(err)) }()

	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return Guarantee{}, apperr.ErrUnauthenticated
	}
	draft, err := f.Validate()
	if err != nil {
		return Guarantee{}, err
	}
	if err := s.authorize(actor, policy.CreateGuarantee(draft.Region)); err != nil {
		return Guarantee{}, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	draft.ID = ids.NewAt(now)
	draft.IsActive = true
	draft.CreatedBy = actor.ID
	draft.CreatedAt = now
	draft.UpdatedAt = now

	var entry audit.Entry
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Insert(ctx, draft); err != nil {
			return apperr.Storage("insert guarantee", err)
		}
		var err error
		entry, err = s.recorder.Record(ctx, tx, audit.Change{
			Action:    audit.ActionInsert,
			TableName: Table,
			RecordID:  draft.ID,
			New:       draft,
		})
		return err
	})
	if err != nil {
		s.logger.Warn("create guarantee failed", zap.String("actor_id", actor.ID), zap.Error(err))
		return Guarantee{}, err
	}

	s.committed(ctx, EventCreated, draft, entry)
	return draft, nil
}

// Deactivate performs the one-way transition of id to inactive. The policy is evaluated
// against the stored region of the record.
func (s *Service) Deactivate(ctx context.Context, id string) (g Guarantee, err error) {
	defer func() { obs.ObserveMutation("deactivate", apperr.Kind(err)) }()

	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return Guarantee{}, apperr.ErrUnauthenticated
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Guarantee{}, fmt.Errorf("%w: guarantee id is required", apperr.ErrValidation)
	}

	var (
		updated Guarantee
		entry   audit.Entry
	)
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return apperr.Storage("load guarantee", err)
		}
		if !current.IsActive {
			return fmt.Errorf("%w: guarantee %s is already inactive", apperr.ErrConflict, id)
		}
		if err := s.authorize(actor, policy.DeactivateGuarantee(current.Region)); err != nil {
			return err
		}
		next, err := current.Deactivate(actor.ID, s.now().UTC().Truncate(time.Microsecond))
		if err != nil {
			return err
		}
		if err := tx.MarkInactive(ctx, next); err != nil {
			return apperr.Storage("deactivate guarantee", err)
		}
		entry, err = s.recorder.Record(ctx, tx, audit.Change{
			Action:    audit.ActionUpdate,
			TableName: Table,
			RecordID:  id,
			Old:       current,
			New:       next,
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		s.logger.Warn("deactivate guarantee failed",
			zap.String("guarantee_id", id), zap.String("actor_id", actor.ID), zap.Error(err))
		return Guarantee{}, err
	}

	s.committed(ctx, EventDeactivated, updated, entry)
	return updated, nil
}

// Get returns a single guarantee. Reads are not region-scoped.
func (s *Service) Get(ctx context.Context, id string) (Guarantee, error) {
	if _, ok := auth.ActorFromContext(ctx); !ok {
		return Guarantee{}, apperr.ErrUnauthenticated
	}
	g, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return Guarantee{}, apperr.Storage("get guarantee", err)
	}
	return g, nil
}

// Filter narrows a guarantee listing. Zero fields match everything except Status,
// which defaults to active.
type Filter struct {
	Status   Status
	Search   string
	Region   auth.Region
	Type     Type
	Currency Currency
	Dates    query.DateRange
}

// List returns guarantees matching f, newest first. Reads are not region-scoped.
func (s *Service) List(ctx context.Context, f Filter) ([]Guarantee, error) {
	if _, ok := auth.ActorFromContext(ctx); !ok {
		return nil, apperr.ErrUnauthenticated
	}
	status := f.Status
	switch status {
	case "":
		status = StatusActive
	case StatusActive, StatusInactive, StatusAll:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, f.Status)
	}

	items, err := s.store.List(ctx, status)
	if err != nil {
		return nil, apperr.Storage("list guarantees", err)
	}
	return query.Apply(items,
		query.Text(f.Search, func(g Guarantee) []string {
			return []string{g.SubjectID, g.ExternalID, g.PolicyNumber}
		}),
		query.Equal(f.Region, func(g Guarantee) auth.Region { return g.Region }),
		query.Equal(f.Type, func(g Guarantee) Type { return g.Type }),
		query.Equal(f.Currency, func(g Guarantee) Currency { return g.Currency }),
		query.Within(f.Dates, func(g Guarantee) time.Time { return g.CreatedAt }),
	), nil
}

func (s *Service) authorize(actor auth.Actor, action policy.Action) error {
	d := policy.Decide(actor, action)
	obs.ObservePolicy(action.Kind.String(), d.Allowed)
	if !d.Allowed {
		s.logger.Info("policy denied mutation",
			zap.String("actor_id", actor.ID),
			zap.String("role", string(actor.Role)),
			zap.String("action", action.Kind.String()),
			zap.String("target_region", string(action.Target)),
			zap.String("reason", d.Reason))
	}
	return d.Err()
}

func (s *Service) committed(ctx context.Context, kind string, g Guarantee, entry audit.Entry) {
	audit.LogEntry(ctx, s.logger, entry)
	if s.publisher != nil {
		s.publisher.Publish(Event{Kind: kind, Guarantee: g, ActorID: entry.ActorID})
	}
}
