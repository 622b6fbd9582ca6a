package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"garantias.org/internal/apperr"
	"garantias.org/internal/auth"
	"garantias.org/internal/query"
)

const (
	// MaxLimit caps how many recent entries a single listing reads.
	MaxLimit = 500
	// DeletedUser is the display name for entries whose actor no longer exists.
	DeletedUser = "deleted user"
)

// Reader returns the most recent entries, newest first.
type Reader interface {
	RecentAudit(ctx context.Context, limit int) ([]Entry, error)
}

// ActorView is the actor of an entry as resolved at read time.
type ActorView struct {
	ID       string      `json:"id"`
	FullName string      `json:"full_name"`
	Email    string      `json:"email,omitempty"`
	Role     auth.Role   `json:"role,omitempty"`
	Region   auth.Region `json:"region,omitempty"`
	Found    bool        `json:"found"`
}

// View is an entry joined with its resolved actor.
type View struct {
	Entry
	Actor ActorView `json:"actor"`
}

// Filter narrows an audit listing. Zero fields match everything.
type Filter struct {
	Search    string
	Action    Action
	TableName string
	Dates     query.DateRange
	Limit     int
}

// Service serves the audit log.
type Service struct {
	reader    Reader
	directory auth.Directory
	logger    *zap.Logger
}

func NewService(reader Reader, directory auth.Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reader: reader, directory: directory, logger: logger.Named("audit-service")}
}

// List reads the most recent entries (at most MaxLimit), resolves their actors against the
// current directory and applies f.
func (s *Service) List(ctx context.Context, f Filter) ([]View, error) {
	if _, ok := auth.ActorFromContext(ctx); !ok {
		return nil, apperr.ErrUnauthenticated
	}
	limit := f.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	if f.Action != "" && !f.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown audit action %q", apperr.ErrValidation, f.Action)
	}

	entries, err := s.reader.RecentAudit(ctx, limit)
	if err != nil {
		return nil, apperr.Storage("list audit entries", err)
	}
	views, err := s.resolve(ctx, entries)
	if err != nil {
		return nil, err
	}

	return query.Apply(views,
		query.Text(f.Search, func(v View) []string {
			return []string{v.Actor.FullName, v.Actor.Email, string(v.Action), v.TableName}
		}),
		query.Equal(f.Action, func(v View) Action { return v.Action }),
		query.Equal(strings.TrimSpace(f.TableName), func(v View) string { return v.TableName }),
		query.Within(f.Dates, func(v View) time.Time { return v.CreatedAt }),
	), nil
}

func (s *Service) resolve(ctx context.Context, entries []Entry) ([]View, error) {
	seen := make(map[string]struct{}, len(entries))
	actorIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ActorID]; ok || e.ActorID == "" {
			continue
		}
		seen[e.ActorID] = struct{}{}
		actorIDs = append(actorIDs, e.ActorID)
	}

	profiles := map[string]auth.Profile{}
	if len(actorIDs) > 0 {
		var err error
		profiles, err = s.directory.Profiles(ctx, actorIDs)
		if err != nil {
			return nil, apperr.Storage("resolve audit actors", err)
		}
	}

	views := make([]View, len(entries))
	missing := 0
	for i, e := range entries {
		v := View{Entry: e, Actor: ActorView{ID: e.ActorID, FullName: DeletedUser}}
		if p, ok := profiles[e.ActorID]; ok {
			v.Actor = ActorView{
				ID:       p.UserID,
				FullName: p.FullName,
				Email:    p.Email,
				Role:     p.Role,
				Region:   p.Region,
				Found:    true,
			}
		} else {
			missing++
		}
		views[i] = v
	}
	if missing > 0 {
		s.logger.Debug("audit entries with unresolved actors", zap.Int("count", missing))
	}
	return views, nil
}
