package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"garantias.org/internal/apperr"
	"garantias.org/internal/auth"
)

const profileColumns = `user_id, full_name, email, role, region, is_active`

func scanProfile(row rowScanner) (auth.Profile, error) {
	var (
		p      auth.Profile
		role   string
		region sql.NullString
	)
	if err := row.Scan(&p.UserID, &p.FullName, &p.Email, &role, &region, &p.Active); err != nil {
		return auth.Profile{}, err
	}
	p.Role = auth.Role(role)
	if parsed, err := auth.ParseRole(role); err == nil {
		p.Role = parsed
	}
	if region.Valid {
		p.Region = auth.Region(region.String)
		if parsed, err := auth.ParseRegion(region.String); err == nil {
			p.Region = parsed
		}
	}
	return p, nil
}

func (s *Store) Profile(ctx context.Context, userID string) (auth.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, `select `+profileColumns+` from profiles where user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Profile{}, fmt.Errorf("%w: profile %s", apperr.ErrNotFound, userID)
	}
	return p, err
}

func (s *Store) Profiles(ctx context.Context, userIDs []string) (map[string]auth.Profile, error) {
	out := make(map[string]auth.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+profileColumns+` from profiles where user_id in (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}
