package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"garantias.org/internal/apperr"
	"garantias.org/internal/auth"
	"garantias.org/internal/guarantee"
)

const guaranteeColumns = `id, policy_number, subject_id, region, guarantee_external_id, guarantee_type,
	operation_type, currency, face_value, is_active, created_by, created_at,
	deactivated_by, deactivated_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGuarantee(row rowScanner) (guarantee.Guarantee, error) {
	var (
		g             guarantee.Guarantee
		region        string
		deactivatedBy sql.NullString
		deactivatedAt sql.NullTime
	)
	err := row.Scan(&g.ID, &g.PolicyNumber, &g.SubjectID, &region, &g.ExternalID, &g.Type,
		&g.Operation, &g.Currency, &g.FaceValue, &g.IsActive, &g.CreatedBy, &g.CreatedAt,
		&deactivatedBy, &deactivatedAt, &g.UpdatedAt)
	if err != nil {
		return guarantee.Guarantee{}, err
	}
	g.Region = auth.Region(region)
	g.DeactivatedBy = deactivatedBy.String
	if deactivatedAt.Valid {
		at := deactivatedAt.Time.UTC()
		g.DeactivatedAt = &at
	}
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return g, nil
}

func (t *pgTx) Insert(ctx context.Context, g guarantee.Guarantee) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into guarantees (id, policy_number, subject_id, region, guarantee_external_id, guarantee_type,
			operation_type, currency, face_value, is_active, created_by, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, g.ID, g.PolicyNumber, g.SubjectID, string(g.Region), g.ExternalID, string(g.Type),
		string(g.Operation), string(g.Currency), g.FaceValue, g.IsActive, g.CreatedBy, g.CreatedAt, g.UpdatedAt)
	return translate(err)
}

func (t *pgTx) Lock(ctx context.Context, id string) (guarantee.Guarantee, error) {
	row := t.tx.QueryRowContext(ctx, `select `+guaranteeColumns+` from guarantees where id = $1 for update`, id)
	g, err := scanGuarantee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return guarantee.Guarantee{}, fmt.Errorf("%w: guarantee %s", apperr.ErrNotFound, id)
	}
	return g, err
}

func (t *pgTx) MarkInactive(ctx context.Context, next guarantee.Guarantee) error {
	if next.DeactivatedAt == nil {
		return fmt.Errorf("%w: deactivation time is required", apperr.ErrValidation)
	}
	res, err := t.tx.ExecContext(ctx, `
		update guarantees
		set is_active = false, deactivated_by = $2, deactivated_at = $3, updated_at = $4
		where id = $1 and is_active
	`, next.ID, next.DeactivatedBy, *next.DeactivatedAt, next.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: guarantee %s is already inactive", apperr.ErrConflict, next.ID)
	}
	return nil
}

func (s *Store) List(ctx context.Context, status guarantee.Status) ([]guarantee.Guarantee, error) {
	where := ""
	switch status {
	case guarantee.StatusActive:
		where = "where is_active"
	case guarantee.StatusInactive:
		where = "where not is_active"
	}
	rows, err := s.db.QueryContext(ctx, `select `+guaranteeColumns+` from guarantees `+where+` order by created_at desc, id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guarantee.Guarantee
	for rows.Next() {
		g, err := scanGuarantee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (guarantee.Guarantee, error) {
	g, err := scanGuarantee(s.db.QueryRowContext(ctx, `select `+guaranteeColumns+` from guarantees where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return guarantee.Guarantee{}, fmt.Errorf("%w: guarantee %s", apperr.ErrNotFound, id)
	}
	return g, err
}
