package pg

import (
	"context"
	"database/sql"

	"garantias.org/internal/audit"
)

func (t *pgTx) AppendAudit(ctx context.Context, e audit.Entry) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into audit_log (id, actor_id, action, table_name, record_id, old_values, new_values,
			ip_address, user_agent, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, e.ActorID, string(e.Action), e.TableName, nullString(e.RecordID),
		jsonArg(e.OldValues), jsonArg(e.NewValues),
		nullString(e.ClientAddress), nullString(e.ClientAgent), e.CreatedAt)
	return translate(err)
}

func (s *Store) RecentAudit(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, actor_id, action, table_name, record_id, old_values, new_values,
			ip_address, user_agent, created_at
		from audit_log
		order by created_at desc, id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e                        audit.Entry
			action                   string
			recordID, address, agent sql.NullString
			oldValues, newValues     []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &action, &e.TableName, &recordID, &oldValues, &newValues,
			&address, &agent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		e.RecordID = recordID.String
		e.ClientAddress = address.String
		e.ClientAgent = agent.String
		if len(oldValues) > 0 {
			e.OldValues = oldValues
		}
		if len(newValues) > 0 {
			e.NewValues = newValues
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// jsonArg passes a snapshot as text so the server casts it to jsonb; nil becomes NULL.
func jsonArg(doc []byte) any {
	if len(doc) == 0 {
		return nil
	}
	return string(doc)
}
