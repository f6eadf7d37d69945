package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"accountsvc/internal/account"
)

type auditStore struct {
	u *unitOfWork
}

var _ account.AuditStore = (*auditStore)(nil)

// Append inserts one immutable entry. The table has no update or delete
// path.
func (r *auditStore) Append(ctx context.Context, entry *account.AuditLog) error {
	metaJSON := []byte("{}")
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metaJSON = data
	}
	_, err := r.u.q().ExecContext(ctx, `
		insert into audit_logs (id, actor_user_id, target_user_id, action, reason, metadata, created_at, correlation_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.ActorUserID, nullIfEmpty(entry.TargetUserID), string(entry.Action),
		nullIfEmpty(entry.Reason), metaJSON, entry.CreatedAt, entry.CorrelationID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return account.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *auditStore) ListByTarget(ctx context.Context, targetUserID string, page, pageSize int) ([]account.AuditLog, int, error) {
	return r.list(ctx, "target_user_id", targetUserID, page, pageSize)
}

func (r *auditStore) ListByActor(ctx context.Context, actorUserID string, page, pageSize int) ([]account.AuditLog, int, error) {
	return r.list(ctx, "actor_user_id", actorUserID, page, pageSize)
}

func (r *auditStore) list(ctx context.Context, column, userID string, page, pageSize int) ([]account.AuditLog, int, error) {
	var total int
	if err := r.u.q().QueryRowContext(ctx,
		`select count(*) from audit_logs where `+column+` = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	rows, err := r.u.q().QueryContext(ctx, `
		select id, actor_user_id, coalesce(target_user_id, ''), action, coalesce(reason, ''), metadata, created_at, correlation_id
		from audit_logs
		where `+column+` = $1
		order by created_at desc, id desc
		limit $2 offset $3
	`, userID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []account.AuditLog
	for rows.Next() {
		var (
			entry   account.AuditLog
			action  string
			rawMeta []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorUserID, &entry.TargetUserID, &action,
			&entry.Reason, &rawMeta, &entry.CreatedAt, &entry.CorrelationID); err != nil {
			return nil, 0, err
		}
		entry.Action = account.AuditAction(action)
		if len(rawMeta) > 0 {
			meta := map[string]string{}
			if err := json.Unmarshal(rawMeta, &meta); err != nil {
				return nil, 0, fmt.Errorf("decode audit metadata: %w", err)
			}
			if len(meta) > 0 {
				entry.Metadata = meta
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
