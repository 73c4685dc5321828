package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type scanRepoPG struct {
	pool *pgxpool.Pool
}

func NewScanRepo(pool *pgxpool.Pool) ScanRepository {
	return &scanRepoPG{pool: pool}
}

func (r *scanRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const scanCols = `id, code, raw_length, outcome, patient_id,
	actor_id, roles, source_ip, user_agent, request_id, recorded_at`

func (r *scanRepoPG) Insert(ctx context.Context, e *ScanEntry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO scan_audit (
			id, code, raw_length, outcome, patient_id,
			actor_id, roles, source_ip, user_agent, request_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.Code, e.RawLength, e.Outcome, e.PatientID,
		e.ActorID, e.Roles, e.SourceIP, e.UserAgent, e.RequestID,
	)
	return err
}

func (r *scanRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*ScanEntry, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Outcome != "" {
		add("outcome = $%d", filter.Outcome)
	}
	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.PatientID != nil {
		add("patient_id = $%d", *filter.PatientID)
	}
	if filter.Since != nil {
		add("recorded_at >= $%d", *filter.Since)
	}
	if filter.Until != nil {
		add("recorded_at <= $%d", *filter.Until)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM scan_audit`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+scanCols+` FROM scan_audit`+clause+
			fmt.Sprintf(` ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*ScanEntry
	for rows.Next() {
		var e ScanEntry
		if err := rows.Scan(
			&e.ID, &e.Code, &e.RawLength, &e.Outcome, &e.PatientID,
			&e.ActorID, &e.Roles, &e.SourceIP, &e.UserAgent, &e.RequestID, &e.RecordedAt,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
