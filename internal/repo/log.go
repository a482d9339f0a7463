package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/logsink/internal/models"
)

const logColumns = `id, domain, ip_address, service_name, message, severity, timestamp`

// ========================
// REPOSITORY STRUCT
// ========================

type LogRepo struct {
	DB *sql.DB
}

func NewLogRepo(db *sql.DB) *LogRepo {
	return &LogRepo{DB: db}
}

// ========================
// CREATE LOG
// ========================

// Create inserts a record; id and timestamp are assigned by the database.
func (r *LogRepo) Create(ctx context.Context, in models.LogInput) (models.LogRecord, error) {
	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO logs (domain, ip_address, service_name, message, severity)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+logColumns,
		in.Domain, in.IPAddress, in.ServiceName, in.Message, in.Severity,
	)
	return scanLog(row)
}

// ========================
// GET LOG BY ID
// ========================

func (r *LogRepo) GetByID(ctx context.Context, id int64) (models.LogRecord, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM logs WHERE id = $1`,
		id,
	)
	rec, err := scanLog(row)
	return rec, notFound(err)
}

// ========================
// LIST LOGS WITH PAGINATION
// ========================

func (r *LogRepo) List(ctx context.Context, limit, offset int) ([]models.LogRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+logColumns+` FROM logs ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return collectLogs(rows)
}

// ========================
// LIST LOGS BY SEVERITY
// ========================

func (r *LogRepo) ListBySeverity(ctx context.Context, severity string, limit, offset int) ([]models.LogRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+logColumns+` FROM logs WHERE severity = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		severity, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return collectLogs(rows)
}

// ========================
// UPDATE LOG BY ID
// ========================

// Update replaces every client-supplied field. The timestamp is left as created.
func (r *LogRepo) Update(ctx context.Context, id int64, in models.LogInput) (models.LogRecord, error) {
	row := r.DB.QueryRowContext(ctx,
		`UPDATE logs
		 SET domain = $1, ip_address = $2, service_name = $3, message = $4, severity = $5
		 WHERE id = $6
		 RETURNING `+logColumns,
		in.Domain, in.IPAddress, in.ServiceName, in.Message, in.Severity, id,
	)
	rec, err := scanLog(row)
	return rec, notFound(err)
}

// ========================
// DELETE LOG BY ID
// ========================

func (r *LogRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM logs WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ========================
// COUNT LOGS
// ========================

func (r *LogRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs`).Scan(&n)
	return n, err
}

func scanLog(row *sql.Row) (models.LogRecord, error) {
	var rec models.LogRecord
	err := row.Scan(
		&rec.ID,
		&rec.Domain,
		&rec.IPAddress,
		&rec.ServiceName,
		&rec.Message,
		&rec.Severity,
		&rec.Timestamp,
	)
	return rec, err
}

func collectLogs(rows *sql.Rows) ([]models.LogRecord, error) {
	defer rows.Close()

	logs := []models.LogRecord{}
	for rows.Next() {
		var rec models.LogRecord
		if err := rows.Scan(&rec.ID, &rec.Domain, &rec.IPAddress, &rec.ServiceName, &rec.Message, &rec.Severity, &rec.Timestamp); err != nil {
			return nil, err
		}
		logs = append(logs, rec)
	}
	return logs, rows.Err()
}
