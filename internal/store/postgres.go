package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"antroute/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every *.sql file in dir in lexical order. Files are
// expected to be idempotent (CREATE ... IF NOT EXISTS).
func (p *Postgres) MigrateDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

const runColumns = `id, name, status, algorithm, instance, vertex_count, seed, params, cost, route_count, routes,
	elapsed_ms, avg_utilization, optimal_cost, gap_percent, error, host, callback_url, callback_secret, created_at, completed_at`

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	params, routes, host, err := runJSON(run)
	if err != nil {
		return model.Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		run.ID, nullIfEmpty(run.Name), run.Status, run.Algorithm, run.Instance, run.VertexCount, run.Seed, params,
		run.Cost, run.RouteCount, routes, run.ElapsedMs, run.AvgUtilization, run.OptimalCost, run.GapPercent,
		nullIfEmpty(run.Error), host, nullIfEmpty(run.CallbackURL), nullIfEmpty(run.CallbackSecret), run.CreatedAt, run.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Run{}, fmt.Errorf("run %s: %w", run.ID, ErrConflict)
		}
		return model.Run{}, err
	}
	return run, nil
}

func (p *Postgres) CompleteRun(ctx context.Context, run model.Run) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	params, routes, host, err := runJSON(run)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, params=$3, cost=$4, route_count=$5, routes=$6,
		elapsed_ms=$7, avg_utilization=$8, gap_percent=$9, error=$10, host=$11, completed_at=$12 WHERE id=$1`,
		run.ID, run.Status, params, run.Cost, run.RouteCount, routes, run.ElapsedMs, run.AvgUtilization,
		run.GapPercent, nullIfEmpty(run.Error), host, run.CompletedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM runs WHERE id=$1)`, cursor).Scan(&exists); err != nil {
			return nil, "", err
		}
		if !exists {
			return nil, "", fmt.Errorf("cursor %q: %w", cursor, ErrBadCursor)
		}
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
			WHERE (created_at, id) < (SELECT created_at, id FROM runs WHERE id=$1)
			ORDER BY created_at DESC, id DESC LIMIT $2`, cursor, limit+1)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT $1`, limit+1)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (p *Postgres) SaveProgress(ctx context.Context, runID string, points []model.ProgressPoint) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM runs WHERE id=$1)`, runID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_progress WHERE run_id=$1`, runID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_progress (run_id, iteration, elapsed_ms, best_cost, best_routes) VALUES ($1,$2,$3,$4,$5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, pt := range points {
		if _, err := stmt.ExecContext(ctx, runID, pt.Iteration, pt.ElapsedMs, pt.BestCost, pt.BestRoutes); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListProgress(ctx context.Context, runID string) ([]model.ProgressPoint, error) {
	if _, err := p.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT iteration, elapsed_ms, best_cost, best_routes FROM run_progress WHERE run_id=$1 ORDER BY iteration`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ProgressPoint{}
	for rows.Next() {
		var pt model.ProgressPoint
		if err := rows.Scan(&pt.Iteration, &pt.ElapsedMs, &pt.BestCost, &pt.BestRoutes); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (p *Postgres) EnqueueDelivery(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	err := p.db.QueryRowContext(ctx, `INSERT INTO webhook_deliveries (id, run_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now(),$7)
		ON CONFLICT (run_id, event_type, url, dedup_key) DO UPDATE SET updated_at=now()
		RETURNING id::text`, id, runID, eventType, url, nullIfEmpty(secret), payload, dedupKey(payload)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+deliveryColumns+`
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}

func (p *Postgres) MarkDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', last_error=NULL, delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
		return err
	}
	if nextAttemptAt == nil {
		t := time.Now().Add(time.Minute)
		nextAttemptAt = &t
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListDeliveries(ctx context.Context, runID string) ([]Delivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE run_id=$1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}

const deliveryColumns = `id::text, run_id, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0)`

func scanDeliveries(rows *sql.Rows) ([]Delivery, error) {
	defer rows.Close()
	out := []Delivery{}
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.RunID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts,
			&d.NextAttemptAt, &d.LastError, &d.ResponseCode, &d.LatencyMs); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var (
		r                          model.Run
		name, errMsg, cbURL, cbSec sql.NullString
		params, routes, host       []byte
		optimal, gap               sql.NullFloat64
		completed                  sql.NullTime
	)
	if err := s.Scan(&r.ID, &name, &r.Status, &r.Algorithm, &r.Instance, &r.VertexCount, &r.Seed, &params,
		&r.Cost, &r.RouteCount, &routes, &r.ElapsedMs, &r.AvgUtilization, &optimal, &gap, &errMsg, &host,
		&cbURL, &cbSec, &r.CreatedAt, &completed); err != nil {
		return model.Run{}, err
	}
	r.Name, r.Error, r.CallbackURL, r.CallbackSecret = name.String, errMsg.String, cbURL.String, cbSec.String
	if optimal.Valid {
		r.OptimalCost = &optimal.Float64
	}
	if gap.Valid {
		r.GapPercent = &gap.Float64
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	for _, f := range []struct {
		raw  []byte
		dest any
	}{{params, &r.Params}, {routes, &r.Routes}, {host, &r.Host}} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return model.Run{}, fmt.Errorf("decode run %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func runJSON(run model.Run) (params, routes, host []byte, err error) {
	if params, err = json.Marshal(run.Params); err != nil {
		return
	}
	if run.Routes != nil {
		if routes, err = json.Marshal(run.Routes); err != nil {
			return
		}
	}
	if run.Host != nil {
		host, err = json.Marshal(run.Host)
	}
	return
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
