package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/models"
)

const rideColumns = `id, rider_id, operator_id, pickup, destination, vehicle_class, fare, code, status, distance_m, duration_s, created_at, updated_at`

// PostgresRideStore persists rides in a single rides table. The
// acceptance race is settled by the database: the UPDATE carries the
// status precondition in its WHERE clause, so of two concurrent
// acceptors exactly one sees a row.
type PostgresRideStore struct {
	db *sql.DB
}

func NewPostgresRideStore(dsn string) (*PostgresRideStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresRideStore{db: db}, nil
}

func (p *PostgresRideStore) CreateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO rides(`+rideColumns+`)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.RiderID, nullable(r.OperatorID), r.Pickup, r.Destination,
		string(r.Class), r.Fare, r.Code, string(r.Status),
		r.DistanceM, r.DurationS, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresRideStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

func (p *PostgresRideStore) AcceptRide(ctx context.Context, id, operatorID string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`UPDATE rides SET operator_id = $1, status = $2, updated_at = $3
		 WHERE id = $4 AND status = $5
		 RETURNING `+rideColumns,
		operatorID, string(models.StatusAccepted), time.Now(), id, string(models.StatusPending))
	return scanRide(row)
}

func (p *PostgresRideStore) TransitionRide(ctx context.Context, id string, from, to models.RideStatus) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`UPDATE rides SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4
		 RETURNING `+rideColumns,
		string(to), time.Now(), id, string(from))
	return scanRide(row)
}

func scanRide(row *sql.Row) (*models.Ride, error) {
	var r models.Ride
	var operator sql.NullString
	var class, status string
	err := row.Scan(&r.ID, &r.RiderID, &operator, &r.Pickup, &r.Destination,
		&class, &r.Fare, &r.Code, &status,
		&r.DistanceM, &r.DurationS, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.OperatorID = operator.String
	r.Class = models.VehicleClass(class)
	r.Status = models.RideStatus(status)
	return &r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
