// README: Ride repository backed by PostgreSQL for server-side embeddings.
package ride

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridecore/internal/types"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (s *PostgresRepository) Create(ctx context.Context, r *Ride) error {
	active, err := s.hasActiveByRider(ctx, r.RiderID)
	if err != nil {
		return err
	}
	if active {
		return ErrRideConflict
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO rides (
			id, rider_id, driver_id, status, status_version,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			fare, fare_currency, fare_estimated,
			distance_km, duration_min, payment_method, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16
		)`,
		string(r.ID),
		string(r.RiderID),
		idPtr(r.DriverID),
		string(r.Status),
		r.StatusVersion,
		r.Pickup.Lat, r.Pickup.Lng,
		r.Destination.Lat, r.Destination.Lng,
		r.Fare.Amount, r.Fare.Currency, r.FareEstimated,
		r.DistanceKm, r.DurationMin,
		r.PaymentMethod,
		r.CreatedAt,
	)
	return err
}

func (s *PostgresRepository) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rider_id, driver_id, status, status_version,
		       pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		       fare, fare_currency, fare_estimated,
		       distance_km, duration_min, payment_method,
		       created_at, started_at, completed_at, cancelled_at
		FROM rides
		WHERE id = $1`, string(id),
	)
	return scanRide(row)
}

func (s *PostgresRepository) ActiveByRider(ctx context.Context, riderID types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rider_id, driver_id, status, status_version,
		       pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		       fare, fare_currency, fare_estimated,
		       distance_km, duration_min, payment_method,
		       created_at, started_at, completed_at, cancelled_at
		FROM rides
		WHERE rider_id = $1
		  AND status NOT IN ('completed','cancelled','paid')`, string(riderID),
	)
	return scanRide(row)
}

func (s *PostgresRepository) Update(ctx context.Context, r *Ride) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = $2,
		    payment_method = $3,
		    started_at = $4,
		    completed_at = $5,
		    cancelled_at = $6
		WHERE id = $7 AND status_version = $8`,
		string(r.Status),
		idPtr(r.DriverID),
		r.PaymentMethod,
		r.StartedAt,
		r.CompletedAt,
		r.CancelledAt,
		string(r.ID),
		r.StatusVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	r.StatusVersion++
	return nil
}

func (s *PostgresRepository) Rekey(ctx context.Context, oldID, newID types.ID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE rides SET id = $1 WHERE id = $2`, string(newID), string(oldID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresRepository) ListActive(ctx context.Context) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, rider_id, driver_id, status, status_version,
		       pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		       fare, fare_currency, fare_estimated,
		       distance_km, duration_min, payment_method,
		       created_at, started_at, completed_at, cancelled_at
		FROM rides
		WHERE status NOT IN ('completed','cancelled','paid')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresRepository) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_state_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *PostgresRepository) hasActiveByRider(ctx context.Context, riderID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE rider_id = $1
			  AND status NOT IN ('completed','cancelled','paid')
		)`, string(riderID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*Ride, error) {
	var r Ride
	var driverID, paymentMethod sql.NullString
	var startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.RiderID, &driverID, &r.Status, &r.StatusVersion,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.Destination.Lat, &r.Destination.Lng,
		&r.Fare.Amount, &r.Fare.Currency, &r.FareEstimated,
		&r.DistanceKm, &r.DurationMin, &paymentMethod,
		&r.CreatedAt, &startedAt, &completedAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		r.DriverID = &d
	}
	if paymentMethod.Valid {
		r.PaymentMethod = &paymentMethod.String
	}
	r.StartedAt = timePtr(startedAt)
	r.CompletedAt = timePtr(completedAt)
	r.CancelledAt = timePtr(cancelledAt)
	return &r, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
