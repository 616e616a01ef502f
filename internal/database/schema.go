package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// The two tables belong to different components and share no foreign key:
// a booking references its event only by id.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id              VARCHAR(64)   NOT NULL PRIMARY KEY,
		title           VARCHAR(255)  NOT NULL,
		venue           VARCHAR(255)  NOT NULL DEFAULT '',
		event_date      DATE          NOT NULL,
		event_time      VARCHAR(16)   NOT NULL DEFAULT '',
		price           DECIMAL(10,2) NOT NULL DEFAULT 0,
		capacity        INT           NOT NULL,
		available_seats INT           NOT NULL,
		status          VARCHAR(16)   NOT NULL DEFAULT 'upcoming',
		created_at      DATETIME(6)   NOT NULL,
		updated_at      DATETIME(6)   NOT NULL,
		CONSTRAINT chk_events_capacity CHECK (capacity > 0),
		CONSTRAINT chk_events_price CHECK (price >= 0),
		CONSTRAINT chk_events_seats CHECK (available_seats BETWEEN 0 AND capacity)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                CHAR(36)      NOT NULL PRIMARY KEY,
		seq               BIGINT        NOT NULL AUTO_INCREMENT UNIQUE,
		reference         VARCHAR(40)   NOT NULL,
		user_id           VARCHAR(64)   NOT NULL,
		user_name         VARCHAR(255)  NOT NULL DEFAULT '',
		user_email        VARCHAR(255)  NOT NULL DEFAULT '',
		event_id          VARCHAR(64)   NOT NULL,
		event_title       VARCHAR(255)  NOT NULL DEFAULT '',
		event_date        DATE          NOT NULL,
		event_venue       VARCHAR(255)  NOT NULL DEFAULT '',
		event_time        VARCHAR(16)   NOT NULL DEFAULT '',
		number_of_tickets INT           NOT NULL,
		price_per_ticket  DECIMAL(10,2) NOT NULL,
		payment_method    VARCHAR(16)   NOT NULL DEFAULT 'credit_card',
		transaction_id    VARCHAR(64)   NULL,
		payment_status    VARCHAR(16)   NOT NULL,
		booking_status    VARCHAR(16)   NOT NULL,
		created_at        DATETIME(6)   NOT NULL,
		updated_at        DATETIME(6)   NOT NULL,
		UNIQUE KEY uq_bookings_reference (reference),
		KEY idx_bookings_event_status (event_id, booking_status, created_at, seq),
		KEY idx_bookings_user (user_id, created_at),
		CONSTRAINT chk_bookings_tickets CHECK (number_of_tickets BETWEEN 1 AND 10),
		CONSTRAINT chk_bookings_price CHECK (price_per_ticket >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables when they do not exist yet.  The driver is
// opened without multiStatements, so each statement runs on its own.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
