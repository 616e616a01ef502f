// Package repository holds the MySQL backed seat ledger and booking ledger.
// Driver level errors are translated here into the model sentinels so that
// the layers above can match them with errors.Is.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

// notFound maps sql.ErrNoRows onto model.ErrNotFound and wraps anything else.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, model.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}
