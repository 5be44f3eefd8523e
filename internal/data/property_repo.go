package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	apperrors "github.com/siqueira-campos/imoveis-jobs/internal/errors"
	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// PropertyRepo provides read access to property listings. The listing
// lifecycle lives in the web application; the job service only reads rows to
// render spec sheets.
type PropertyRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewPropertyRepo creates a new PropertyRepo instance.
func NewPropertyRepo(db *sql.DB, logger *slog.Logger) *PropertyRepo {
	return &PropertyRepo{DB: db, logger: logger}
}

const propertyColumns = `
  id,
  title,
  description,
  address,
  district,
  city,
  postal_code,
  kind,
  bedrooms,
  suites,
  parking_spots,
  area_m2,
  price,
  status,
  created_at,
  updated_at
`

// GetByID retrieves a property by its ID.
func (r *PropertyRepo) GetByID(ctx context.Context, id string) (*model.Property, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE id = $1
	`, id)

	var p model.Property
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Address,
		&p.District,
		&p.City,
		&p.PostalCode,
		&p.Kind,
		&p.Bedrooms,
		&p.Suites,
		&p.ParkingSpots,
		&p.AreaM2,
		&p.Price,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if mapped := apperrors.MapDBError(err); apperrors.IsNotFound(mapped) {
			return nil, mapped
		}
		return nil, fmt.Errorf("get property: %w", apperrors.MapDBError(err))
	}

	return &p, nil
}
