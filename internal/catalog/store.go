// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

/*
store.go - DuckDB Catalog Store

Persistence layer for rental property records. The store owns the schema,
initializes it on startup, and exposes the lookup, write, and listing
operations the upsert engine and HTTP handlers need.

String-list fields (amenities, additional images) are persisted as JSON
text so the schema stays driver-portable.
*/

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/metrics"
	"github.com/harborstay/harborstay/internal/models"
)

// ErrNotFound is returned when no property matches the lookup.
var ErrNotFound = errors.New("property not found")

// Store wraps the DuckDB connection for the property catalog.
type Store struct {
	conn *sql.DB
}

// New opens (or creates) the catalog database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}

	// Disable auto-install/auto-load of extensions to prevent hangs in
	// restricted network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("Catalog store opened")
	return s, nil
}

// initSchema creates the properties table and its sequence if absent.
func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS properties_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS properties (
			id BIGINT PRIMARY KEY DEFAULT nextval('properties_id_seq'),
			name VARCHAR NOT NULL,
			title VARCHAR NOT NULL,
			slug VARCHAR NOT NULL UNIQUE,
			description VARCHAR NOT NULL DEFAULT '',
			price DOUBLE NOT NULL DEFAULT 0,
			image_url VARCHAR NOT NULL DEFAULT '',
			additional_images VARCHAR NOT NULL DEFAULT '[]',
			address VARCHAR NOT NULL DEFAULT '',
			city VARCHAR NOT NULL DEFAULT '',
			state VARCHAR NOT NULL DEFAULT '',
			country VARCHAR NOT NULL DEFAULT '',
			location VARCHAR NOT NULL DEFAULT '',
			latitude DOUBLE NOT NULL DEFAULT 0,
			longitude DOUBLE NOT NULL DEFAULT 0,
			bedrooms INTEGER NOT NULL DEFAULT 0,
			bathrooms DOUBLE NOT NULL DEFAULT 0,
			max_guests INTEGER NOT NULL DEFAULT 0,
			capacity_guests INTEGER NOT NULL DEFAULT 0,
			capacity_bedrooms INTEGER NOT NULL DEFAULT 0,
			capacity_beds INTEGER NOT NULL DEFAULT 0,
			capacity_bathrooms DOUBLE NOT NULL DEFAULT 0,
			amenities VARCHAR NOT NULL DEFAULT '[]',
			house_rules VARCHAR NOT NULL DEFAULT '',
			check_in_time VARCHAR NOT NULL DEFAULT '',
			check_out_time VARCHAR NOT NULL DEFAULT '',
			min_nights INTEGER NOT NULL DEFAULT 1,
			max_nights INTEGER NOT NULL DEFAULT 30,
			meta_title VARCHAR NOT NULL DEFAULT '',
			meta_description VARCHAR NOT NULL DEFAULT '',
			keywords VARCHAR NOT NULL DEFAULT '',
			is_published BOOLEAN NOT NULL DEFAULT FALSE,
			published_at TIMESTAMP,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			platform_id VARCHAR NOT NULL DEFAULT '',
			platform_type VARCHAR NOT NULL DEFAULT '',
			external_id VARCHAR NOT NULL DEFAULT '',
			images_stored_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_properties_platform_id ON properties (platform_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// propertyColumns is the canonical column list shared by every SELECT.
const propertyColumns = `id, name, title, slug, description, price,
	image_url, additional_images,
	address, city, state, country, location, latitude, longitude,
	bedrooms, bathrooms, max_guests,
	capacity_guests, capacity_bedrooms, capacity_beds, capacity_bathrooms,
	amenities, house_rules, check_in_time, check_out_time, min_nights, max_nights,
	meta_title, meta_description, keywords,
	is_published, published_at, is_active,
	platform_id, platform_type, external_id, images_stored_at,
	created_at, updated_at`

// scanProperty reads one property row.
func scanProperty(row interface{ Scan(...interface{}) error }) (*models.CatalogProperty, error) {
	var p models.CatalogProperty
	var additionalImages, amenities string
	var publishedAt, imagesStoredAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.Name, &p.Title, &p.Slug, &p.Description, &p.Price,
		&p.ImageURL, &additionalImages,
		&p.Address, &p.City, &p.State, &p.Country, &p.Location, &p.Latitude, &p.Longitude,
		&p.Bedrooms, &p.Bathrooms, &p.MaxGuests,
		&p.Capacity.Guests, &p.Capacity.Bedrooms, &p.Capacity.Beds, &p.Capacity.Bathrooms,
		&amenities, &p.HouseRules, &p.CheckInTime, &p.CheckOutTime, &p.MinNights, &p.MaxNights,
		&p.MetaTitle, &p.MetaDescription, &p.Keywords,
		&p.IsPublished, &publishedAt, &p.IsActive,
		&p.PlatformID, &p.PlatformType, &p.ExternalID, &imagesStoredAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(additionalImages), &p.AdditionalImages); err != nil {
		return nil, fmt.Errorf("decode additional_images: %w", err)
	}
	if err := json.Unmarshal([]byte(amenities), &p.Amenities); err != nil {
		return nil, fmt.Errorf("decode amenities: %w", err)
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	if imagesStoredAt.Valid {
		t := imagesStoredAt.Time
		p.ImagesStoredAt = &t
	}
	return &p, nil
}

// marshalList encodes a string slice as JSON text, never null.
func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode string list: %w", err)
	}
	return string(encoded), nil
}

// FindByPlatformID returns the property owning the exact platform
// identifier.
func (s *Store) FindByPlatformID(ctx context.Context, platformID string) (*models.CatalogProperty, error) {
	start := time.Now()
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE platform_id = ? LIMIT 1`
	p, err := scanProperty(s.conn.QueryRowContext(ctx, query, platformID))
	metrics.ObserveCatalogQuery("find_by_platform_id", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// FindByListingID matches a true legacy row: one whose platform identifier
// is the bare upstream listing id, imported before customer scoping.
// Customer-scoped rows never match here; a suffix match would let one
// customer's listing claim another customer's property.
func (s *Store) FindByListingID(ctx context.Context, listingID string) (*models.CatalogProperty, error) {
	start := time.Now()
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE platform_id = ? LIMIT 1`
	p, err := scanProperty(s.conn.QueryRowContext(ctx, query, listingID))
	metrics.ObserveCatalogQuery("find_by_listing_id", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// FindBySlug returns the property with the given slug.
func (s *Store) FindBySlug(ctx context.Context, slug string) (*models.CatalogProperty, error) {
	start := time.Now()
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE slug = ? LIMIT 1`
	p, err := scanProperty(s.conn.QueryRowContext(ctx, query, slug))
	metrics.ObserveCatalogQuery("find_by_slug", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// FindByID returns the property with the given catalog id.
func (s *Store) FindByID(ctx context.Context, id int64) (*models.CatalogProperty, error) {
	start := time.Now()
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = ? LIMIT 1`
	p, err := scanProperty(s.conn.QueryRowContext(ctx, query, id))
	metrics.ObserveCatalogQuery("find_by_id", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Create inserts a new property and returns its assigned id. CreatedAt and
// UpdatedAt are stamped here.
func (s *Store) Create(ctx context.Context, p *models.CatalogProperty) (int64, error) {
	start := time.Now()

	additionalImages, err := marshalList(p.AdditionalImages)
	if err != nil {
		return 0, err
	}
	amenities, err := marshalList(p.Amenities)
	if err != nil {
		return 0, err
	}

	// DuckDB timestamps carry microsecond precision; truncate so values
	// round-trip exactly.
	now := time.Now().UTC().Truncate(time.Microsecond)
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `INSERT INTO properties (
		name, title, slug, description, price,
		image_url, additional_images,
		address, city, state, country, location, latitude, longitude,
		bedrooms, bathrooms, max_guests,
		capacity_guests, capacity_bedrooms, capacity_beds, capacity_bathrooms,
		amenities, house_rules, check_in_time, check_out_time, min_nights, max_nights,
		meta_title, meta_description, keywords,
		is_published, published_at, is_active,
		platform_id, platform_type, external_id, images_stored_at,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`

	var id int64
	err = s.conn.QueryRowContext(ctx, query,
		p.Name, p.Title, p.Slug, p.Description, p.Price,
		p.ImageURL, additionalImages,
		p.Address, p.City, p.State, p.Country, p.Location, p.Latitude, p.Longitude,
		p.Bedrooms, p.Bathrooms, p.MaxGuests,
		p.Capacity.Guests, p.Capacity.Bedrooms, p.Capacity.Beds, p.Capacity.Bathrooms,
		amenities, p.HouseRules, p.CheckInTime, p.CheckOutTime, p.MinNights, p.MaxNights,
		p.MetaTitle, p.MetaDescription, p.Keywords,
		p.IsPublished, nullableTime(p.PublishedAt), p.IsActive,
		p.PlatformID, p.PlatformType, p.ExternalID, nullableTime(p.ImagesStoredAt),
		p.CreatedAt, p.UpdatedAt,
	).Scan(&id)
	metrics.ObserveCatalogQuery("create", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("insert property: %w", err)
	}

	p.ID = id
	return id, nil
}

// Update fully replaces the property row identified by p.ID, preserving
// CreatedAt and stamping UpdatedAt.
func (s *Store) Update(ctx context.Context, p *models.CatalogProperty) error {
	start := time.Now()

	additionalImages, err := marshalList(p.AdditionalImages)
	if err != nil {
		return err
	}
	amenities, err := marshalList(p.Amenities)
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query := `UPDATE properties SET
		name = ?, title = ?, slug = ?, description = ?, price = ?,
		image_url = ?, additional_images = ?,
		address = ?, city = ?, state = ?, country = ?, location = ?, latitude = ?, longitude = ?,
		bedrooms = ?, bathrooms = ?, max_guests = ?,
		capacity_guests = ?, capacity_bedrooms = ?, capacity_beds = ?, capacity_bathrooms = ?,
		amenities = ?, house_rules = ?, check_in_time = ?, check_out_time = ?, min_nights = ?, max_nights = ?,
		meta_title = ?, meta_description = ?, keywords = ?,
		is_published = ?, published_at = ?, is_active = ?,
		platform_id = ?, platform_type = ?, external_id = ?, images_stored_at = ?,
		updated_at = ?
	WHERE id = ?`

	result, err := s.conn.ExecContext(ctx, query,
		p.Name, p.Title, p.Slug, p.Description, p.Price,
		p.ImageURL, additionalImages,
		p.Address, p.City, p.State, p.Country, p.Location, p.Latitude, p.Longitude,
		p.Bedrooms, p.Bathrooms, p.MaxGuests,
		p.Capacity.Guests, p.Capacity.Bedrooms, p.Capacity.Beds, p.Capacity.Bathrooms,
		amenities, p.HouseRules, p.CheckInTime, p.CheckOutTime, p.MinNights, p.MaxNights,
		p.MetaTitle, p.MetaDescription, p.Keywords,
		p.IsPublished, nullableTime(p.PublishedAt), p.IsActive,
		p.PlatformID, p.PlatformType, p.ExternalID, nullableTime(p.ImagesStoredAt),
		p.UpdatedAt,
		p.ID,
	)
	metrics.ObserveCatalogQuery("update", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("update property %d: %w", p.ID, err)
	}
	return requireRow(result, p.ID)
}

// UpdateImages replaces the image set of a property and stamps
// images_stored_at without touching updated_at, so image ingestion does not
// masquerade as a content change.
func (s *Store) UpdateImages(ctx context.Context, id int64, primaryURL string, additional []string, storedAt time.Time) error {
	start := time.Now()

	additionalImages, err := marshalList(additional)
	if err != nil {
		return err
	}

	query := `UPDATE properties SET image_url = ?, additional_images = ?, images_stored_at = ? WHERE id = ?`
	result, err := s.conn.ExecContext(ctx, query, primaryURL, additionalImages, storedAt.UTC(), id)
	metrics.ObserveCatalogQuery("update_images", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("update property images %d: %w", id, err)
	}
	return requireRow(result, id)
}

// SoftDelete marks a property inactive. Rows are never physically removed.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	start := time.Now()

	query := `UPDATE properties SET is_active = FALSE, updated_at = ? WHERE id = ?`
	result, err := s.conn.ExecContext(ctx, query, time.Now().UTC(), id)
	metrics.ObserveCatalogQuery("soft_delete", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("soft delete property %d: %w", id, err)
	}
	return requireRow(result, id)
}

// List returns properties matching the filter, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]models.CatalogProperty, error) {
	start := time.Now()

	where, args := f.whereClause()
	query := `SELECT ` + propertyColumns + ` FROM properties` + where + ` ORDER BY updated_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
		if f.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", f.Offset)
		}
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.ObserveCatalogQuery("list", time.Since(start), err)
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var properties []models.CatalogProperty
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			metrics.ObserveCatalogQuery("list", time.Since(start), err)
			return nil, err
		}
		properties = append(properties, *p)
	}
	err = rows.Err()
	metrics.ObserveCatalogQuery("list", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return properties, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// nullableTime converts *time.Time to a driver-friendly value.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for property %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("property %d: %w", id, ErrNotFound)
	}
	return nil
}

// ignoreNoRows keeps expected lookup misses out of the error metrics.
func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
