package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLCatalog serves products from a SQLite database.
type SQLCatalog struct {
	db *sql.DB
}

func NewSQLCatalog(dbPath string) (*SQLCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLCatalog{db: db}, nil
}

// RunMigrations applies the embedded schema and seed migrations.
func (r *SQLCatalog) RunMigrations() error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *SQLCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `
		SELECT id, title, price, stock, image_url
		FROM products
		WHERE id = $1
	`

	p := &domain.Product{}
	var price string
	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&p.ID,
		&p.Title,
		&price,
		&p.Stock,
		&p.ImageURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for product %s: %w", price, productID, err)
	}

	p.Colors, err = r.getColors(ctx, productID)
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (r *SQLCatalog) getColors(ctx context.Context, productID string) ([]domain.Color, error) {
	query := `
		SELECT id, label, image_ref, inventory
		FROM product_colors
		WHERE product_id = $1
		ORDER BY position, id
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query product colors: %w", err)
	}
	defer rows.Close()

	colors := []domain.Color{}
	for rows.Next() {
		var c domain.Color
		if err := rows.Scan(&c.ID, &c.Label, &c.ImageRef, &c.Inventory); err != nil {
			return nil, fmt.Errorf("failed to scan product color: %w", err)
		}
		colors = append(colors, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return colors, nil
}

func (r *SQLCatalog) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLCatalog) Close() error {
	return r.db.Close()
}
