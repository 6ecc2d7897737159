package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"storefront/internal/domain"
	"storefront/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, brand, color, size, price_cents, categories, active
		FROM products
		WHERE active = true
		ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, store.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, brand, color, size, price_cents, categories, active
		FROM products
		WHERE id = $1 AND active = true
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p          domain.Product
		categories []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Color, &p.Size, &p.PriceCents, &categories, &p.Active); err != nil {
		return domain.Product{}, err
	}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return domain.Product{}, fmt.Errorf("decode categories for %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content_type, summary, tags, published_at
		FROM cms_documents
		WHERE published_at <= now()
		ORDER BY published_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.Document, 0, 64)
	for rows.Next() {
		var (
			d    domain.Document
			tags []byte
		)
		if err := rows.Scan(&d.ID, &d.Title, &d.ContentType, &d.Summary, &tags, &d.PublishedAt); err != nil {
			return nil, err
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &d.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for %s: %w", d.ID, err)
			}
		}
		d.PublishedAt = d.PublishedAt.UTC()
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) CreateOrder(ctx context.Context, sessionID string, order domain.Order) error {
	if sessionID == "" || order.ID == "" {
		return store.ErrInvalidInput
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	completedAt := time.Now().UTC()
	if order.CompletedAt != nil {
		completedAt = order.CompletedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO completed_orders (id, session_id, total_cents, payload, completed_at)
		VALUES ($1,$2,$3,$4,$5)
	`, order.ID, sessionID, order.TotalCents, payload, completedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context, sessionID string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM completed_orders
		WHERE session_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var order domain.Order
		if err := json.Unmarshal(payload, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
