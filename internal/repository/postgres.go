package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/zapiertracker-hub/Whopify-sub001/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListCheckouts возвращает все чекауты магазина.
func (r *PostgresRepository) ListCheckouts(ctx context.Context) ([]model.Checkout, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM checkouts ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select checkouts: %w", err)
	}
	defer rows.Close()

	checkouts := []model.Checkout{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan checkout: %w", err)
		}

		var c model.Checkout
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal checkout: %w", err)
		}
		checkouts = append(checkouts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return checkouts, nil
}

// GetCheckout возвращает чекаут по идентификатору.
func (r *PostgresRepository) GetCheckout(ctx context.Context, id string) (*model.Checkout, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT data FROM checkouts WHERE id = $1`,
		id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("get checkout: %w", err)
	}

	var c model.Checkout
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal checkout: %w", err)
	}

	return &c, nil
}

// UpsertCheckout создаёт чекаут или заменяет существующий с тем же идентификатором.
func (r *PostgresRepository) UpsertCheckout(ctx context.Context, c model.Checkout) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal checkout: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO checkouts (id, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		c.ID, data,
	)
	if err != nil {
		return fmt.Errorf("upsert checkout: %w", err)
	}

	return nil
}

// DeleteCheckout удаляет чекаут. Удаление отсутствующего чекаута не считается ошибкой.
func (r *PostgresRepository) DeleteCheckout(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM checkouts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete checkout: %w", err)
	}
	return nil
}

// GetSettings возвращает настройки магазина. Отсутствие записи эквивалентно
// настройкам по умолчанию.
func (r *PostgresRepository) GetSettings(ctx context.Context) (*model.Settings, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s := model.DefaultSettings()
			return &s, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	var s model.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &s, nil
}

// UpdateSettings заменяет настройки магазина целиком.
func (r *PostgresRepository) UpdateSettings(ctx context.Context, s model.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO settings (id, data) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		data,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	return nil
}

// CreateOrder сохраняет заказ и в той же транзакции создаёт покупателя,
// если ни один существующий покупатель не использует email заказа.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertOrder(ctx, tx, o); err != nil {
		return err
	}

	if err := createCustomerIfAbsent(ctx, tx, o); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// CreateOrderForIntent сохраняет заказ для платёжного намерения, если заказ с
// таким намерением ещё не создан. Возвращает признак того, что запись была
// создана этим вызовом: повторное подтверждение одного намерения — но-оп.
func (r *PostgresRepository) CreateOrderForIntent(ctx context.Context, o model.Order) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`INSERT INTO orders (id, amount, amount_cents, currency, status, created_at,
		                     items, checkout_id, provider, intent_id,
		                     customer_name, customer_email, country, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (intent_id) WHERE intent_id <> '' DO NOTHING`,
		o.ID, o.Amount, o.AmountCents, o.Currency, string(o.Status), o.CreatedAt,
		o.Items, o.CheckoutID, o.Provider, o.IntentID,
		o.CustomerName, o.CustomerEmail, o.Country, o.Source,
	)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	created := cmdTag.RowsAffected() == 1
	if created {
		if err := createCustomerIfAbsent(ctx, tx, o); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return created, nil
}

// UpdateOrderStatusByIntent меняет статус заказа указанного платёжного
// намерения. Идентификатор и исторические поля заказа при этом не меняются.
func (r *PostgresRepository) UpdateOrderStatusByIntent(ctx context.Context, intentID string, status model.OrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE intent_id = $1 AND intent_id <> ''`,
		intentID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// ListOrders возвращает журнал заказов, начиная с самых свежих.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, amount, amount_cents, currency, status, created_at,
		        items, checkout_id, provider, intent_id,
		        customer_name, customer_email, country, source
		 FROM orders
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var (
			o      model.Order
			status string
		)
		err := rows.Scan(&o.ID, &o.Amount, &o.AmountCents, &o.Currency, &status, &o.CreatedAt,
			&o.Items, &o.CheckoutID, &o.Provider, &o.IntentID,
			&o.CustomerName, &o.CustomerEmail, &o.Country, &o.Source)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o model.Order) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO orders (id, amount, amount_cents, currency, status, created_at,
		                     items, checkout_id, provider, intent_id,
		                     customer_name, customer_email, country, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.Amount, o.AmountCents, o.Currency, string(o.Status), o.CreatedAt,
		o.Items, o.CheckoutID, o.Provider, o.IntentID,
		o.CustomerName, o.CustomerEmail, o.Country, o.Source,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrOrderExists, o.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// createCustomerIfAbsent создаёт покупателя с количеством заказов 1 и тратами,
// равными сумме заказа, если email заказа ещё не встречался. Накопление по
// повторным покупкам намеренно не выполняется.
func createCustomerIfAbsent(ctx context.Context, tx pgx.Tx, o model.Order) error {
	if o.CustomerEmail == "" {
		return nil
	}

	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE email = $1)`,
		o.CustomerEmail,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check customer: %w", err)
	}
	if exists {
		return nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO customers (id, name, email, country, orders, spend, last_active)
		 VALUES ($1, $2, $3, $4, 1, $5, $6)
		 ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), o.CustomerName, o.CustomerEmail, o.Country, o.Amount, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}

	return nil
}
