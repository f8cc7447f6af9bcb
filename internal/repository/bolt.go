package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/zapiertracker-hub/Whopify-sub001/internal/model"
)

// Бакеты файлового хранилища. intents хранит соответствие платёжного
// намерения идентификатору заказа для идемпотентного подтверждения.
var (
	bucketCheckouts = []byte("checkouts")
	bucketOrders    = []byte("orders")
	bucketCustomers = []byte("customers")
	bucketSettings  = []byte("settings")
	bucketIntents   = []byte("intents")
)

var settingsKey = []byte("settings")

// BoltRepository предоставляет доступ к встроенному файловому хранилищу BoltDB.
// Используется, когда адрес PostgreSQL не задан: вся база — один файл, внешний
// процесс БД не нужен. Каждая запись выполняется внутри транзакции db.Update,
// поэтому параллельные изменения разных записей не затирают друг друга.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository открывает (или создаёт) файл базы по указанному пути
// и готовит бакеты коллекций.
func NewBoltRepository(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketCheckouts, bucketOrders, bucketCustomers, bucketSettings, bucketIntents} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

// Close освобождает файл базы данных.
func (r *BoltRepository) Close() error {
	return r.db.Close()
}

// ListCheckouts возвращает все чекауты магазина.
func (r *BoltRepository) ListCheckouts(_ context.Context) ([]model.Checkout, error) {
	checkouts := []model.Checkout{}

	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckouts).ForEach(func(_, v []byte) error {
			var c model.Checkout
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			checkouts = append(checkouts, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list checkouts: %w", err)
	}

	return checkouts, nil
}

// GetCheckout возвращает чекаут по идентификатору.
func (r *BoltRepository) GetCheckout(_ context.Context, id string) (*model.Checkout, error) {
	var c model.Checkout

	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCheckouts).Get([]byte(id))
		if v == nil {
			return ErrCheckoutNotFound
		}
		return json.Unmarshal(v, &c)
	})
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// UpsertCheckout создаёт чекаут или заменяет существующий с тем же идентификатором.
func (r *BoltRepository) UpsertCheckout(_ context.Context, c model.Checkout) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal checkout: %w", err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckouts).Put([]byte(c.ID), data)
	})
	if err != nil {
		return fmt.Errorf("upsert checkout: %w", err)
	}

	return nil
}

// DeleteCheckout удаляет чекаут. Удаление отсутствующего чекаута не считается ошибкой.
func (r *BoltRepository) DeleteCheckout(_ context.Context, id string) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckouts).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete checkout: %w", err)
	}
	return nil
}

// GetSettings возвращает настройки магазина. Отсутствие записи эквивалентно
// настройкам по умолчанию.
func (r *BoltRepository) GetSettings(_ context.Context) (*model.Settings, error) {
	s := model.DefaultSettings()

	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSettings).Get(settingsKey)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &s)
	})
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return &s, nil
}

// UpdateSettings заменяет настройки магазина целиком.
func (r *BoltRepository) UpdateSettings(_ context.Context, s model.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Put(settingsKey, data)
	})
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	return nil
}

// CreateOrder сохраняет заказ и в той же транзакции создаёт покупателя,
// если ни один существующий покупатель не использует email заказа.
func (r *BoltRepository) CreateOrder(_ context.Context, o model.Order) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		if err := putOrder(tx, o); err != nil {
			return err
		}
		return createCustomerIfAbsentBolt(tx, o)
	})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

// CreateOrderForIntent сохраняет заказ для платёжного намерения, если заказ с
// таким намерением ещё не создан. Проверка и запись выполняются в одной
// транзакции, поэтому повторное подтверждение одного намерения — но-оп.
func (r *BoltRepository) CreateOrderForIntent(_ context.Context, o model.Order) (bool, error) {
	created := false

	err := r.db.Update(func(tx *bolt.Tx) error {
		intents := tx.Bucket(bucketIntents)
		if intents.Get([]byte(o.IntentID)) != nil {
			return nil
		}

		if err := putOrder(tx, o); err != nil {
			return err
		}
		if err := intents.Put([]byte(o.IntentID), []byte(o.ID)); err != nil {
			return err
		}
		if err := createCustomerIfAbsentBolt(tx, o); err != nil {
			return err
		}

		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("create order for intent: %w", err)
	}

	return created, nil
}

// UpdateOrderStatusByIntent меняет статус заказа указанного платёжного
// намерения. Идентификатор и исторические поля заказа при этом не меняются.
func (r *BoltRepository) UpdateOrderStatusByIntent(_ context.Context, intentID string, status model.OrderStatus) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		orderID := tx.Bucket(bucketIntents).Get([]byte(intentID))
		if orderID == nil {
			return ErrOrderNotFound
		}

		orders := tx.Bucket(bucketOrders)
		v := orders.Get(orderID)
		if v == nil {
			return ErrOrderNotFound
		}

		var o model.Order
		if err := json.Unmarshal(v, &o); err != nil {
			return err
		}
		o.Status = status

		data, err := json.Marshal(o)
		if err != nil {
			return err
		}
		return orders.Put(orderID, data)
	})
}

// ListOrders возвращает журнал заказов.
func (r *BoltRepository) ListOrders(_ context.Context) ([]model.Order, error) {
	orders := []model.Order{}

	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOrders).ForEach(func(_, v []byte) error {
			var o model.Order
			if err := json.Unmarshal(v, &o); err != nil {
				return err
			}
			orders = append(orders, o)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return orders, nil
}

func putOrder(tx *bolt.Tx, o model.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketOrders).Put([]byte(o.ID), data)
}

// createCustomerIfAbsentBolt создаёт покупателя с количеством заказов 1 и
// тратами, равными сумме заказа, если email заказа ещё не встречался.
// Накопление по повторным покупкам намеренно не выполняется.
func createCustomerIfAbsentBolt(tx *bolt.Tx, o model.Order) error {
	if o.CustomerEmail == "" {
		return nil
	}

	customers := tx.Bucket(bucketCustomers)
	if customers.Get([]byte(o.CustomerEmail)) != nil {
		return nil
	}

	c := model.Customer{
		ID:         uuid.NewString(),
		Name:       o.CustomerName,
		Email:      o.CustomerEmail,
		Country:    o.Country,
		Orders:     1,
		Spend:      o.Amount,
		LastActive: o.CreatedAt,
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return customers.Put([]byte(o.CustomerEmail), data)
}
