package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/storage"
)

// PutDelivery stores or replaces one delivery definition.
func (s *Store) PutDelivery(ctx context.Context, delivery domain.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	deliveryID := strings.TrimSpace(delivery.ID)
	if deliveryID == "" {
		return fmt.Errorf("delivery id is required")
	}
	if strings.TrimSpace(delivery.Item.ID) == "" {
		return fmt.Errorf("item id is required")
	}
	if strings.TrimSpace(delivery.Item.Source) == "" {
		return fmt.Errorf("item source is required")
	}

	settings, err := json.Marshal(delivery.Settings)
	if err != nil {
		return fmt.Errorf("encode delivery settings: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO deliveries (id, item_id, item_title, item_source, settings)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   item_id = excluded.item_id,
		   item_title = excluded.item_title,
		   item_source = excluded.item_source,
		   settings = excluded.settings`,
		deliveryID,
		delivery.Item.ID,
		delivery.Item.Title,
		delivery.Item.Source,
		string(settings),
	)
	if err != nil {
		return fmt.Errorf("put delivery: %w", err)
	}
	return nil
}

// GetDelivery returns one delivery by ID.
func (s *Store) GetDelivery(ctx context.Context, id string) (domain.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return domain.Delivery{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Delivery{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Delivery{}, fmt.Errorf("delivery id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, item_id, item_title, item_source, settings
		   FROM deliveries
		  WHERE id = ?`,
		id,
	)

	var delivery domain.Delivery
	var settings string
	err := row.Scan(&delivery.ID, &delivery.Item.ID, &delivery.Item.Title, &delivery.Item.Source, &settings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Delivery{}, storage.ErrNotFound
		}
		return domain.Delivery{}, fmt.Errorf("get delivery: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &delivery.Settings); err != nil {
		return domain.Delivery{}, fmt.Errorf("decode delivery settings: %w", err)
	}
	return delivery, nil
}
