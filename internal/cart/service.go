package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/basnets24/restaurant.pos-sub000/internal/catalog"
	"github.com/basnets24/restaurant.pos-sub000/internal/table"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemUnavailable = errors.New("menu item not available")
)

// CreateParams are the optional references a new cart can carry.
type CreateParams struct {
	TableID    string
	CustomerID string
	ServerID   string
	GuestCount int
}

// Service owns cart mutations: creation (claiming the table), adding lines
// with catalog price snapshots, and removal.
type Service struct {
	repo   Repository
	menu   catalog.Repository
	tables table.Registry
	logger *log.Logger
}

func NewService(repo Repository, menu catalog.Repository, tables table.Registry, logger *log.Logger) *Service {
	return &Service{repo: repo, menu: menu, tables: tables, logger: logger}
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*Cart, error) {
	c := &Cart{
		ID:         uuid.NewString(),
		TableID:    p.TableID,
		CustomerID: p.CustomerID,
		ServerID:   p.ServerID,
		GuestCount: p.GuestCount,
		CreatedAt:  time.Now().UTC(),
	}

	if c.TableID != "" {
		if err := s.tables.Occupy(ctx, c.TableID, c.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, c); err != nil {
		// give the table back so a failed insert does not strand it
		if c.TableID != "" {
			if relErr := s.tables.Release(ctx, c.TableID); relErr != nil {
				s.logger.Printf("release table %s after failed cart create: %v", c.TableID, relErr)
			}
		}
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return c, nil
}

func (s *Service) Get(ctx context.Context, cartID string) (*Cart, error) {
	return s.repo.Get(ctx, cartID)
}

// AddItem snapshots the menu item's name and price at add time and merges
// into an existing line when the item is already in the cart.
func (s *Service) AddItem(ctx context.Context, cartID, menuItemID string, quantity int, notes string) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	if _, err := s.repo.Get(ctx, cartID); err != nil {
		return nil, err
	}

	mi, err := s.menu.Get(ctx, menuItemID)
	if err != nil {
		return nil, err
	}
	if !mi.Available {
		return nil, ErrItemUnavailable
	}

	it := Item{
		MenuItemID: mi.ID,
		Name:       mi.Name,
		UnitPrice:  mi.Price,
		Quantity:   quantity,
		Notes:      notes,
	}
	if err := s.repo.UpsertItem(ctx, cartID, it); err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, cartID)
}

func (s *Service) RemoveItem(ctx context.Context, cartID, menuItemID string) error {
	return s.repo.RemoveItem(ctx, cartID, menuItemID)
}

// Abandon destroys an open cart and releases its table.
func (s *Service) Abandon(ctx context.Context, cartID string) error {
	c, err := s.repo.Get(ctx, cartID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, cartID); err != nil {
		return err
	}
	if c.TableID != "" {
		if err := s.tables.Release(ctx, c.TableID); err != nil {
			s.logger.Printf("release table %s on abandon: %v", c.TableID, err)
		}
	}
	return nil
}
