package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yuguanpei/vending-machine/internal/application"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"
)

const inventoryService = "inventory-service"

var ErrRepository = errors.New("inventory: repository failure")

// Service owns the committed grid. Reads are served from memory; every writer
// goes through a Tx, and only one Tx exists at a time.
type Service struct {
	repo      dominv.Repository
	publisher domoutbox.Publisher
	ins       application.Instruments

	mu      sync.RWMutex
	current *dominv.Grid

	writer chan struct{}
}

// NewService loads the persisted grid once; later reads never hit storage.
func NewService(ctx context.Context, repo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability) (*Service, error) {
	grid, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load grid: %w", ErrRepository, err)
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		ins:       application.NewInstruments(tel, inventoryService),
		current:   grid,
		writer:    make(chan struct{}, 1),
	}, nil
}

// StockOf reflects the last committed mutation.
func (s *Service) StockOf(productID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.StockOf(productID)
}

// Snapshot returns a private copy of the committed grid.
func (s *Service) Snapshot() *dominv.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Begin waits for exclusive write access to the grid. The returned Tx must be released.
func (s *Service) Begin(ctx context.Context) (*Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Tx{svc: s, grid: s.Snapshot()}, nil
}

func (s *Service) commit(ctx context.Context, next *dominv.Grid) error {
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: save grid: %w", ErrRepository, err)
	}
	s.mu.Lock()
	s.current = next.Clone()
	s.mu.Unlock()
	return nil
}

// Tx is the single writer of the grid. Planning against Tx.Grid and the
// decrements that follow see the same state; admin edits wait for Release.
type Tx struct {
	svc      *Service
	grid     *dominv.Grid
	released bool
}

// Grid is the state this writer works against. Callers must not mutate it.
func (tx *Tx) Grid() *dominv.Grid { return tx.grid }

// ProductAt reports which product a channel holds.
func (tx *Tx) ProductAt(id dominv.ChannelID) (int64, bool) {
	ch, ok := tx.grid.Channel(id)
	if !ok || !ch.Assigned() {
		return 0, false
	}
	return ch.ProductID, true
}

// Decrement takes one unit out of a channel and persists the grid. It returns
// the product held by the channel and that product's remaining stock.
func (tx *Tx) Decrement(ctx context.Context, id dominv.ChannelID) (int64, int, error) {
	if tx.released {
		return 0, 0, errors.New("inventory: transaction already released")
	}
	ch, ok := tx.grid.Channel(id)
	if !ok {
		return 0, 0, dominv.ErrChannelNotFound
	}

	next := tx.grid.Clone()
	if err := next.Decrement(id); err != nil {
		return 0, 0, err
	}
	if err := tx.svc.commit(ctx, next); err != nil {
		return 0, 0, err
	}
	tx.grid = next

	updated, _ := next.Channel(id)
	tx.publish(ctx, dominv.NewChannelUpdatedEvent(id.String(), &updated, dominv.ChangeReasonDispensed))
	return ch.ProductID, next.StockOf(ch.ProductID), nil
}

// SetChannel creates, replaces or (with nil data) removes one channel.
func (tx *Tx) SetChannel(ctx context.Context, id dominv.ChannelID, data *dominv.Channel) error {
	next := tx.grid.Clone()
	if err := next.SetChannel(id, data); err != nil {
		return err
	}
	if err := tx.svc.commit(ctx, next); err != nil {
		return err
	}
	tx.grid = next
	tx.publish(ctx, dominv.NewChannelUpdatedEvent(id.String(), data, dominv.ChangeReasonAdmin))
	return nil
}

// RemoveLayer drops the highest layer with all of its channels.
func (tx *Tx) RemoveLayer(ctx context.Context, layer string) error {
	next := tx.grid.Clone()
	if err := next.RemoveLayer(layer); err != nil {
		return err
	}
	if err := tx.svc.commit(ctx, next); err != nil {
		return err
	}
	tx.grid = next
	tx.publish(ctx, dominv.NewChannelUpdatedEvent(layer, nil, dominv.ChangeReasonAdmin))
	return nil
}

// Release gives up write access. It is safe to call more than once.
func (tx *Tx) Release() {
	if tx.released {
		return
	}
	tx.released = true
	<-tx.svc.writer
}

func (tx *Tx) publish(ctx context.Context, e dominv.ChannelUpdatedEvent) {
	logger := logctx.FromOr(ctx, tx.svc.ins.Log)
	_ = tx.svc.ins.Publish(ctx, logger, tx.svc.publisher, e)
}
