package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/memory"
)

type failingRepo struct {
	*memory.GridRepository
	saveErr error
}

func (r failingRepo) Save(ctx context.Context, g *dominv.Grid) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.GridRepository.Save(ctx, g)
}

type captured struct{ events []domoutbox.Event }

func (c *captured) Publish(_ context.Context, e domoutbox.Event) error {
	c.events = append(c.events, e)
	return nil
}

func seeded(t *testing.T) *memory.GridRepository {
	t.Helper()
	g, err := dominv.FromLayout(dominv.Layout{
		"A": {"01": {ProductID: 1, Quantity: 1}, "02": {ProductID: 2, Quantity: 3}},
	})
	require.NoError(t, err)
	return memory.NewGridRepository(g)
}

func TestDecrementPersistsAndPublishes(t *testing.T) {
	repo := seeded(t)
	pub := &captured{}
	svc, err := NewService(context.Background(), repo, pub, nil)
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := svc.Begin(ctx)
	require.NoError(t, err)
	pid, stock, err := tx.Decrement(ctx, dominv.MustChannelID("A02"))
	require.NoError(t, err)
	tx.Release()
	tx.Release()

	assert.Equal(t, int64(2), pid)
	assert.Equal(t, 2, stock)
	assert.Equal(t, 2, svc.StockOf(2))

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.StockOf(2))

	require.Len(t, pub.events, 1)
	evt := pub.events[0].(dominv.ChannelUpdatedEvent)
	assert.Equal(t, dominv.ChangeReasonDispensed, evt.Reason)
}

func TestFailedSaveKeepsCommittedGrid(t *testing.T) {
	repo := failingRepo{GridRepository: seeded(t), saveErr: errors.New("disk full")}
	svc, err := NewService(context.Background(), repo, nil, nil)
	require.NoError(t, err)

	tx, err := svc.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Release()

	_, _, err = tx.Decrement(context.Background(), dominv.MustChannelID("A01"))
	require.ErrorIs(t, err, ErrRepository)
	assert.Equal(t, 1, svc.StockOf(1))
}

func TestBeginIsExclusive(t *testing.T) {
	svc, err := NewService(context.Background(), seeded(t), nil, nil)
	require.NoError(t, err)

	tx, err := svc.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Begin(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	tx.Release()
	tx2, err := svc.Begin(context.Background())
	require.NoError(t, err)
	tx2.Release()
}

func TestSetChannelUseCase(t *testing.T) {
	svc, err := NewService(context.Background(), seeded(t), nil, nil)
	require.NoError(t, err)
	uc := NewSetChannelUseCase(svc, nil)
	ctx := context.Background()

	res, err := uc.Execute(ctx, SetChannelInput{Channel: "A03", ProductID: 3, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, "A03", res.Channel)
	assert.Equal(t, dominv.Channel{ProductID: 3, Quantity: 4}, res.Layout["A"]["03"])
	assert.Equal(t, 4, svc.StockOf(3))

	_, err = uc.Execute(ctx, SetChannelInput{Channel: "A05", ProductID: 3, Quantity: 1})
	require.ErrorIs(t, err, dominv.ErrStructural)

	_, err = uc.Execute(ctx, SetChannelInput{Channel: "Z01", ProductID: 3, Quantity: 1})
	require.ErrorIs(t, err, dominv.ErrInvalidChannel)

	res, err = uc.Execute(ctx, SetChannelInput{Channel: "A03", Remove: true})
	require.NoError(t, err)
	_, ok := res.Layout["A"]["03"]
	assert.False(t, ok)
	assert.Equal(t, 0, svc.StockOf(3))
}

func TestRemoveLayerUseCase(t *testing.T) {
	svc, err := NewService(context.Background(), seeded(t), nil, nil)
	require.NoError(t, err)
	set := NewSetChannelUseCase(svc, nil)
	remove := NewRemoveLayerUseCase(svc, nil)
	ctx := context.Background()

	_, err = set.Execute(ctx, SetChannelInput{Channel: "B01", ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	_, err = remove.Execute(ctx, RemoveLayerInput{Layer: "A"})
	require.ErrorIs(t, err, dominv.ErrStructural)

	layout, err := remove.Execute(ctx, RemoveLayerInput{Layer: "B"})
	require.NoError(t, err)
	assert.Len(t, layout, 1)
	assert.Equal(t, 1, svc.StockOf(1))
}
