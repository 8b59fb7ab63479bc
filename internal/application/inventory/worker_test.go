package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	obsprovider "github.com/yuguanpei/vending-machine/internal/infrastructure/observability"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/observability/zaplogger"
)

func observedWorker(t *testing.T) (*Worker, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	tel := obsprovider.New(nil, zaplogger.New(zap.New(core)), nil, nil)
	return NewWorker(nil, tel), logs
}

func TestWorkerWarnsOnEmptyChannel(t *testing.T) {
	w, logs := observedWorker(t)

	evt := dominv.NewChannelUpdatedEvent("A01", &dominv.Channel{ProductID: 3, Quantity: 0}, dominv.ChangeReasonDispensed)
	require.NoError(t, w.handleChannelUpdated(context.Background(), evt))

	empty := logs.FilterMessage("inventory_channel_empty").All()
	require.Len(t, empty, 1)
	assert.Equal(t, "A01", empty[0].ContextMap()["target"])
	assert.Equal(t, zapcore.WarnLevel, empty[0].Level)
}

func TestWorkerLogsRemoval(t *testing.T) {
	w, logs := observedWorker(t)

	evt := dominv.NewChannelUpdatedEvent("B", nil, dominv.ChangeReasonAdmin)
	require.NoError(t, w.handleChannelUpdated(context.Background(), evt))

	assert.Equal(t, 1, logs.FilterMessage("inventory_channel_removed").Len())
	assert.Zero(t, logs.FilterMessage("inventory_channel_empty").Len())
}
