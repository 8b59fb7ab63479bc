package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/yuguanpei/vending-machine/internal/application"
	appcart "github.com/yuguanpei/vending-machine/internal/application/cart"
	appdispense "github.com/yuguanpei/vending-machine/internal/application/dispense"
	appinventory "github.com/yuguanpei/vending-machine/internal/application/inventory"
	apporder "github.com/yuguanpei/vending-machine/internal/application/order"
	apppayment "github.com/yuguanpei/vending-machine/internal/application/payment"
	"github.com/yuguanpei/vending-machine/internal/config"
	domdispense "github.com/yuguanpei/vending-machine/internal/domain/dispense"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domorder "github.com/yuguanpei/vending-machine/internal/domain/order"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/deviceconfig"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/filestore"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/hardware"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/id"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/memory"
	obsprovider "github.com/yuguanpei/vending-machine/internal/infrastructure/observability"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/observability/oteltrace"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/observability/prometrics"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/observability/telemetry"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/observability/zaplogger"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/outbox"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/token"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/totp"
	"github.com/yuguanpei/vending-machine/internal/pkg/logging"
	"github.com/yuguanpei/vending-machine/internal/observability"
	httppresentation "github.com/yuguanpei/vending-machine/internal/presentation/http"
)

func serve(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	device, err := deviceconfig.Load(cfg.DeviceConfig)
	if err != nil {
		return err
	}

	baseLogger, err := logging.New(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		VID:     device.VID,
	})
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)
	systemLogger := logging.System(baseLogger)
	if device.Secret == "" {
		systemLogger.Warn("device_secret_missing", zap.String("path", cfg.DeviceConfig))
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}

	counters, histograms := prometrics.Standard(prometrics.New(nil, "", prometheus.Labels{"vid": device.VID}))
	tel := obsprovider.New(
		oteltrace.New(cfg.ServiceName, attribute.String("kiosk.vid", device.VID)),
		zaplogger.New(baseLogger),
		counters, histograms,
	)
	products := device.Catalog()

	var (
		orderRepo domorder.Repository
		gridRepo  dominv.Repository
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		orderRepo = memory.NewOrderRepository()
		gridRepo = memory.NewGridRepository(nil)
	default:
		orderRepo = filestore.NewOrderRepository(cfg.DataDir)
		gridRepo = filestore.NewGridRepository(cfg.DataDir)
	}

	bus := outbox.NewBus(tel)
	bus.Start(ctx)

	inventory, err := appinventory.NewService(ctx, gridRepo, bus, tel)
	if err != nil {
		return err
	}
	cart := appcart.NewService(products, inventory, tel)
	ledger := apporder.NewLedger(orderRepo, bus, tel)
	windows := apporder.NewPaymentWindows(ledger, cfg.PaymentWindow, tel)

	createOpts := []apporder.CreateOption{}
	if device.Secret != "" {
		sealer, err := token.NewSealer(device.Secret)
		if err != nil {
			return err
		}
		createOpts = append(createOpts, apporder.WithTokenSealer(sealer))
	}
	createOrder := apporder.NewCreateOrderUseCase(orderRepo, id.NewGenerator(), products, inventory, bus, device.VID, tel, createOpts...)

	orchestrator := appdispense.NewOrchestrator(newDispenser(cfg), ledger, cart, products, bus, tel,
		appdispense.WithUnitTimeout(cfg.DispenseTimeout),
		appdispense.WithGridLock(func(ctx context.Context) (func(), error) {
			tx, err := inventory.Begin(ctx)
			if err != nil {
				return nil, err
			}
			return tx.Release, nil
		}),
	)
	board := appdispense.NewBoard(bus, tel)

	runner := application.NewAsyncRunner()
	verify := apppayment.NewVerifyPaymentUseCase(ledger, totp.NewVerifier(device.Secret),
		apppayment.InventoryFunc(func(ctx context.Context) (apppayment.GridTx, error) {
			tx, err := inventory.Begin(ctx)
			if err != nil {
				return nil, err
			}
			return tx, nil
		}),
		orchestrator, runner, tel,
	)

	appinventory.NewWorker(bus, tel).Start()
	apporder.NewWorker(bus, windows, cart, tel).Start()
	board.Start()

	handler := httppresentation.NewHandler(httppresentation.Dependencies{
		Catalog:      products,
		Inventory:    inventory,
		SetChannel:   appinventory.NewSetChannelUseCase(inventory, tel),
		RemoveLayer:  appinventory.NewRemoveLayerUseCase(inventory, tel),
		Cart:         cart,
		CreateOrder:  createOrder,
		Ledger:       ledger,
		Verify:       verify,
		Orchestrator: orchestrator,
		Board:        board,
		Device:       device,
		Metrics:      promhttp.Handler(),
	}, tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("storage", cfg.StorageDriver),
			zap.String("hardware", cfg.HardwareDriver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	windows.StopAll()
	// A batch in flight owns the actuator; let it finish and record its report.
	if err := runner.Wait(shutdownCtx); err != nil {
		systemLogger.Warn("dispense_drain_aborted", zap.Error(err))
	}
	bus.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		systemLogger.Warn("tracing_shutdown_error", zap.Error(err))
	}
	return nil
}

func testChannel(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	channel, err := dominv.ParseChannelID(c.Args().First())
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	baseLogger, err := logging.New(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()

	tel := obsprovider.New(nil, zaplogger.New(baseLogger, observability.F("command", "test-channel")), nil, nil)
	orchestrator := appdispense.NewOrchestrator(newDispenser(cfg), nil, nil, nil, nil, tel,
		appdispense.WithUnitTimeout(cfg.DispenseTimeout),
	)
	rec, err := orchestrator.TestChannel(c.Context, channel)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s success=%t message=%q\n", rec.Slot, rec.Success, rec.Message)
	if !rec.Success {
		return cli.Exit("dispense failed", 2)
	}
	return nil
}

func newDispenser(cfg *config.Config) domdispense.Dispenser {
	if cfg.HardwareDriver == config.HardwareCommand {
		return hardware.NewCommand(cfg.VendorPath)
	}
	return hardware.NewSimulator(cfg.SimulatedDispenseDelay)
}

