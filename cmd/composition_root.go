package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	httpin "orderflow/internal/adapters/in/http"
	"orderflow/internal/adapters/observability"
	"orderflow/internal/adapters/out/eventbus"
	"orderflow/internal/adapters/out/eventbus/pglisten"
	"orderflow/internal/adapters/out/eventbus/polling"
	"orderflow/internal/adapters/out/memory"
	"orderflow/internal/adapters/out/notify/amqp"
	"orderflow/internal/adapters/out/notify/inapp"
	"orderflow/internal/adapters/out/postgres"
	"orderflow/internal/adapters/out/postgres/noticerepo"
	"orderflow/internal/core/application/coordinator"
	"orderflow/internal/core/application/notifications"
	"orderflow/internal/core/application/realtime"
	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/jobs"

	"github.com/labstack/echo/v4"
)

const estimateQueryHandlerMaxAge = 2 * time.Minute

// CompositionRoot owns every long-lived dependency of the process.
type CompositionRoot struct {
	cfg     Config
	obs     *observability.Instruments
	logger  *slog.Logger
	uows    ports.UnitOfWorkFactory
	reader  ports.OrderReader
	history ports.HistoryRepository
	hub     *eventbus.Hub
	notices ports.NoticeBoard
	jobs    *jobs.JobManager

	estimator services.WaitTimeEstimator
	estimate  queries.GetWaitEstimateQueryHandler
	closers   []func()
}

// NewCompositionRoot opens the configured store and builds the shared infrastructure.
// Nothing runs until Start.
func NewCompositionRoot(ctx context.Context, cfg Config, obs *observability.Instruments) (*CompositionRoot, error) {
	estimator, err := services.NewWaitTimeEstimator(cfg.Estimator)
	if err != nil {
		return nil, fmt.Errorf("estimator config: %w", err)
	}

	logger := obs.Logger
	c := &CompositionRoot{
		cfg:       cfg,
		obs:       obs,
		logger:    logger,
		hub:       eventbus.NewHub(eventbus.WithLogger(logger)),
		jobs:      jobs.NewJobManager(logger),
		estimator: estimator,
	}
	c.closers = append(c.closers, c.hub.Close)

	if err = c.openStore(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.estimate = queries.NewGetWaitEstimateQueryHandler(c.reader, c.estimator, nil, estimateQueryHandlerMaxAge)
	return c, nil
}

func (c *CompositionRoot) openStore(ctx context.Context) error {
	if c.cfg.DBDriver == StoreMemory {
		store := memory.NewStore(memory.WithPublisher(c.hub))
		c.uows, c.reader, c.history = store, store, store
		c.notices = inapp.NewBoard(0)
		c.logger.Warn("using the in-memory store, orders are lost on restart")
		return nil
	}

	conn := postgres.ConnConfig{
		Driver:         postgres.DriverPostgres,
		DSN:            c.cfg.PostgresDSN(),
		ConnectTimeout: 30 * time.Second,
		MaxOpenConns:   20,
	}
	if c.cfg.DBDriver == StoreSQLite {
		conn.Driver, conn.DSN, conn.MaxOpenConns = postgres.DriverSQLite, c.cfg.SQLitePath, 1
	}
	db, closeDB, err := postgres.Open(ctx, conn, c.logger)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.cfg.DBDriver, err)
	}
	c.closers = append(c.closers, closeDB)
	if err = postgres.Migrate(db); err != nil {
		return err
	}

	factory := postgres.NewGormUnitOfWorkFactory(db)
	c.uows, c.reader, c.history = factory, factory.Reader(), factory.History()
	c.notices = noticerepo.NewGormNoticeBoard(db)

	if c.cfg.DBDriver == StorePostgres && c.cfg.RealtimeMode == RealtimeListen {
		listener := pglisten.NewListener(pglisten.DefaultConfig(c.cfg.PostgresDSN()), c.reader, c.hub, c.logger)
		c.jobs.Add("order-change-listener", newRunJob(listener.Run))
		return nil
	}
	poller := polling.NewPoller(c.reader, c.hub, c.cfg.PollInterval, nil, c.logger)
	c.jobs.Add("order-change-poller", poller)
	return nil
}

func (c *CompositionRoot) uowFactory() commands.OrderUoWFactory {
	return FuncOrderUoWFactory(func() commands.OrderUoW {
		return c.uows.Create()
	})
}

func (c *CompositionRoot) CreateCreateOrderCommandHandler() commands.CreateOrderCommandHandler {
	return commands.NewCreateOrderCommandHandler(c.uowFactory(), nil)
}

func (c *CompositionRoot) CreateRequestTransitionCommandHandler() commands.RequestTransitionCommandHandler {
	return commands.NewRequestTransitionCommandHandler(c.uowFactory(), nil)
}

func (c *CompositionRoot) CreateClaimOrderCommandHandler() commands.ClaimOrderCommandHandler {
	return commands.NewClaimOrderCommandHandler(c.uowFactory(), nil)
}

func (c *CompositionRoot) CreateAssignRiderCommandHandler() commands.AssignRiderCommandHandler {
	return commands.NewAssignRiderCommandHandler(c.uowFactory(), nil)
}

func (c *CompositionRoot) CreateCancelOrderCommandHandler() commands.CancelOrderCommandHandler {
	return commands.NewCancelOrderCommandHandler(c.uowFactory(), nil)
}

func (c *CompositionRoot) CreateGetOrderQueryHandler() queries.GetOrderQueryHandler {
	return queries.NewGetOrderQueryHandler(c.reader)
}

func (c *CompositionRoot) CreateGetActiveOrdersQueryHandler() queries.GetActiveOrdersQueryHandler {
	return queries.NewGetActiveOrdersQueryHandler(c.reader, c.activeView(), nil)
}

func (c *CompositionRoot) CreateGetOrderHistoryQueryHandler() queries.GetOrderHistoryQueryHandler {
	return queries.NewGetOrderHistoryQueryHandler(c.reader, c.history)
}

// CreateGetWaitEstimateQueryHandler returns the shared handler; its cache is filled by the refresh job.
func (c *CompositionRoot) CreateGetWaitEstimateQueryHandler() queries.GetWaitEstimateQueryHandler {
	return c.estimate
}

func (c *CompositionRoot) activeView() services.ActiveView {
	return services.NewActiveView(c.cfg.ActiveTerminalRetention)
}

// CreateDispatcher builds the notification dispatcher and registers it with the job manager.
// Without AMQP_URL only staff notices are posted.
func (c *CompositionRoot) CreateDispatcher() *notifications.Dispatcher {
	cfg := notifications.DefaultConfig()
	cfg.Workers = c.cfg.NotifyWorkers
	cfg.QueueSize = c.cfg.NotifyQueueSize
	cfg.MaxElapsed = c.cfg.NotifyMaxElapsed
	cfg.DrainTimeout = c.cfg.NotifyDrain

	opts := []notifications.Option{
		notifications.WithNoticeBoard(c.notices),
		notifications.WithLogger(c.logger),
		notifications.WithMeter(c.obs.Meter("orderflow/notifications")),
	}
	if c.cfg.AMQPURL != "" {
		publisher := amqp.NewPublisher(amqp.Dial(c.cfg.AMQPURL))
		c.closers = append(c.closers, publisher.Close)
		opts = append(opts, notifications.WithMessageSender(publisher), notifications.WithPushSender(publisher))
	} else {
		c.logger.Warn("AMQP_URL is not set, customer messages and rider pushes are disabled")
	}

	d := notifications.NewDispatcher(cfg, opts...)
	c.jobs.Add("notification-dispatcher", jobFuncs{
		start: func() error {
			d.Start(context.Background())
			return nil
		},
		stop: d.Stop,
	})
	return d
}

// CreateCoordinator wires every use case behind the traced coordinator.
func (c *CompositionRoot) CreateCoordinator() coordinator.Service {
	inner := coordinator.New(coordinator.Handlers{
		CreateOrder:       c.CreateCreateOrderCommandHandler(),
		RequestTransition: c.CreateRequestTransitionCommandHandler(),
		ClaimOrder:        c.CreateClaimOrderCommandHandler(),
		AssignRider:       c.CreateAssignRiderCommandHandler(),
		CancelOrder:       c.CreateCancelOrderCommandHandler(),
		GetOrder:          c.CreateGetOrderQueryHandler(),
		GetActiveOrders:   c.CreateGetActiveOrdersQueryHandler(),
		GetOrderHistory:   c.CreateGetOrderHistoryQueryHandler(),
		GetWaitEstimate:   c.CreateGetWaitEstimateQueryHandler(),
	}, c.CreateDispatcher(), c.cfg.StoreTimeout)

	return observability.NewCoordinator(inner,
		observability.WithLogger(c.logger),
		observability.WithTracer(c.obs.Tracer("orderflow/coordinator")),
		observability.WithMeter(c.obs.Meter("orderflow/coordinator")),
	)
}

func (c *CompositionRoot) CreateFeed() *realtime.Feed {
	return realtime.NewFeed(c.hub, c.reader, c.activeView(), nil, c.logger)
}

// CreateEcho builds the HTTP server around a fresh coordinator and feed.
func (c *CompositionRoot) CreateEcho(ctx context.Context) (*echo.Echo, error) {
	doc, err := httpin.LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	server := httpin.NewServer(c.CreateCoordinator(), c.CreateFeed(), c.notices)
	return httpin.NewEcho(server, doc, []byte(c.cfg.AuthJWTSecret), c.logger)
}

// Start launches the background jobs: the change source, the dispatcher and the estimate refresh.
func (c *CompositionRoot) Start() error {
	c.jobs.Add("estimate-refresh", jobs.NewEstimateRefreshJob(c.estimate, c.cfg.EstimateRefreshInterval, c.cfg.StoreTimeout, c.logger))
	return c.jobs.StartAll()
}

// Close stops the jobs and releases connections in reverse order of acquisition.
func (c *CompositionRoot) Close() {
	c.jobs.StopAll()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

type FuncOrderUoWFactory func() commands.OrderUoW

func (f FuncOrderUoWFactory) Create() commands.OrderUoW {
	return f()
}

type jobFuncs struct {
	start func() error
	stop  func()
}

func (j jobFuncs) Start() error { return j.start() }
func (j jobFuncs) Stop()        { j.stop() }

// runJob adapts a blocking Run(ctx) loop to jobs.Job.
type runJob struct {
	run    func(ctx context.Context) error
	cancel context.CancelFunc
	done   chan struct{}
}

func newRunJob(run func(ctx context.Context) error) *runJob {
	return &runJob{run: run}
}

func (j *runJob) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})
	go func() {
		defer close(j.done)
		if err := j.run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("background job stopped", "error", err)
		}
	}()
	return nil
}

func (j *runJob) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
}
