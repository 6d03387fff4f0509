package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/eoffice/docflow/analytics"
	"github.com/eoffice/docflow/config"
	"github.com/eoffice/docflow/engine"
	"github.com/eoffice/docflow/flow"
	"github.com/eoffice/docflow/identity"
	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/metadata"
	"github.com/eoffice/docflow/notify"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/persistence/inmem"
	rds "github.com/eoffice/docflow/persistence/redis"
	"github.com/eoffice/docflow/rest"
	"github.com/eoffice/docflow/routing"
	"github.com/eoffice/docflow/service"
	"github.com/eoffice/docflow/timers"
	"github.com/eoffice/docflow/util"
)

// Agent assembles the engine and runs it as one process.
type Agent struct {
	Config config.Config

	store             persistence.Storage
	directory         *identity.StaticDirectory
	registry          *routing.AssigneeRegistry
	resolver          *routing.Resolver
	dispatcher        *notify.Dispatcher
	stateMachine      *flow.StateMachine
	actionEngine      *engine.ActionEngine
	definitionService metadata.DefinitionService
	executionService  *service.ExecutionService
	timerManager      *timers.TimerManager
	reminderWorker    *util.TickWorker
	httpServer        *rest.Server

	shutdown     bool
	shutdowns    chan struct{}
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupAnalytics,
		a.setupStorage,
		a.setupIdentity,
		a.setupTimers,
		a.setupRouting,
		a.setupDispatcher,
		a.setupStateMachine,
		a.setupActionEngine,
		a.setupDefinitionService,
		a.setupExecutionService,
		a.setupReminderWorker,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Directory exposes the identity store so embedders can load users and
// roles before Start.
func (a *Agent) Directory() *identity.StaticDirectory {
	return a.directory
}

// Registry exposes the dynamic assignee registry; resolver functions must
// be registered before any definition referencing them runs.
func (a *Agent) Registry() *routing.AssigneeRegistry {
	return a.registry
}

func (a *Agent) ExecutionService() *service.ExecutionService {
	return a.executionService
}

func (a *Agent) setupAnalytics() error {
	return analytics.InitDataCollector(a.Config.AnalyticsConfig)
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.store = rds.NewRedisStorage(rds.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		})
	case config.STORAGE_TYPE_INMEM:
		a.store = inmem.NewStorage()
	default:
		return fmt.Errorf("unknown storage type %s", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupIdentity() error {
	a.directory = identity.NewStaticDirectory()
	return nil
}

func (a *Agent) setupTimers() error {
	wheelSize := a.Config.TimerWheelSize
	if wheelSize <= 0 {
		wheelSize = 1024
	}
	a.timerManager = timers.NewTimerManager(wheelSize)
	a.timerManager.Start()
	return nil
}

func (a *Agent) setupRouting() error {
	a.registry = routing.NewAssigneeRegistry()
	a.resolver = routing.NewResolver(a.store.Documents(), a.directory, a.registry)
	return nil
}

func (a *Agent) setupDispatcher() error {
	a.dispatcher = notify.NewDispatcher(a.store, a.resolver, a.directory, notify.NewLogMailer(), &a.wg)
	a.dispatcher.Start()
	return nil
}

func (a *Agent) setupStateMachine() error {
	a.stateMachine = flow.NewStateMachine(a.store, a.dispatcher)
	return nil
}

func (a *Agent) setupActionEngine() error {
	a.actionEngine = engine.NewActionEngine(a.store, a.resolver, a.stateMachine, a.dispatcher)
	return nil
}

func (a *Agent) setupDefinitionService() error {
	a.definitionService = metadata.NewDefinitionService(a.store.Metadata(), a.store.Documents())
	return nil
}

func (a *Agent) setupExecutionService() error {
	a.executionService = service.NewExecutionService(a.store, a.definitionService, a.resolver,
		a.stateMachine, a.actionEngine, a.dispatcher, a.timerManager)
	return nil
}

func (a *Agent) setupReminderWorker() error {
	intervalHr := a.Config.ReminderIntervalHr
	if intervalHr <= 0 {
		intervalHr = 24
	}
	a.reminderWorker = util.NewTickWorker("reminder-worker", time.Duration(intervalHr)*time.Hour, func() {
		a.executionService.SendReminders()
		a.executionService.SendDigests()
	}, &a.wg)
	a.reminderWorker.Start()
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.definitionService, a.executionService, a.store)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.reminderWorker.Stop()
			return nil
		},
		func() error {
			a.dispatcher.Stop()
			return nil
		},
		func() error {
			a.timerManager.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
