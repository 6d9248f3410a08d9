package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/signalcontrol/internal/log"
	"github.com/chrissnell/signalcontrol/internal/types"
	"github.com/chrissnell/signalcontrol/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Pipeline is the part of the refresh controller the REST server reads from
// and drives
type Pipeline interface {
	Latest() (*types.Cycle, bool)
	RunCycle(ctx context.Context) (*types.Cycle, error)
	Operator() types.OperatorState
	SetOperator(op types.OperatorState)
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	pipeline   Pipeline
	Server     http.Server
	logger     *zap.SugaredLogger
	handlers   *Handlers

	shutdownTimeout time.Duration
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, pipeline Pipeline, rc config.RESTServerData, logger *zap.SugaredLogger) (*Controller, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("REST server requires a pipeline")
	}

	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = config.DefaultListenAddr
	}
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		pipeline:   pipeline,
		logger:     logger.Named("rest"),

		shutdownTimeout: 5 * time.Second,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infow("Starting REST server controller", "addr", c.Server.Addr, "tls", c.restConfig.Cert != "")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
		defer cancel()
		if err := c.Server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warnf("REST server shutdown error: %v", err)
		}
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() http.Handler {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cycle", c.handlers.GetCycle).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", c.handlers.GetSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/plan", c.handlers.GetPlan).Methods(http.MethodGet)
	api.HandleFunc("/signal", c.handlers.GetSignal).Methods(http.MethodGet)
	api.HandleFunc("/impact", c.handlers.GetImpact).Methods(http.MethodGet)
	api.HandleFunc("/refresh", c.handlers.PostRefresh).Methods(http.MethodPost)
	api.HandleFunc("/operator", c.handlers.GetOperator).Methods(http.MethodGet)
	api.HandleFunc("/operator", c.handlers.PutOperator).Methods(http.MethodPut)

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)

	if !c.restConfig.EnableCORS {
		return router
	}

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(router)
}
