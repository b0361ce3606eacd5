package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/backend"
	"github.com/acorn-io/acorn-domains/pkg/version"
	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type apiServer struct {
	ctx  context.Context
	log  *logrus.Entry
	port int
}

func NewAPIServer(ctx context.Context, log *logrus.Entry, port int) *apiServer {
	return &apiServer{
		ctx:  ctx,
		log:  log,
		port: port,
	}
}

func newRouter(log *logrus.Entry, b backend.Backend) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(loggingMiddleware(log))
	h := newHandler(b)

	// When functioning properly, these routes will return the version of tha app that is running
	router.Path("/").HandlerFunc(h.root)
	router.Path("/healthz").HandlerFunc(h.root)
	router.Path("/metrics").Handler(promhttp.Handler())

	api := router.PathPrefix("/v1").Subrouter()

	// POSTing to domains registers a custom domain and returns its id and token. Further requests (below) against
	// the domain resource require authentication using the token
	api.Path("/domains").Methods("POST").HandlerFunc(h.createDomain)

	// All routes using this authedRoutes subrouter will require token based authentication
	authedRoutes := api.PathPrefix("/domains/{domain}").Subrouter()
	authedRoutes.Use(tokenAuthMiddleware(b))

	authedRoutes.Path("").Methods("GET").HandlerFunc(h.getDomain)
	authedRoutes.Path("/instructions").Methods("GET").HandlerFunc(h.instructions)
	authedRoutes.Path("/records").Methods("POST").HandlerFunc(h.applyRecord)
	authedRoutes.Path("/records").Methods("GET").HandlerFunc(h.listRecords)
	authedRoutes.Path("/validation").Methods("GET").HandlerFunc(h.validate)

	authedRoutes.Path("/verification").Methods("POST").HandlerFunc(h.startVerification)
	authedRoutes.Path("/verification").Methods("GET").HandlerFunc(h.getVerification)
	authedRoutes.Path("/verification").Methods("DELETE").HandlerFunc(h.stopVerification)

	// Note: this allows not found urls to be logged via the middleware
	// It **HAS** to be defined after all other paths are defined.
	router.NotFoundHandler = router.NewRoute().HandlerFunc(http.NotFound).GetHandler()

	return router
}

func (a *apiServer) Start(b backend.Backend) error {
	logrus.Infof("Version: %s", version.Get())

	// Below this point is where the server is started and graceful shutdown occurs.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           ghandlers.CORS()(newRouter(a.log, b)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.log.WithField("port", a.port).Info("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Fatalf("listen: %s\n", err)
		}
	}()

	go b.StartSweepDaemon(a.ctx.Done())

	<-a.ctx.Done()

	a.log.Info("shutting down the api server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	err := srv.Shutdown(ctx)
	b.Shutdown()
	if err != nil {
		a.log.WithError(err).Error("unable to shutdown the api server gracefully")
		return err
	}

	return nil
}
