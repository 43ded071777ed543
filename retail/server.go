package retail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
)

type Server struct {
	metrics MetricsSource
	records RecordSource
	echo    *echo.Echo
	httpd   *http.Server
	logger  *slog.Logger

	requestTimeout time.Duration
}

type Config struct {
	Logger         *slog.Logger
	Bind           string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewServer(metrics MetricsSource, records RecordSource, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	requestTimeout := config.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 30 * time.Second
	}

	e := echo.New()
	e.HideBanner = true

	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		metrics:        metrics,
		records:        records,
		echo:           e,
		logger:         logger,
		requestTimeout: requestTimeout,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))
	e.Use(echoprometheus.NewMiddleware("oja"))
	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/", srv.HandleHealthCheck)
	e.GET("/_health", srv.HandleHealthCheck)

	v1 := e.Group("/api/v1")
	v1.GET("/cities", srv.handleGetCities)
	v1.GET("/cities/:city/metrics", srv.handleGetCityMetrics)
	v1.GET("/neighborhoods/:city/:name", srv.handleGetNeighborhoodMetrics)
	v1.GET("/retailers/search", srv.handleSearchRetailers)
	v1.GET("/retailers/:sellerID", srv.handleGetRetailerMetrics)
	v1.GET("/states", srv.handleListStates)
	v1.GET("/states/:code", srv.handleGetState)
	v1.GET("/lgas", srv.handleListLGAs)
	v1.GET("/lgas/:code", srv.handleGetLGA)
	v1.GET("/brands", srv.handleListBrands)
	v1.GET("/brands/:name", srv.handleGetBrand)
	v1.GET("/categories", srv.handleListCategories)
	v1.GET("/categories/:name", srv.handleGetCategory)
	v1.GET("/sales", srv.handleGetSalesMetrics)

	return srv, nil
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// GenericError is the JSON error body for all non-2xx responses.
type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"detail"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{Status: "healthy", Version: versioninfo.Short()})
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if code >= 500 {
		srv.logger.Warn("HTTP request error", "statusCode", code, "path", c.Path(), "err", err)
	}
	c.JSON(code, GenericError{Error: http.StatusText(code), Message: msg})
}

// RunAPI starts the HTTP listener and blocks until an exit signal arrives,
// then drains in-flight requests.
func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

// RunMetrics serves the prometheus scrape endpoint on a separate listener.
func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.httpd.Shutdown(ctx)
}
