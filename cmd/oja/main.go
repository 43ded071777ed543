// oja is the retail economics metrics API daemon: an HTTP API over a
// BigQuery warehouse and a MongoDB document store, with a Redis cache-aside
// layer in front of both.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/carlmjohnson/versioninfo"
	cli "github.com/urfave/cli/v2"

	"github.com/whitespace-ai/oja/docstore"
	"github.com/whitespace-ai/oja/rediscache"
	"github.com/whitespace-ai/oja/retail"
	"github.com/whitespace-ai/oja/warehouse"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "oja",
		Usage:   "retail economics metrics API service",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "gcp-project",
			Usage:   "Google Cloud project holding the warehouse",
			EnvVars: []string{"GOOGLE_CLOUD_PROJECT"},
		},
		&cli.StringFlag{
			Name:    "bigquery-dataset",
			Usage:   "BigQuery dataset with the retail order tables",
			EnvVars: []string{"BIGQUERY_DATASET"},
		},
		&cli.StringFlag{
			Name:    "mongodb-uri",
			Usage:   "MongoDB connection URI",
			Value:   "mongodb://localhost:27017",
			EnvVars: []string{"MONGODB_URI"},
		},
		&cli.StringFlag{
			Name:    "mongodb-db",
			Usage:   "MongoDB database name",
			Value:   "retail",
			EnvVars: []string{"MONGODB_DB"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL: redis://<user>:<pass>@<hostname>:6379/<db>",
			Value:   "redis://localhost:6379/0",
			EnvVars: []string{"OJA_REDIS_URL", "REDIS_URL"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "how long successful lookups stay cached",
			Value:   time.Hour,
			EnvVars: []string{"REDIS_TTL", "OJA_CACHE_TTL"},
		},
		&cli.DurationFlag{
			Name:    "cache-err-ttl",
			Usage:   "how long errored lookups stay cached",
			Value:   2 * time.Minute,
			EnvVars: []string{"OJA_CACHE_ERR_TTL"},
		},
		&cli.IntFlag{
			Name:    "warehouse-qps",
			Usage:   "max number of warehouse queries per second",
			Value:   10,
			EnvVars: []string{"OJA_WAREHOUSE_QPS"},
		},
		&cli.StringFlag{
			Name:    "env",
			Usage:   "deployment environment (development, production)",
			Value:   "development",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "enable debug logging",
			EnvVars: []string{"DEBUG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"OJA_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		checkCmd,
		searchCmd,
		loadBoundariesCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
		if cctx.Bool("debug") {
			level = slog.LevelDebug
		}
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func setupWarehouse(cctx *cli.Context, logger *slog.Logger) (*warehouse.Store, error) {
	return warehouse.NewStore(cctx.Context, warehouse.Config{
		ProjectID:        cctx.String("gcp-project"),
		Dataset:          cctx.String("bigquery-dataset"),
		QueriesPerSecond: cctx.Int("warehouse-qps"),
		Logger:           logger,
	})
}

func setupDocstore(cctx *cli.Context, logger *slog.Logger) (*docstore.Store, error) {
	return docstore.NewStore(cctx.Context, cctx.String("mongodb-uri"), cctx.String("mongodb-db"), logger)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the combined metrics+records API daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the HTTP API",
			Value:   ":8000",
			EnvVars: []string{"OJA_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"OJA_METRICS_LISTEN"},
		},
		&cli.StringSliceFlag{
			Name:    "allowed-origins",
			Usage:   "CORS allowed origins",
			Value:   cli.NewStringSlice("*"),
			EnvVars: []string{"ALLOWED_ORIGINS"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)

		wh, err := setupWarehouse(cctx, logger)
		if err != nil {
			return fmt.Errorf("failed to set up warehouse client: %w", err)
		}
		defer wh.Close()

		ds, err := setupDocstore(cctx, logger)
		if err != nil {
			return fmt.Errorf("failed to set up document store client: %w", err)
		}
		defer ds.Close(context.Background())

		cached, err := rediscache.New(
			wh,
			ds,
			cctx.String("redis-url"),
			cctx.Duration("cache-ttl"),
			cctx.Duration("cache-err-ttl"),
			10_000,
			logger,
		)
		if err != nil {
			return fmt.Errorf("failed to set up cache: %w", err)
		}

		srv, err := retail.NewServer(cached, cached, retail.Config{
			Logger:         logger,
			Bind:           cctx.String("bind"),
			AllowedOrigins: cctx.StringSlice("allowed-origins"),
		})
		if err != nil {
			return fmt.Errorf("failed to construct server: %w", err)
		}

		// prometheus HTTP endpoint: /metrics
		go func() {
			runtime.SetBlockProfileRate(10)
			runtime.SetMutexProfileFraction(10)
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				// NOTE: not crashing or halting process here
			}
		}()

		return srv.RunAPI()
	},
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "verify connectivity to redis, the document store, and the warehouse",
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stderr)
		ctx := cctx.Context

		ds, err := setupDocstore(cctx, logger)
		if err != nil {
			return fmt.Errorf("document store check failed: %w", err)
		}
		defer ds.Close(context.Background())
		fmt.Println("document store: ok")

		wh, err := setupWarehouse(cctx, logger)
		if err != nil {
			return fmt.Errorf("warehouse check failed: %w", err)
		}
		defer wh.Close()
		if err := wh.Ping(ctx); err != nil {
			return fmt.Errorf("warehouse check failed: %w", err)
		}
		fmt.Println("warehouse: ok")

		// the cache constructor pings redis
		_, err = rediscache.New(wh, ds, cctx.String("redis-url"),
			cctx.Duration("cache-ttl"), cctx.Duration("cache-err-ttl"), 100, logger)
		if err != nil {
			return fmt.Errorf("redis check failed: %w", err)
		}
		fmt.Println("redis: ok")
		return nil
	},
}

var searchCmd = &cli.Command{
	Name:      "search",
	Usage:     "run a retailer search against the warehouse",
	ArgsUsage: `<query>`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "city",
			Usage: "restrict results to one city",
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stderr)

		q := cctx.Args().First()
		if q == "" {
			return fmt.Errorf("need to provide a search query")
		}

		wh, err := setupWarehouse(cctx, logger)
		if err != nil {
			return err
		}
		defer wh.Close()

		results, err := wh.SearchRetailers(cctx.Context, q, cctx.String("city"))
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

var loadBoundariesCmd = &cli.Command{
	Name:      "load-boundaries",
	Usage:     "upsert LGA boundary documents from a GeoJSON file",
	ArgsUsage: `<file.geojson>`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "skip-cache-purge",
			Usage: "don't purge cached LGA entries after loading",
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stderr)
		ctx := cctx.Context

		path := cctx.Args().First()
		if path == "" {
			return fmt.Errorf("need to provide a GeoJSON file path")
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		ds, err := setupDocstore(cctx, logger)
		if err != nil {
			return err
		}
		defer ds.Close(context.Background())

		codes, err := ds.LoadLGABoundaries(ctx, f)
		if err != nil {
			return fmt.Errorf("boundary load failed: %w", err)
		}
		fmt.Printf("loaded %d LGA boundaries\n", len(codes))

		if cctx.Bool("skip-cache-purge") {
			return nil
		}

		// boundary rewrites invalidate cached LGA reads
		cache, err := rediscache.New(nil, ds, cctx.String("redis-url"),
			cctx.Duration("cache-ttl"), cctx.Duration("cache-err-ttl"), 100, logger)
		if err != nil {
			logger.Warn("could not reach redis, cached LGA entries not purged", "err", err)
			return nil
		}
		n, err := cache.PurgeLGAs(ctx)
		if err != nil {
			return fmt.Errorf("cache purge failed: %w", err)
		}
		fmt.Printf("purged %d cached LGA entries\n", n)
		return nil
	},
}
