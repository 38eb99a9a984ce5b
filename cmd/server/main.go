// Command server runs the hedgegrid decision engine: it loads config,
// bootstraps the engine and durable store, and serves the REST/websocket
// API until a termination signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"hedgegrid/internal/bootstrap"
)

var (
	version = "dev"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("hedgegrid", version)
		os.Exit(0)
	}

	ctx := context.Background()
	app, err := bootstrap.NewApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Shutdown(10 * time.Second)

	app.Logger.Info("hedgegrid server starting",
		"addr", app.Cfg.Server.Addr,
		"symbol", app.Cfg.Engine.Symbol,
		"store_backend", app.Cfg.Store.Backend,
	)

	httpRunner := bootstrap.NewHTTPRunner(app.Cfg.Server.Addr, app.BuildAPI())

	runners := []bootstrap.Runner{httpRunner}
	if metricsRunner := app.MetricsRunner(); metricsRunner != nil {
		app.Logger.Info("metrics listening on dedicated port", "port", app.Cfg.Telemetry.MetricsPort)
		runners = append(runners, metricsRunner)
	}

	if err := app.Run(runners...); err != nil {
		app.Logger.Error("hedgegrid exited with error", "error", err)
		os.Exit(1)
	}
}
