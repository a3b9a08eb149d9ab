package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/okriva/opgate/internal/admin"
	"github.com/okriva/opgate/internal/observability"
	"github.com/okriva/opgate/internal/op"
	"github.com/okriva/opgate/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "path to opgated config.toml")
	flag.Parse()

	observability.InitLogger("opgated")

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opgated: %v\n", err)
		os.Exit(1)
	}

	router := op.NewRouter()
	registerBuiltins(router)

	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "opgated: %v\n", err)
		os.Exit(1)
	}

	if cfg.AdminListenAddr != "" {
		plane := admin.New("opgated", router, cfg.CorsOrigins)
		go func() {
			if err := plane.Serve(cfg.AdminListenAddr); err != nil {
				log.Error().Err(err).Msg("admin plane stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutdown signal received, draining")
	if err := srv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "opgated: %v\n", err)
		os.Exit(1)
	}
}

// registerBuiltins installs the operations every deployment gets for free.
// Real operations are registered by the embedding application before Start.
func registerBuiltins(router *op.Router) {
	router.Register("ping", func(ctx context.Context, req *op.Request) (op.Result, error) {
		return op.Ok("pong"), nil
	})
	router.Register("echo", func(ctx context.Context, req *op.Request) (op.Result, error) {
		if req == nil {
			return op.Ok(""), nil
		}
		return op.Ok(req.Content), nil
	})
}
