package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log15 "github.com/inconshreveable/log15/v3"
	"golang.ngrok.com/ngrok"
	ngrokcfg "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"bookclubbot/bot"
	"bookclubbot/cache"
	"bookclubbot/config"
	"bookclubbot/gateway"
	"bookclubbot/meeting"
	"bookclubbot/poll"
	"bookclubbot/scheduler"
	"bookclubbot/sheets"
	"bookclubbot/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log15.Crit("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := log15.New()
	if lvl, err := log15.LvlFromString(cfg.LogLevel); err == nil {
		logger.SetHandler(log15.LvlFilterHandler(lvl, log15.StdoutHandler))
	}

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Crit("database connection failed", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	c, err := cache.New(cfg.RedisURL, logger)
	if err != nil {
		logger.Crit("redis connection failed", "err", err)
		os.Exit(1)
	}
	defer c.Close()

	loc, err := time.LoadLocation(cfg.MeetingTimezone)
	if err != nil {
		logger.Crit("invalid meeting timezone", "tz", cfg.MeetingTimezone, "err", err)
		os.Exit(1)
	}

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.BotToken, logger)
	engine := poll.NewEngine(st, gw, logger)
	defer engine.Shutdown()
	meetings := meeting.NewScheduler(st, gw, meeting.NewParser(loc), cfg.MeetingChannel, logger)
	source := sheets.NewSource(cfg.SheetBaseURL, logger)
	b := bot.New(st, gw, engine, meetings, source, c, cfg.CommandPrefix, cfg.CommandCategory, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reconstruct countdowns and catch up on polls that expired while the
	// process was down, before accepting new traffic.
	if err := engine.Recover(ctx); err != nil {
		logger.Error("poll recovery failed, relying on the reconcile sweep", "err", err)
	}

	jobs := scheduler.Start(engine, logger)
	defer jobs.Stop()

	server := &http.Server{Handler: SetupRouter(b, time.Now())}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ln, err := listen(ctx, cfg.Port, logger)
		if err != nil {
			return err
		}
		logger.Info("server listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Crit("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// listen opens an ngrok tunnel when NGROK_AUTHTOKEN is set (webhook
// development), otherwise a plain TCP listener.
func listen(ctx context.Context, port string, logger log15.Logger) (net.Listener, error) {
	if os.Getenv("NGROK_AUTHTOKEN") != "" {
		tun, err := ngrok.Listen(ctx, ngrokcfg.HTTPEndpoint(), ngrok.WithAuthtokenFromEnv())
		if err != nil {
			return nil, err
		}
		logger.Info("ngrok tunnel established", "url", tun.URL())
		return tun, nil
	}
	return net.Listen("tcp", ":"+port)
}
