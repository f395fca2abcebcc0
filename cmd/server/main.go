package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Classroom/internal/adapters/http"
	"github.com/dkeye/Classroom/internal/adapters/i18n"
	"github.com/dkeye/Classroom/internal/adapters/roomapi"
	"github.com/dkeye/Classroom/internal/adapters/rtc"
	gateway "github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/app/extension"
	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/app/ui"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, v, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(config.ParseLevel(cfg.LogLevel))
	config.WatchLogLevel(v)

	local, err := domain.NewUser(cfg.User.UUID, cfg.User.Name, domain.Role(cfg.User.Role))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid user config")
	}
	room := domain.Room{Name: cfg.Room.Name, Type: domain.RoomType(cfg.Room.Type)}

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	gw, err := gateway.Dial(dialCtx, cfg.GatewayURL, gateway.Options{ChatLimit: cfg.Timers.ChatLimit})
	dialCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("gateway unavailable")
	}
	defer gw.Close()

	api := roomapi.New(roomapi.Options{BaseURL: cfg.APIBaseURL, AppID: cfg.AppID})
	media := rtc.NewService(rtc.Config{
		ICEServers: cfg.Media.ICEServers,
		Camera:     cfg.Media.Camera,
		Microphone: cfg.Media.Microphone,
	}, gw)
	uiStore := ui.NewStore(ui.DefaultMaxToasts)

	o := orch.New(room, *local, orch.Deps{
		RoomAPI:     api,
		Messaging:   gw,
		Services:    api,
		Media:       media,
		Invitations: api,
		UI:          uiStore,
		I18n:        i18n.New(cfg.Locale),
	}, orch.Options{
		ClockPeriod:     cfg.Timers.ClockPeriod,
		DispatchTimeout: cfg.Timers.DispatchTimeout,
		QueueSize:       cfg.Timers.QueueSize,
		Extension: extension.Options{
			TickDuration: cfg.Timers.TickDuration,
			TickStep:     cfg.Timers.TickStep,
			DelayStep:    cfg.Timers.DelayStep,
		},
	})
	defer o.Close()

	r := router.SetupRouter(ctx, cfg, o, uiStore)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("room", room.Name).Str("user", local.UserUUID).Msg("Classroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	select {
	case <-ctx.Done():
	case <-gw.Done():
		log.Error().Msg("gateway connection lost")
	}
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if o.Joined() {
		o.Leave(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
