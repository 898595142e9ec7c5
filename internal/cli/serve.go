package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"podnest/internal/db"
	"podnest/internal/router"
	"podnest/internal/services"
	"podnest/internal/utils"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not migrate the schema on start")
	return cmd
}

func runServe(parent context.Context, opts *RootOptions, skipMigrate bool) error {
	cfg, log, gdb, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	if !skipMigrate {
		if err := db.Migrate(gdb); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化异步排名服务
	ranking := services.NewRankingService(gdb, log)
	ranking.Start(ctx)

	mail := services.NewMailService(cfg.SMTP, cfg.SiteURL, log)
	defer mail.Wait()

	cache, err := utils.NewCache(cfg.CacheSize)
	if err != nil {
		return err
	}

	engine := router.New(cfg, log, router.Services{
		Identity:  services.NewIdentityService(gdb),
		Graph:     services.NewSocialGraphService(gdb),
		Pods:      services.NewPodService(gdb),
		Bookmarks: services.NewBookmarkService(gdb),
		Stories:   services.NewStoryService(gdb),
		Ranking:   ranking,
		Mail:      mail,
	}, cache)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Podnest server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}
