package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/api"
	"github.com/sells-group/trailscout/internal/recommend"
	"github.com/sells-group/trailscout/internal/trails"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trail API and vector tile server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initEnv(ctx, "serve", true)
		if err != nil {
			return err
		}
		defer env.Close()

		profiles, err := loadProfiles()
		if err != nil {
			return err
		}

		var cache *trails.TileCache
		if cfg.Tiles.CacheEntries > 0 {
			cache = trails.NewTileCache(cfg.Tiles.CacheEntries, time.Duration(cfg.Tiles.CacheTTLSecs)*time.Second)
		}
		tiles := trails.NewTileHandler(env.Pool, trails.DefaultLayers(), cache)

		server := api.NewServer(cfg.Server, api.Deps{
			Trails:      env.Trails,
			Runs:        env.Runs,
			Recommender: recommend.NewService(env.Trails, profiles),
			Profiles:    profiles,
			Importer:    newImporter(env, tiles),
			Tiles:       tiles,
			Regions:     cfg.Import.Regions,
		}, api.WithBaseContext(ctx))

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			// A second signal now kills the process.
			stop()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Strings("profiles", profiles.Names()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("waiting for background imports")
		waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Wait(waitCtx); err != nil {
			zap.L().Warn("background imports still running at exit", zap.Error(err))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
