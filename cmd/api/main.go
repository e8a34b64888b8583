package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/harentsoaR/hospital-api/internal/config"
	"github.com/harentsoaR/hospital-api/internal/handlers"
	"github.com/harentsoaR/hospital-api/internal/logger"
	"github.com/harentsoaR/hospital-api/internal/metrics"
	"github.com/harentsoaR/hospital-api/internal/middleware"
	"github.com/harentsoaR/hospital-api/internal/services"
	"github.com/harentsoaR/hospital-api/internal/store"
	"github.com/harentsoaR/hospital-api/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "hms-api",
		Short:        "Hospital management REST API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "dotenv files loaded before reading the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, log, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, log, nil
}

func connectStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		st.Close(context.Background())
		return nil, err
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("connected to MongoDB")
	return st, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := connectStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("closing MongoDB client")
		}
	}()

	var images services.ImageHost = services.DisabledImageHost{}
	if cfg.AvatarBucket != "" {
		s3host, err := services.NewS3ImageHost(ctx, services.S3Options{
			Bucket:    cfg.AvatarBucket,
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AvatarEndpoint,
			PublicURL: cfg.AvatarPublicURL,
		})
		if err != nil {
			return err
		}
		images = s3host
	} else {
		log.Warn().Msg("AVATAR_BUCKET not set; adding doctors will fail")
	}

	tokens, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpires)
	if err != nil {
		return err
	}
	hasher := utils.NewPasswordHasher(cfg.BcryptCost)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	svc := handlers.Services{
		Auth: services.NewAuthService(st.Users, hasher, tokens, collector, log),
		Doctors: services.NewDoctorService(st.Users, hasher, images, services.DoctorOptions{
			Sort:      store.DoctorSort(cfg.DoctorSort),
			MaxUpload: cfg.MaxUploadSize,
			TmpDir:    cfg.UploadTmpDir,
		}, log),
		Appointments: services.NewAppointmentService(st.Appointments, st.Users, collector, log),
		Messages:     services.NewMessageService(st.Messages, log),
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  rate.Limit(cfg.RateLimitRPS),
		Burst: cfg.RateLimitBurst,
	}, log)
	defer limiter.Stop()

	h := handlers.NewHandler(svc, handlers.CookieOptions{Secure: cfg.CookieSecure}, log)
	router, err := handlers.NewRouter(h, handlers.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		MaxBodySize:    cfg.MaxUploadSize,
		Limiter:        limiter,
		Metrics:        collector,
		TrustedProxies: cfg.Proxies(),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an Admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var in services.AccountInput
			in.Email, _ = cmd.Flags().GetString("email")
			in.Password, _ = cmd.Flags().GetString("password")
			in.FirstName, _ = cmd.Flags().GetString("first-name")
			in.LastName, _ = cmd.Flags().GetString("last-name")
			in.Phone, _ = cmd.Flags().GetString("phone")
			if in.Password == "" {
				in.Password = os.Getenv("ADMIN_PASSWORD")
			}

			ctx := cmd.Context()
			st, err := connectStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			tokens, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpires)
			if err != nil {
				return err
			}
			auth := services.NewAuthService(st.Users, utils.NewPasswordHasher(cfg.BcryptCost), tokens, metrics.Nop{}, log)

			admin, err := auth.CreateAdmin(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", admin.Email, admin.ID.Hex())
			return nil
		},
	}
	cmd.Flags().String("email", "", "admin email")
	cmd.Flags().String("password", "", "admin password (defaults to $ADMIN_PASSWORD)")
	cmd.Flags().String("first-name", "", "first name")
	cmd.Flags().String("last-name", "", "last name")
	cmd.Flags().String("phone", "", "phone number")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("first-name")
	cmd.MarkFlagRequired("last-name")
	return cmd
}
