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

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/vukmarkovic/Europace-sub000/config"
	"github.com/vukmarkovic/Europace-sub000/internal/repositories/auth"
	"github.com/vukmarkovic/Europace-sub000/internal/repositories/defaultmatching"
	"github.com/vukmarkovic/Europace-sub000/internal/repositories/field"
	"github.com/vukmarkovic/Europace-sub000/internal/repositories/match"
	"github.com/vukmarkovic/Europace-sub000/internal/services/matchstore"
	"github.com/vukmarkovic/Europace-sub000/pkg/bitrix"
	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	"github.com/vukmarkovic/Europace-sub000/pkg/europace"
	"github.com/vukmarkovic/Europace-sub000/pkg/expressions"
	"github.com/vukmarkovic/Europace-sub000/pkg/health"
	"github.com/vukmarkovic/Europace-sub000/pkg/httpclient"
	"github.com/vukmarkovic/Europace-sub000/pkg/kafka"
	"github.com/vukmarkovic/Europace-sub000/pkg/matching"
	"github.com/vukmarkovic/Europace-sub000/pkg/middleware"
	"github.com/vukmarkovic/Europace-sub000/pkg/processor"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/cases"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/fields"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/records"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/signin"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/tenant"
	"github.com/vukmarkovic/Europace-sub000/pkg/startup"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

const shutdownTimeout = 30 * time.Second

func serve(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.OTLPEnabled,
		ServiceName: cfg.AppName,
		Version:     cfg.AppVersion,
		Endpoint:    cfg.OTLPEndpoint,
		Protocol:    cfg.OTLPProtocol,
		Insecure:    cfg.OTLPInsecure,
		Timeout:     10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	var s storage
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	s.addDatabase(boot, cfg, logger)
	s.addRedis(boot, cfg, logger)
	if err := boot.Start(ctx); err != nil {
		_ = boot.Stop(context.Background())
		return err
	}

	auths := auth.NewRepository(s.db, logger)
	store := matchstore.NewService(
		s.db,
		field.NewRepository(s.db, logger),
		match.NewRepository(s.db, logger),
		defaultmatching.NewRepository(s.db, logger),
		logger,
	)

	bitrixHTTP := httpclient.DefaultConfig()
	bitrixHTTP.Timeout = cfg.BitrixTimeout
	bitrixClient := bitrix.NewClient(httpclient.NewClient(bitrixHTTP, logger), auths, bitrix.Config{
		ClientID:     cfg.BitrixClientID,
		ClientSecret: cfg.BitrixClientSecret,
		OAuthURL:     cfg.BitrixOAuthURL,
	}, logger)

	matcher, err := matching.NewMatcher(store, bitrixClient, crm.NewRegistry(), logger, matching.Config{
		DefaultUTCOffset: cfg.MatchingDefaultUTCOffset,
		DefaultPhoneCode: cfg.MatchingDefaultPhoneCode,
	})
	if err != nil {
		return err
	}
	matcher.WithAuths(auths)

	europaceHTTP := httpclient.DefaultConfig()
	europaceHTTP.Timeout = cfg.EuropaceTimeout
	europaceClient := europace.NewClient(httpclient.NewClient(europaceHTTP, logger), s.redis, expressions.NewEvaluator(), europace.Config{
		TokenURL:     cfg.EuropaceTokenURL,
		APIURL:       cfg.EuropaceAPIURL,
		SignInURL:    cfg.EuropaceSignInURL,
		ClientID:     cfg.EuropaceClientID,
		ClientSecret: cfg.EuropaceClientSecret,
		TokenPath:    cfg.EuropaceTokenPath,
		CaseIDPath:   cfg.EuropaceCaseIDPath,
	}, logger)

	var (
		publisher processor.Publisher
		producer  *kafka.Producer
		consumer  *kafka.Consumer
	)
	if cfg.KafkaEnabled {
		producerConfig := kafka.DefaultProducerConfig()
		producerConfig.Brokers = cfg.KafkaBrokers
		producerConfig.Topic = cfg.KafkaResultTopic
		producerConfig.Compression = cfg.KafkaCompression
		producer, err = kafka.NewProducer(producerConfig, logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher = producer
	}

	syncProcessor := processor.NewProcessor(processor.ProcessorConfig{
		DefaultPartnerID: cfg.EuropaceDefaultPartner,
		ProcessTimeout:   time.Duration(cfg.ProcessorTimeoutSeconds) * time.Second,
	}, matcher, europaceClient, publisher, logger)

	if cfg.KafkaEnabled {
		consumerConfig := kafka.DefaultConsumerConfig()
		consumerConfig.Brokers = cfg.KafkaBrokers
		consumerConfig.Topic = cfg.KafkaSyncTopic
		consumerConfig.GroupID = cfg.KafkaConsumerGroup
		consumer, err = kafka.NewConsumer(consumerConfig, logger)
		if err != nil {
			return err
		}
		if err := consumer.Start(ctx, syncProcessor.MessageHandler()); err != nil {
			return err
		}
	}

	if err := newContainer(cfg, logger, services{
		db:        s.db,
		redis:     s.redis,
		auths:     auths,
		store:     store,
		matcher:   matcher,
		europace:  europaceClient,
		processor: syncProcessor,
	}); err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	checker := health.NewChecker(cfg.AppVersion)
	checker.AddCheck("database", func(ctx context.Context) error {
		return s.sqlxDB.PingContext(ctx)
	})
	checker.AddCheck("redis", s.redis.Ping)

	authMiddleware := middleware.TestAuth()
	if cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return err
		}
		authMiddleware = middleware.Authentication(logger, verifier)
	} else {
		logger.Warn("Authentication is disabled, tenants are taken from the X-Tenant-ID header")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(
		echomw.Recover(),
		echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.AllowOrigins}),
		otelecho.Middleware(cfg.AppName),
		middleware.Context(),
		middleware.Container(cfg.AppName),
		middleware.Logger(logger),
	)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", authMiddleware, middleware.RequireTenant())
	fields.Register(api.Group("/fields"))
	tenant.Register(api.Group("/tenants"))
	records.Register(api.Group("/records"))
	signin.Register(api.Group("/signin"))
	cases.Register(api.Group("/cases"))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting %s on %s", cfg.AppName, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			logger.WithError(err).Error("HTTP server failed")
		}
	}

	return shutdown(logger, server, checker, consumer, boot, shutdownTracing)
}

func shutdown(logger ectologger.Logger, server *http.Server, checker *health.Checker, consumer *kafka.Consumer, boot *startup.Startup, shutdownTracing func(context.Context) error) error {
	logger.Info("Shutting down")
	checker.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer: %w", err))
		}
	}
	if err := boot.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	return errors.Join(errs...)
}
