package main

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vukmarkovic/Europace-sub000/config"
	"github.com/vukmarkovic/Europace-sub000/internal/repositories/defaultmatching"
	"github.com/vukmarkovic/Europace-sub000/internal/repositories/field"
	"github.com/vukmarkovic/Europace-sub000/pkg/catalog"
	"github.com/vukmarkovic/Europace-sub000/pkg/database"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/redis"
	"github.com/vukmarkovic/Europace-sub000/pkg/startup"
)

// storage holds the connections the startup dependencies open.
type storage struct {
	db     database.DB
	sqlxDB *sqlx.DB
	redis  *redis.Client
}

// addDatabase registers the database, its migrations and the catalog seed.
func (s *storage) addDatabase(boot *startup.Startup, cfg *config.Config, logger ectologger.Logger) {
	boot.AddDependency(startup.Dependency{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			db, sqlxDB, err := database.Open(ctx, cfg.DatabaseDSN(), logger)
			if err != nil {
				return err
			}
			sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
			s.db, s.sqlxDB = db, sqlxDB
			return nil
		},
		StopFunc: func(context.Context) error {
			return s.sqlxDB.Close()
		},
	})
	boot.AddDependency(startup.Dependency{
		Name:  "migrations",
		Needs: []string{"database"},
		StartFunc: func(context.Context) error {
			return database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
			}).Migrate(s.sqlxDB, cfg.DatabaseName)
		},
	})
	boot.AddDependency(startup.Dependency{
		Name:  "catalog",
		Needs: []string{"migrations"},
		StartFunc: func(ctx context.Context) error {
			c, err := catalog.Load()
			if err != nil {
				return err
			}
			return catalog.Seed(ctx, catalogStore{
				fields:   field.NewRepository(s.db, logger),
				defaults: defaultmatching.NewRepository(s.db, logger),
			}, c, logger)
		},
	})
}

func (s *storage) addRedis(boot *startup.Startup, cfg *config.Config, logger ectologger.Logger) {
	boot.AddDependency(startup.Dependency{
		Name: "redis",
		StartFunc: func(ctx context.Context) error {
			client, err := redis.Open(ctx, redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			s.redis = client
			return nil
		},
		StopFunc: func(context.Context) error {
			return s.redis.Close()
		},
	})
}

// migrate runs the database dependencies alone.
func migrate(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	var s storage
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	s.addDatabase(boot, cfg, logger)
	if err := boot.Start(ctx); err != nil {
		_ = boot.Stop(context.Background())
		return err
	}
	return boot.Stop(ctx)
}

// catalogStore writes the catalog through the field and default matching repositories.
type catalogStore struct {
	fields   *field.Repository
	defaults *defaultmatching.Repository
}

func (s catalogStore) UpsertFields(ctx context.Context, items []models.Field) error {
	return s.fields.UpsertFields(ctx, items)
}

func (s catalogStore) ReplaceDefaultMatchings(ctx context.Context, matchings []models.DefaultMatching) error {
	return s.defaults.ReplaceDefaultMatchings(ctx, matchings)
}
