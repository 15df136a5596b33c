package main

import (
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/vukmarkovic/Europace-sub000/config"
	"github.com/vukmarkovic/Europace-sub000/internal/repositories/auth"
	"github.com/vukmarkovic/Europace-sub000/internal/services/matchstore"
	"github.com/vukmarkovic/Europace-sub000/pkg/database"
	"github.com/vukmarkovic/Europace-sub000/pkg/di"
	"github.com/vukmarkovic/Europace-sub000/pkg/europace"
	"github.com/vukmarkovic/Europace-sub000/pkg/matching"
	"github.com/vukmarkovic/Europace-sub000/pkg/processor"
	"github.com/vukmarkovic/Europace-sub000/pkg/redis"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/cases"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/fields"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/records"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/signin"
	"github.com/vukmarkovic/Europace-sub000/pkg/routes/tenant"
)

type services struct {
	db        database.DB
	redis     *redis.Client
	auths     *auth.Repository
	store     *matchstore.Service
	matcher   *matching.Matcher
	europace  *europace.Client
	processor *processor.Processor
}

// newContainer registers everything the http handlers resolve per request.
func newContainer(cfg *config.Config, logger ectologger.Logger, svc services) error {
	container, err := di.NewContainer(cfg.AppName, logger)
	if err != nil {
		return err
	}

	return errors.Join(
		di.Provide(container, cfg),
		di.Provide(container, logger),
		di.Provide(container, svc.db),
		di.Provide[fields.Store](container, svc.store),
		di.Provide[fields.ParentChecker](container, svc.matcher),
		di.Provide[fields.Locker](container, redis.NewLocker(svc.redis, "")),
		di.Provide[tenant.Auths](container, svc.auths),
		di.Provide[tenant.Initializer](container, svc.store),
		di.Provide[records.Matcher](container, svc.matcher),
		di.Provide[signin.Syncer](container, svc.processor),
		di.Provide[signin.Links](container, svc.europace),
		di.Provide[cases.Cases](container, svc.europace),
	)
}
