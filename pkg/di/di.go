// Package di builds the ectoinject container the http handlers resolve their dependencies from.
package di

import (
	"context"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
)

// NewContainer creates and registers a container under id. Container messages go to logger.
func NewContainer(id string, logger ectologger.Logger) (ectocontainer.DIContainer, error) {
	cfg := ectoinject.DefaultContainerConfig
	cfg.ID = id
	cfg.AllowMissingDependencies = false
	cfg.LoggerConfig = &ectocontainer.DIContainerLoggerConfig{
		Prefix:   "ectoinject",
		LogLevel: loglevel.WARN,
		Enabled:  logger != nil,
		LogFunc: func(ctx context.Context, level, msg string) {
			entry := logger.WithContext(ctx).WithField("container", id)
			if level == loglevel.WARN {
				entry.Warn(msg)
				return
			}
			entry.Debug(msg)
		},
	}
	return ectoinject.NewDIContainer(cfg)
}

// Provide registers instance as the singleton for T.
func Provide[T any](container ectocontainer.DIContainer, instance T) error {
	return ectoinject.RegisterInstance[T](container, instance)
}
