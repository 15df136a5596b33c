package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStartup(attempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), attempts)
	s.backoffUnit = time.Millisecond
	return s
}

func track(name string, log *[]string, needs ...string) Dependency {
	return Dependency{
		Name:      name,
		Needs:     needs,
		StartFunc: func(context.Context) error { *log = append(*log, "start "+name); return nil },
		StopFunc:  func(context.Context) error { *log = append(*log, "stop "+name); return nil },
	}
}

func TestStartup_Order(t *testing.T) {
	var log []string
	s := newStartup(1)
	s.AddDependency(track("kafka", &log, "matching"))
	s.AddDependency(track("matching", &log, "database", "redis"))
	s.AddDependency(track("database", &log))
	s.AddDependency(track("redis", &log))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "start redis", "start matching", "start kafka"}, log)

	log = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop kafka", "stop matching", "stop redis", "stop database"}, log)
}

func TestStartup_Retries(t *testing.T) {
	calls := 0
	s := newStartup(3)
	s.AddDependency(Dependency{Name: "database", StartFunc: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	s := newStartup(2)
	s.AddDependency(Dependency{Name: "redis", StartFunc: func(context.Context) error {
		return errors.New("connection refused")
	}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStartup_UnknownDependency(t *testing.T) {
	s := newStartup(1)
	s.AddDependency(Dependency{Name: "matching", Needs: []string{"database"}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency 'database'")
}
