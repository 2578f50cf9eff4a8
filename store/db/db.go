package db

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/J12003LPZ/Chatbot/internal/profile"
	"github.com/J12003LPZ/Chatbot/store"
	"github.com/J12003LPZ/Chatbot/store/db/memory"
	"github.com/J12003LPZ/Chatbot/store/db/postgres"
	"github.com/J12003LPZ/Chatbot/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "memory":
		driver, err = memory.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres', 'sqlite' and 'memory' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}

// NewDBDriverWithFallback selects the backend once, at process start. When
// the configured relational store is unreachable or no DSN is configured,
// it silently switches to the in-memory backend and records the decision in
// the profile. The decision is never revisited at runtime: there is no
// memory-to-database transition and no per-request re-probe.
func NewDBDriverWithFallback(profile *profile.Profile) (store.Driver, error) {
	if profile.Driver == "memory" {
		return memory.NewDB(profile)
	}

	if profile.DSN == "" {
		slog.Warn("no DSN configured, using in-memory backend; conversations will not survive a restart",
			slog.String("configured_driver", profile.Driver))
		profile.Driver = "memory"
		return memory.NewDB(profile)
	}

	driver, err := NewDBDriver(profile)
	if err == nil {
		return driver, nil
	}

	slog.Warn("relational store unreachable, falling back to in-memory backend; conversations will not survive a restart",
		slog.String("configured_driver", profile.Driver),
		slog.String("error", err.Error()))
	profile.Driver = "memory"
	return memory.NewDB(profile)
}
