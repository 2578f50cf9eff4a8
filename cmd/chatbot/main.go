package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/J12003LPZ/Chatbot/internal/profile"
	"github.com/J12003LPZ/Chatbot/server"
	"github.com/J12003LPZ/Chatbot/store"
	"github.com/J12003LPZ/Chatbot/store/db"
)

const greetingBanner = `
Chatbot - web chat front end
`

var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "A web chat service backed by an inference API",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: profile.Version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", slog.Any("error", err))
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// The backend decision is made exactly once, here. A relational
		// DSN that fails its probe downgrades to the in-memory driver
		// for the life of the process.
		dbDriver, err := db.NewDBDriverWithFallback(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", slog.Any("error", err))
			os.Exit(1)
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to create server", slog.Any("error", err))
			os.Exit(1)
		}

		if !instanceProfile.IsLLMConfigured() {
			slog.Warn("no inference API key configured, chat requests will be rejected")
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		printGreetings(instanceProfile, storeInstance)

		select {
		case err := <-errCh:
			if err != nil {
				slog.Error("server exited with error", slog.Any("error", err))
			}
		case <-ctx.Done():
		}
		s.Shutdown(context.Background())
	},
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 5000)
	viper.SetDefault("data", "")
	viper.SetDefault("driver", "")
	viper.SetDefault("dsn", "")
	viper.SetEnvPrefix("chatbot")
	viper.AutomaticEnv()
}

func printGreetings(p *profile.Profile, s *store.Store) {
	fmt.Print(greetingBanner)
	fmt.Printf("version %s, mode %s, backend %s\n", p.Version, p.Mode, s.BackendName())
	fmt.Printf("listening on %s:%d\n", p.Addr, p.Port)
}

func main() {
	// Missing .env is fine, the process environment still applies.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", slog.Any("error", err))
		os.Exit(1)
	}
}
