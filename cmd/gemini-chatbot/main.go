package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MelonGO/gemini-chatbot/internal/profile"
	"github.com/MelonGO/gemini-chatbot/server"
	"github.com/MelonGO/gemini-chatbot/store"
	"github.com/MelonGO/gemini-chatbot/store/db"
)

const version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "gemini-chatbot",
		Short: "A chat server with streaming model replies and durable conversation history",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			instanceProfile := &profile.Profile{
				Mode:    viper.GetString("mode"),
				Addr:    viper.GetString("addr"),
				Port:    viper.GetInt("port"),
				Data:    viper.GetString("data"),
				Driver:  viper.GetString("driver"),
				DSN:     viper.GetString("dsn"),
				Secret:  viper.GetString("secret"),
				Version: version,
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				return fmt.Errorf("failed to create db driver: %w", err)
			}
			if err := dbDriver.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			storeInstance := store.New(dbDriver, instanceProfile)
			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				sig := <-sigChan
				slog.Info("received signal, shutting down", "signal", sig.String())
				s.Shutdown(ctx)
				cancel()
			}()

			if err := s.Start(ctx); err != nil {
				slog.Error("failed to start server", "error", err)
				cancel()
			}

			<-ctx.Done()
			return nil
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", "error", err)
		os.Exit(1)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8081)
	viper.SetDefault("data", ".")
	viper.SetDefault("driver", "sqlite")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of the server")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name")
	rootCmd.PersistentFlags().String("secret", "", "secret used to sign access tokens")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "secret"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("gemini_chatbot")
	viper.AutomaticEnv()
}
