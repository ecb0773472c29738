// server/cmd/api/main.go
package main

import (
	"context"
	"os"
	"time"

	"site-procurement-api-server/config"
	"site-procurement-api-server/internal/api/routes"
	"site-procurement-api-server/internal/database"
	"site-procurement-api-server/internal/engine"
	"site-procurement-api-server/internal/socket"
	"site-procurement-api-server/internal/store/mongodb"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	cfg, err := config.LoadConfig("./config")
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("could not load config")
	}

	log := initLogger(cfg.Log)
	log.Info().Str("port", cfg.Server.Port).Msg("starting site procurement API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal().Err(err).Msg("failed to ping MongoDB")
	}
	log.Info().Str("db", cfg.Mongo.DBName).Msg("connected to MongoDB")

	st := mongodb.NewStore(client, client.Database(cfg.Mongo.DBName))

	seedPassword := os.Getenv("SUPERADMIN_PASSWORD")
	if seedPassword == "" {
		seedPassword = "superadminpassword"
	}
	if err := database.SeedSuperAdmin(ctx, st, seedPassword, log); err != nil {
		log.Fatal().Err(err).Msg("failed to seed super admin")
	}

	wsHub := socket.NewHub(log)
	eng := engine.New(st, engine.WithNotifier(wsHub), engine.WithLogger(log))

	router := routes.SetupRouter(eng, st, cfg, wsHub, log)

	log.Info().Msgf("API server listening on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to run server")
	}
}

func initLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
