package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/labyrinthia/engine/internal/config"
	"github.com/labyrinthia/engine/internal/repositories/saves"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env file")
	}

	userID := flag.String("user", "", "limit the listing to one user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	repo, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open save store: %v", err)
	}
	defer cleanup()

	users := []string{*userID}
	if *userID == "" {
		users, err = repo.ListUsers(ctx)
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return
	}

	for _, user := range users {
		games, listErr := repo.ListGameIDs(ctx, user)
		if listErr != nil {
			log.Fatalf("Failed to list games for %s: %v", user, listErr)
		}
		line := fmt.Sprintf("%s: %d game(s)", user, len(games))
		if meta, metaErr := repo.LoadUserMetadata(ctx, user); metaErr == nil {
			line += fmt.Sprintf(", last access %s", meta.LastAccess.Format(time.RFC3339))
		}
		fmt.Println(line)

		for _, gameID := range games {
			gs, loadErr := repo.LoadGame(ctx, user, gameID)
			if loadErr != nil {
				fmt.Printf("  %s: ERROR - %v\n", gameID, loadErr)
				continue
			}
			status := "live"
			if gs.IsGameOver {
				status = "over (" + gs.GameOverReason + ")"
			}
			depth := 0
			if gs.CurrentMap != nil {
				depth = gs.CurrentMap.Depth
			}
			name := "?"
			if gs.Player != nil {
				name = gs.Player.Name
			}
			fmt.Printf("  %s: %s, floor %d, turn %d, %s\n", gameID, name, depth, gs.TurnCount, status)
		}
	}
}

// openStore mirrors the server's save store selection: redis when
// configured, the filesystem tree otherwise.
func openStore(ctx context.Context, cfg *config.Config) (saves.Repository, func(), error) {
	if cfg.RedisURL == "" {
		return saves.NewFilesystem(&saves.FilesystemConfig{Root: cfg.SaveDir}), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return saves.NewRedis(&saves.RedisConfig{Client: client}), func() { _ = client.Close() }, nil
}
