package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra/credentials"
)

func main() {
	var (
		keyFlag    string
		deleteFlag bool
	)
	flag.StringVar(&keyFlag, "key", "", "xAI API key (falls back to XAI_API_KEY)")
	flag.BoolVar(&deleteFlag, "delete", false, "remove the stored key instead of writing one")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("XAI_API_KEY"))
	}
	if key == "" && !deleteFlag {
		fmt.Fprintln(os.Stderr, "xAI API key is required via -key or XAI_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLoggerTo(os.Stderr, "cli").With().Str("cmd", "xaikey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare integration_tokens: %v\n", err)
		os.Exit(1)
	}

	if deleteFlag {
		if err := store.DeleteXAIAPIKey(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete xai api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("xAI API key removed")
		return
	}

	if err := store.SetXAIAPIKey(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist xai api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("xAI API key stored successfully")
}
