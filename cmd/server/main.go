// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/gatherat/gatherat/internal/auth"
	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/handlers"
	"github.com/gatherat/gatherat/internal/middleware"
)

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	store, err := docstore.NewRedisStore(getEnv("REDIS_URL", "redis://localhost:6379"))
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	srv := handlers.NewServer(logger, store)
	handler := middleware.LogMiddleware(logger)(srv.Routes())

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
