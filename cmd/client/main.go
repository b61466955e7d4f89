// cmd/client/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"

	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/history"
	"github.com/gatherat/gatherat/internal/models"
	"github.com/gatherat/gatherat/internal/room"
	"github.com/gatherat/gatherat/internal/session"
)

// The client owns the device-local state the browser keeps in
// localStorage: the anonymous identity and the recent-rooms list, both
// persisted under the state directory.

const usage = `usage: client <command> [args]

  name <display name>   claim or change the display name for this device
  whoami                print the current identity
  visit <room id>       fetch a room and record it in the recent list
  recent                list recently visited rooms
  forget <room id>      drop a room from the recent list
  reset                 clear the identity and history for this device
`

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func stateDir() string {
	if dir := os.Getenv("GATHERAT_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gatherat"
	}
	return filepath.Join(home, ".gatherat")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	store, err := docstore.NewRedisStore(getEnv("REDIS_URL", "redis://localhost:6379"))
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	dir := stateDir()
	users := session.NewUsers(store)
	manager, err := session.NewManager(dir, users)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	hist := history.New(dir)
	rooms := room.NewService(store)

	ctx := context.Background()

	switch os.Args[1] {
	case "name":
		if len(os.Args) < 3 {
			log.Fatal("name: missing display name")
		}
		displayName := os.Args[2]
		if manager.IsNew() {
			err = manager.SetDisplayName(ctx, displayName)
		} else {
			err = manager.UpdateDisplayName(ctx, displayName)
		}
		if err != nil {
			log.Fatalf("name: %v", err)
		}
		fmt.Printf("hello, %s (user %s)\n", manager.DisplayName(), manager.UserID())

	case "whoami":
		u := manager.Current()
		if u == nil {
			fmt.Println("no identity yet; claim one with: client name <display name>")
			return
		}
		fmt.Printf("%s (user %s)\n", u.DisplayName, u.UserID)

	case "visit":
		if len(os.Args) < 3 {
			log.Fatal("visit: missing room id")
		}
		rm, err := rooms.Get(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("visit: %v", err)
		}
		if err := hist.Add(models.RoomHistoryItem{
			ID:         rm.ID,
			Question:   rm.Question,
			CreatedAt:  rm.CreatedAt,
			OptionType: rm.OptionType,
			PollType:   rm.EffectivePollType(),
		}); err != nil {
			log.Fatalf("visit: record history: %v", err)
		}
		fmt.Printf("%s\n  status: %s  poll: %s  participants: %d\n",
			rm.Question, rm.EffectiveStatus(), rm.EffectivePollType(), len(rm.Participants))

	case "recent":
		items := hist.Rooms()
		if len(items) == 0 {
			fmt.Println("no rooms visited yet")
			return
		}
		for _, r := range items {
			fmt.Printf("%s  %s\n", r.ID, r.Question)
		}

	case "forget":
		if len(os.Args) < 3 {
			log.Fatal("forget: missing room id")
		}
		if err := hist.Delete(os.Args[2]); err != nil {
			log.Fatalf("forget: %v", err)
		}

	case "reset":
		if err := manager.Clear(ctx); err != nil {
			log.Fatalf("reset: %v", err)
		}
		if err := hist.Clear(); err != nil {
			log.Fatalf("reset: %v", err)
		}
		fmt.Println("device state cleared")

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
