// Command studymate runs the student assistant as a terminal REPL.
//
// Configuration comes from the environment (a .env file is honored):
//
//	ANTHROPIC_API_KEY      required
//	GOOGLE_CLIENT_ID       optional, enables calendar lookups
//	GOOGLE_CLIENT_SECRET   optional, enables calendar lookups
//	GOOGLE_TOKEN_FILE      optional, OAuth token path (default token.json)
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/campushq/studymate/calendar"
	"github.com/campushq/studymate/engine"
	"github.com/campushq/studymate/memory"
	"github.com/campushq/studymate/memory/index/chromem"
	"github.com/campushq/studymate/provider"
)

func main() {
	var (
		backend   = flag.String("memory", "exact", "memory backend: exact or semantic")
		storePath = flag.String("store", "memories.json", "exact store file path")
		owner     = flag.String("user", "student", "owner id for memories and history")
	)
	flag.Parse()

	_ = godotenv.Load()

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		log.Fatal("ANTHROPIC_API_KEY environment variable is required")
	}

	completer, err := provider.New(provider.Config{APIKey: apiKey})
	if err != nil {
		log.Fatal(err)
	}

	store, err := buildStore(*backend, *storePath, completer)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Memory backend: %s", *backend)

	opts := []engine.Option{}
	if gateway := buildCalendar(); gateway != nil {
		opts = append(opts, engine.WithCalendar(gateway))
		log.Println("Calendar lookups enabled")
	}

	eng, err := engine.New(store, completer, opts...)
	if err != nil {
		log.Fatal(err)
	}

	repl(eng, *owner)
}

func buildStore(backend, storePath string, summarizer memory.Summarizer) (memory.Store, error) {
	switch backend {
	case "exact":
		return memory.NewExactStore(storePath)
	case "semantic":
		index, err := chromem.New()
		if err != nil {
			return nil, err
		}
		embedder, err := newEmbedder()
		if err != nil {
			return nil, err
		}
		return memory.NewSemanticStore(index, embedder, nil, memory.WithSummarizer(summarizer))
	default:
		return nil, fmt.Errorf("unknown memory backend %q (want exact or semantic)", backend)
	}
}

func buildCalendar() *calendar.Gateway {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil
	}

	source, err := calendar.NewGoogleSource(calendar.GoogleConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    os.Getenv("GOOGLE_TOKEN_FILE"),
	})
	if err != nil {
		log.Printf("Calendar disabled: %v", err)
		return nil
	}

	gateway, err := calendar.NewGateway(source)
	if err != nil {
		log.Printf("Calendar disabled: %v", err)
		return nil
	}
	return gateway
}

func repl(eng *engine.Engine, owner string) {
	ctx := context.Background()
	session := engine.NewSession()

	fmt.Println("Student assistant ready. Commands: /memories /clear-memories /reset /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit":
			return
		case "/reset":
			session.Reset()
			fmt.Println("Conversation history cleared.")
		case "/clear-memories":
			if err := eng.ClearMemories(ctx, owner); err != nil {
				fmt.Printf("Could not clear memories: %v\n", err)
				continue
			}
			fmt.Println("Memories cleared.")
		case "/memories":
			records := eng.GetAllMemories(ctx, owner)
			fmt.Println(memory.FormatForContext(records))
		default:
			fmt.Println(eng.ProcessQuery(ctx, session, owner, line))
		}
	}
}
