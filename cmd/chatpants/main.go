package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/wardrobelab/chatpants"
	"github.com/wardrobelab/chatpants/api"
)

func main() {
	addr := flag.String("addr", ":5005", "HTTP listen address")
	dbPath := flag.String("db", "data/chatpants.db", "path to the bbolt database file")
	postgresURI := flag.String("postgres", "", "PostgreSQL connection URI (overrides -db)")
	staticDir := flag.String("static", "build", "directory with the built frontend")
	flag.Parse()

	config := chatpants.LoadConfig()
	if config.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	var store chatpants.Store
	var err error
	if *postgresURI != "" {
		store, err = chatpants.NewPostgresStore(*postgresURI)
	} else {
		store, err = chatpants.NewBoltStore(*dbPath)
	}
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	llmConfig := &chatpants.LLMConfig{
		APIKey:  config.OpenAIAPIKey,
		BaseURL: config.OpenAIBaseURL,
		Model:   config.Model,
	}
	controller := chatpants.NewController(store, llmConfig.NewClient(), config.Model)

	mux := http.NewServeMux()
	apiServer := api.New(controller, store)
	apiServer.Register(mux)
	mux.Handle("/", api.StaticHandler(*staticDir))

	server := &http.Server{
		Addr:        *addr,
		Handler:     api.WithCORS(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	log.Printf("Listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
