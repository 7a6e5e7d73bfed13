package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"metamorphosis/internal/analyzer"
	"metamorphosis/internal/config"
	"metamorphosis/internal/events"
	"metamorphosis/internal/guide"
	"metamorphosis/internal/llm"
	"metamorphosis/internal/media"
	"metamorphosis/internal/renderer"
	"metamorphosis/internal/server"
	"metamorphosis/internal/session"
	"metamorphosis/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}
	cfg := config.FromEnv()

	ctx := context.Background()
	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init design store: %v", err)
	}
	defer store.Close()

	var uploader media.Uploader
	if cfg.Media.Bucket != "" && cfg.Media.Region != "" {
		uploader, err = media.NewUploader(ctx, media.Config{
			Bucket:         cfg.Media.Bucket,
			Region:         cfg.Media.Region,
			Endpoint:       cfg.Media.Endpoint,
			PublicURL:      cfg.Media.PublicURL,
			KeyPrefix:      cfg.Media.KeyPrefix,
			ForcePathStyle: cfg.Media.ForcePathStyle,
		})
		if err != nil {
			log.Fatalf("failed to init concept uploader: %v", err)
		}
	} else {
		uploader, err = media.NewLocalUploader(cfg.Media.LocalDir)
		if err != nil {
			log.Fatalf("failed to init local concept storage: %v", err)
		}
		log.Println("concept export: using local temp storage (S3 config missing)")
	}

	var analysis session.Analyzer
	if cfg.Gemini.APIKey != "" {
		gemini := analyzer.NewGeminiAnalyzer(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Temperature, cfg.Gemini.Timeout)
		analysis = analyzer.NewCached(gemini, gemini.Fingerprint())
		log.Printf("analyzer ready: %s", gemini.Fingerprint())
	} else {
		log.Println("analyzer disabled: GEMINI_API_KEY missing")
	}

	var gen renderer.ImageGenerator
	var imagen renderer.ReferenceImageGenerator
	switch cfg.Render.Provider {
	case "imagen":
		vertex := renderer.NewVertexImagen(renderer.VertexImagenConfig{
			ProjectID:          cfg.Render.ImagenProject,
			Location:           cfg.Render.ImagenLocation,
			Model:              cfg.Render.ImagenModel,
			APIKey:             cfg.Render.ImagenAPIKey,
			ServiceAccount:     cfg.Render.ImagenServiceAccount,
			ServiceAccountJSON: cfg.Render.ImagenServiceAccountJSON,
		})
		if vertex.Configured() {
			imagen = vertex
			log.Println("renderer ready: vertex imagen")
		} else {
			log.Println("renderer disabled: imagen config incomplete")
		}
	case "gemini":
		if cfg.Gemini.APIKey != "" {
			gen = renderer.NewGeminiRenderer(cfg.Gemini.APIKey, cfg.Render.GeminiModel, cfg.Render.Timeout)
			log.Printf("renderer ready: %s", cfg.Render.GeminiModel)
		} else {
			log.Println("renderer disabled: GEMINI_API_KEY missing")
		}
	default:
		if cfg.Render.HFToken != "" {
			gen = renderer.NewHFRenderer(cfg.Render.HFToken, cfg.Render.HFModel, cfg.Render.Timeout)
			log.Printf("renderer ready: %s", cfg.Render.HFModel)
		} else {
			log.Println("renderer disabled: HF_TOKEN missing")
		}
	}

	var expander guide.Expander
	if cfg.Guide.Provider == "openai" && cfg.Guide.OpenAIAPIKey != "" {
		expander = guide.NewLLMExpander(llm.NewOpenAIClient(cfg.Guide.OpenAIAPIKey, cfg.Guide.OpenAIModel))
		log.Println("guide expander ready: OpenAI")
	} else if cfg.Gemini.APIKey != "" {
		expander = guide.NewLLMExpander(llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout, nil))
		log.Println("guide expander ready: Gemini")
	} else {
		log.Println("guide expander disabled: no chat credential")
	}

	eventBroker := events.NewBroker()
	sessions := session.NewStore()

	orch := &session.Orchestrator{
		Analyzer: analysis,
		Renderer: gen,
		Imagen:   imagen,
		Expander: expander,
		Designs:  store,
		Uploader: uploader,
		Events:   eventBroker,
	}

	handler := session.Handler{
		Sessions: sessions,
		Orch:     orch,
		Events:   eventBroker,
		Designs:  store,
	}

	srv := server.New(cfg.Port, handler)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		log.Println("shutting down server...")
		if err := srv.Close(); err != nil {
			log.Printf("server close error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
