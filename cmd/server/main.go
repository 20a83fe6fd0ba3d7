package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"emotionai-agent/internal/agent"
	"emotionai-agent/internal/config"
	"emotionai-agent/internal/platform/database"
	"emotionai-agent/internal/platform/telegram"
	"emotionai-agent/internal/report"
	"emotionai-agent/internal/therapy"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Clients
	llmClient, err := agent.NewLLMClient(ctx, agent.LLMConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey(),
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout(),
	})
	if err != nil {
		log.Fatalf("llm client: %v", err)
	}
	if cfg.LLM.APIKey() == "" {
		log.Printf("Warning: no API key set for provider %q. Generation requests will fail.", cfg.LLM.Provider)
	}
	searchClient := agent.NewDuckDuckGoClient(cfg.Search.BaseURL, cfg.Search.Timeout())
	detector := agent.NewLanguageDetector()

	// 2. Optional history store
	var history therapy.Repository
	var recorder therapy.Recorder
	if cfg.DatabaseURL != "" {
		target, err := database.ParseURL(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		db, err := database.Open(target)
		if err != nil {
			log.Printf("Could not open history store: %v. Continuing without history.", err)
		} else {
			defer db.Close()
			log.Printf("Connected to %s history store.", target.Driver)
			history = therapy.NewRepository(db, target.Dialect)
			recorder = history
		}
	}

	// 3. Reports
	var tgClient report.TelegramClient
	if cfg.Telegram.Token != "" {
		tgClient = telegram.NewClient(cfg.Telegram.Token)
		if cfg.Telegram.TherapistChatID == 0 {
			log.Println("Warning: THERAPIST_CHAT_ID is not set. Reports will not be delivered to Telegram.")
		}
	}
	reportSvc := report.NewService(tgClient, cfg.Telegram.TherapistChatID)

	// 4. Services
	svc := therapy.NewService(llmClient, searchClient, detector, recorder, therapy.Options{
		MaxResults:      cfg.Search.MaxResults,
		DefaultLanguage: cfg.DefaultLanguage,
	})
	handler := therapy.NewHandler(svc, history, reportSvc)

	// 5. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	therapy.RegisterRootRoutes(r, handler)
	r.Route("/api/agent", func(r chi.Router) {
		therapy.RegisterRoutes(r, handler)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gzhttp.GzipHandler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s...", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// cors allows the tracker frontend to call the API from any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
