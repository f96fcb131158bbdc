package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-restore/internal/assets"
	"github.com/fpang/photo-restore/internal/awsboot"
	"github.com/fpang/photo-restore/internal/chat"
	"github.com/fpang/photo-restore/internal/config"
	"github.com/fpang/photo-restore/internal/httputil"
	"github.com/fpang/photo-restore/internal/logging"
	"github.com/fpang/photo-restore/internal/metrics"
)

//go:embed all:frontend_dist
var frontendFS embed.FS

// commitHash is set at build time via -ldflags.
var commitHash string

// CLI flags
var (
	portFlag      int
	modelFlag     string
	maxUploadFlag int
	envFileFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "restore-web",
	Short: "Web UI for restoring old photos with Gemini",
	Long: `Restore Web starts a local web server for restoring damaged or faded
photos. Upload or pick a photo, send it to the Gemini image model, compare
the result with the original, and download it as PNG, JPEG or WEBP.

Examples:
  restore-web
  restore-web --port 9090
  restore-web --model gemini-3-pro-image-preview`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from RESTORE_PORT or 8080)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini image model (default from GEMINI_IMAGE_MODEL or "+chat.DefaultModelName+")")
	rootCmd.Flags().IntVar(&maxUploadFlag, "max-upload-mb", 0, "Maximum upload size in MiB (default from RESTORE_MAX_UPLOAD_MB or 20)")
	rootCmd.Flags().StringVar(&envFileFlag, "env-file", ".env", "Optional .env file to load")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()

	cfg, err := config.Load(envFileFlag)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(cfg.LogLevel)
	metrics.SetService("restore-web")
	if !cfg.EnvFileLoaded {
		log.Debug().Str("file", envFileFlag).Msg("No .env file found; using environment only")
	}

	ctx := context.Background()
	model := cfg.Model
	if model == "" {
		model = chat.GetModelName()
	}

	clients, err := awsboot.Init(ctx, cfg, model)
	if err != nil {
		return err
	}

	apiKey, err := awsboot.ResolveAPIKey(ctx, clients, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Starting without an API key; restorations will report it")
	}

	client, err := chat.NewRestorationClient(ctx, apiKey, model)
	if err != nil {
		return err
	}

	srv := newServer(client, assets.RestorationInstruction(), cfg)
	if clients.Archive != nil {
		srv.archive = clients.Archive
	}

	mux := http.NewServeMux()
	srv.routes(mux)
	if err := mountFrontend(mux); err != nil {
		return err
	}

	handler := httputil.WithLogging(httputil.WithMetrics(httputil.WithCORS(mux)))

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go srv.sweepLoop(sweepCtx, time.Minute)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	awsboot.StartupLog("restore-web", initStart).
		CommitHash(commitHash).
		Resource("archiveBucket", cfg.ArchiveBucket).
		Resource("archiveTable", cfg.ArchiveTable).
		Resource("apiKeyParam", cfg.APIKeyParam).
		Feature("archive", cfg.ArchiveEnabled()).
		Feature("apiKey", apiKey != "").
		Config("model", model).
		Config("port", strconv.Itoa(cfg.Port)).
		Config("maxUploadMB", strconv.Itoa(cfg.MaxUploadMB)).
		Config("sessionTTL", cfg.SessionTTL.String()).
		Log()

	log.Info().Int("port", cfg.Port).Msg("Starting web server")
	fmt.Printf("\n  Photo Restore UI: http://localhost:%d\n\n", cfg.Port)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	srv.sessions.Wait()
	srv.archiving.Wait()
	return nil
}

// applyFlags overrides config values with flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = modelFlag
	}
	if cmd.Flags().Changed("max-upload-mb") {
		cfg.MaxUploadMB = maxUploadFlag
	}
}

// mountFrontend serves the embedded single-page UI with security headers.
func mountFrontend(mux *http.ServeMux) error {
	frontendSub, err := fs.Sub(frontendFS, "frontend_dist")
	if err != nil {
		return fmt.Errorf("failed to access embedded frontend: %w", err)
	}
	fileServer := http.FileServer(http.FS(frontendSub))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Unknown paths fall back to index.html.
		if path := r.URL.Path; path != "/" {
			f, err := frontendSub.Open(strings.TrimPrefix(path, "/"))
			if err != nil {
				r.URL.Path = "/"
			} else {
				f.Close()
			}
		}
		fileServer.ServeHTTP(w, r)
	})
	return nil
}
