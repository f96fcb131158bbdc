package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-restore/internal/assets"
	"github.com/fpang/photo-restore/internal/chat"
	"github.com/fpang/photo-restore/internal/cli"
	"github.com/fpang/photo-restore/internal/config"
	"github.com/fpang/photo-restore/internal/filehandler"
	"github.com/fpang/photo-restore/internal/logging"
	"github.com/fpang/photo-restore/internal/metrics"
	"github.com/fpang/photo-restore/internal/session"
)

// CLI flags
var (
	formatFlag  string
	outputFlag  string
	modelFlag   string
	bundleFlag  bool
	envFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "restore-cli [photo]",
	Short: "Restore an old photo with Gemini",
	Long: `Restore CLI sends one damaged or faded photo to the Gemini image model
and writes the restored result. Without a path argument a native file
dialog opens.

Examples:
  restore-cli ./scans/grandparents.jpg
  restore-cli ./scans/wedding.png --format jpeg -o wedding-restored.jpg
  restore-cli --bundle ./scans/house.webp
  restore-cli  # pick a photo in a dialog`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", "png", "Output format: png, jpeg or webp")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default restored-image-<timestamp>.<ext> next to the photo)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini image model (default from GEMINI_IMAGE_MODEL or "+chat.DefaultModelName+")")
	rootCmd.Flags().BoolVar(&bundleFlag, "bundle", false, "Also write a zip with the original and restored photos")
	rootCmd.Flags().StringVar(&envFileFlag, "env-file", ".env", "Optional .env file to load")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.Explain(err))
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFileFlag)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = modelFlag
	}
	logging.Init(cfg.LogLevel)
	// EMF lines are meant for CloudWatch, not a terminal.
	metrics.SetOutput(io.Discard)

	format, err := filehandler.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else if path, err = cli.PickPhoto(os.Stdin, os.Stdout); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, clients, err := cli.InitRestorationClient(ctx, cfg)
	if err != nil {
		return err
	}

	img, err := filehandler.LoadSourceImage(path)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := restore(ctx, client, img)
	if err != nil {
		return err
	}
	fmt.Printf("Restored in %s\n", cli.FormatDurationShort(time.Since(start)))

	out := outputFlag
	if out == "" {
		out = cli.DefaultOutputPath(filepath.Dir(path), format.Extension(), time.Now())
	}
	data, err := filehandler.Export(result.Restored, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (%s)\n", out, cli.FormatBytes(len(data)))

	if bundleFlag {
		zipData, err := filehandler.Bundle(result.Original, result.Restored)
		if err != nil {
			return err
		}
		zipPath := out[:len(out)-len(filepath.Ext(out))] + ".zip"
		if err := os.WriteFile(zipPath, zipData, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", zipPath, err)
		}
		fmt.Printf("Wrote %s (%s)\n", zipPath, cli.FormatBytes(len(zipData)))
	}

	if clients.Archive != nil {
		rec, err := clients.Archive.Save(ctx, uuid.New().String(), 1, result.Original, result.Restored)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to archive restoration")
		} else if url, err := clients.Archive.DownloadURL(ctx, rec); err == nil {
			fmt.Printf("Archived: %s\n", url)
		}
	}
	return nil
}

// restore drives one session to completion and returns its result.
// Interrupting the process resets the session, which cancels the remote call.
func restore(ctx context.Context, client session.Restorer, img filehandler.SourceImage) (session.Result, error) {
	done := make(chan session.State, 1)
	sess := session.New(uuid.New().String(), client, assets.RestorationInstruction(), func(st session.State) {
		if st.Status == session.StatusSuccess || st.Status == session.StatusFailed {
			done <- st
		}
	})

	if err := sess.AcquireImage(img.Data, img.MIMEType); err != nil {
		return session.Result{}, err
	}
	if !sess.StartRestoration() {
		return session.Result{}, errors.New("restoration did not start")
	}
	fmt.Println("Restoring photo...")

	select {
	case st := <-done:
		if st.Status == session.StatusFailed {
			return session.Result{}, &chat.Error{Kind: st.ErrorKind, Message: st.Error}
		}
		return *st.Result, nil
	case <-ctx.Done():
		sess.Reset()
		sess.Wait()
		return session.Result{}, ctx.Err()
	}
}
