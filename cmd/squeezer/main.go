package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"squeezer-go/internal/compressor"
	"squeezer-go/internal/config"
	"squeezer-go/internal/fileset"
	"squeezer-go/internal/logger"
	"squeezer-go/internal/pipeline"
	"squeezer-go/internal/policy"
	"squeezer-go/internal/toolchain"
	"squeezer-go/internal/web"
)

var (
	cfgFile   string
	outputDir string
	quality   string
	noMeta    bool
	verbose   bool
	quiet     bool
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "squeezer [files or directories...]",
	Short: "Batch compress photos and videos",
	Long: `Squeezer compresses batches of photos and videos using quality presets.

Features:
- JPEG, PNG and GIF image compression with metadata preservation
- HEIC conversion with several decode fallbacks
- H.264/AAC video re-encoding with hardware acceleration when available
- Resolution caps that never upscale
- Four quality tiers from maximum fidelity to smallest size
- Live progress, ETA and a consolidated failure report per batch`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(args)
	},
}

// probeCmd reports which external tools and hardware encoders are usable.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show detected encoder tools and hardware acceleration",
	Long: `Probes for ffmpeg and ffprobe (bundled beside the executable or on
PATH), queries the available hardware acceleration backends, and prints
what video compression will use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe()
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts a web server exposing the compression pipeline.
The HTTP API lets you:
- Start a compression batch (POST /api/compress)
- Cancel the running batch (POST /api/cancel)
- Poll batch state and statistics (GET /api/status, /api/statistics)
- Stream progress events over WebSocket (/ws)

Access the API at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for compressed files")
	rootCmd.Flags().StringVarP(&quality, "quality", "q", "", "quality tier: maximum, high, medium, low")
	rootCmd.Flags().BoolVar(&noMeta, "no-metadata", false, "do not copy EXIF metadata to compressed files")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config)")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.squeezer")
		viper.AddConfigPath("/etc/squeezer")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !quiet {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runCompress executes one batch over the given inputs and blocks until it
// finishes.
func runCompress(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tier, err := policy.ParseTier(cfg.QualityTier)
	if err != nil {
		return err
	}

	log := setupLogger(cfg)
	tools := toolchain.Discover(log)
	manager := compressor.NewManager(log, tools, cfg.PreserveMetadata, verbose)

	tasks, err := fileset.Collect(args)
	if err != nil {
		return fmt.Errorf("failed to collect files: %w", err)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no supported media files found in the given paths")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(log, manager, &consoleObserver{quiet: quiet})
	if err := p.Start(ctx, tasks, cfg.OutputDirectory, tier); err != nil {
		return err
	}
	p.Wait()

	if !quiet {
		fmt.Println("\n" + p.Stats().GetSummary())
	}
	if p.State() == pipeline.StateCancelled {
		return fmt.Errorf("batch cancelled")
	}
	return nil
}

// runProbe prints toolchain discovery results.
func runProbe() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	tools := toolchain.Discover(log)

	if !tools.Available() {
		fmt.Println("ffmpeg/ffprobe: not found (video compression unavailable)")
		fmt.Println("Install ffmpeg or place the binaries in a bin/ directory next to the executable.")
		return nil
	}

	fmt.Printf("ffmpeg:  %s\n", tools.FFmpegPath())
	fmt.Printf("ffprobe: %s\n", tools.FFprobePath())

	backends := tools.Backends()
	if len(backends) == 0 {
		fmt.Println("hwaccel: none (software libx264 encoding)")
		return nil
	}

	fmt.Printf("hwaccel: %s (preferred)\n", tools.PreferredBackend())
	for _, b := range backends {
		fmt.Printf("  - %s (%s)\n", b, b.EncoderName())
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	tools := toolchain.Discover(log)
	manager := compressor.NewManager(log, tools, cfg.PreserveMetadata, verbose)
	server := web.NewServer(cfg, log, manager)

	if port == 0 {
		port = cfg.Web.Port
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("Squeezer web interface started on http://localhost:%d\n", port)
	fmt.Println("Press Ctrl+C to stop the server")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if outputDir != "" {
		cfg.OutputDirectory = outputDir
	}
	if quality != "" {
		cfg.QualityTier = quality
	}
	if noMeta {
		cfg.PreserveMetadata = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.FromConfig(cfg.Logging, !quiet)

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// consoleObserver prints batch progress to stdout.
type consoleObserver struct {
	quiet bool
}

func (o *consoleObserver) OnProgress(ev pipeline.ProgressEvent) {
	if o.quiet || ev.Terminal {
		return
	}
	line := fmt.Sprintf("[%d/%d] %3d%% %s", ev.Processed+1, ev.Total, ev.Percent, ev.CurrentFile)
	if ev.Remaining != nil {
		line += fmt.Sprintf(" (ETA %s)", fileset.FormatETA(*ev.Remaining))
	}
	fmt.Println(line)
}

func (o *consoleObserver) OnResult(res pipeline.FileResult) {
	if o.quiet || !res.Success() {
		return
	}
	fmt.Printf("    %s -> %s (saved %.1f%%)\n",
		fileset.FormatBytes(res.OriginalSize),
		fileset.FormatBytes(res.CompressedSize),
		res.SavedPercent)
}

func (o *consoleObserver) OnError(message string) {
	fmt.Fprintln(os.Stderr, message)
}

func (o *consoleObserver) OnFinished(sum pipeline.Summary) {
	if o.quiet {
		return
	}
	if sum.Cancelled {
		fmt.Printf("\nCancelled after %d file(s)\n", sum.Processed)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
