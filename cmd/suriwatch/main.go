package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nvdai/suriwatch/internal/adapters/capture"
	"github.com/nvdai/suriwatch/internal/adapters/classify"
	"github.com/nvdai/suriwatch/internal/adapters/httpapi"
	"github.com/nvdai/suriwatch/internal/adapters/input"
	"github.com/nvdai/suriwatch/internal/adapters/output"
	"github.com/nvdai/suriwatch/internal/adapters/suricata"
	"github.com/nvdai/suriwatch/internal/app"
)

var (
	cfgFile     string
	ifaceFlag   string
	captureOnly bool
	watchAll    bool

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "suriwatch",
	Short: "IDS alert history and capture/classification pipeline",
	Long: `Suriwatch sits next to a Suricata deployment. It ingests the eve.json
event log into a deduplicated, retention-bounded alert history, runs a
timed traffic-capture/classification loop, and maintains the IP blacklist
the engine enforces.

Pipeline:
  - Event log tailing with crash-safe resume (cursor + fingerprints)
  - Age-based lifecycle for transient capture files, with preservation
  - Timed capture -> classify -> blacklist cycles
  - HTTP query API and Prometheus metrics`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture loop and the query API",
	Long: `Start the long-lived pipeline: the background capture loop and the
HTTP query surface.

Examples:
  suriwatch run --iface eth0
  suriwatch run --capture-only
  SURIWATCH_EVE_PATH=/tmp/eve.json suriwatch run`,
	RunE: runPipeline,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the event log live on the console",
	RunE:  runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Suriwatch %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	runCmd.Flags().StringVarP(&ifaceFlag, "iface", "i", "", "capture interface")
	runCmd.Flags().BoolVar(&captureOnly, "capture-only", false, "skip classification, only capture traffic")
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "show all events, not just alerts")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/suriwatch")
	}

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("eve.path", "/var/log/suricata/eve.json")
	viper.SetDefault("capture.interface", "wlp0s20f3")
	viper.SetDefault("capture.binary", "cicflowmeter")
	viper.SetDefault("capture.duration_seconds", 30)
	viper.SetDefault("capture.max_age_minutes", 10)
	viper.SetDefault("capture.capture_only", false)
	viper.SetDefault("capture.csv_dir", "./traffic-csv")
	viper.SetDefault("capture.saved_dir", "./traffic-csv-saved")
	viper.SetDefault("classify.model_path", "/etc/suricata/model/xgboost_model_4class.pkl")
	viper.SetDefault("classify.fallback_src_ip", "10.81.50.100")
	viper.SetDefault("blacklist.path", "/etc/suricata/rules/blacklist.txt")
	viper.SetDefault("blacklist.reload_binary", "suricatasc")
	viper.SetDefault("history.dir", "./alerts-history")
	viper.SetDefault("history.cap", app.DefaultHistoryCap)
	viper.SetDefault("api.addr", ":8000")
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.addr", ":9090")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	viper.SetEnvPrefix("SURIWATCH")
	viper.AutomaticEnv()
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch viper.GetString("logging.level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}

func runPipeline(cmd *cobra.Command, args []string) error {
	setupLogging()

	if ifaceFlag != "" {
		viper.Set("capture.interface", ifaceFlag)
	}
	if captureOnly {
		viper.Set("capture.capture_only", true)
	}

	historyDir := viper.GetString("history.dir")
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	captures, err := app.NewCaptureStore(
		viper.GetString("capture.csv_dir"),
		viper.GetString("capture.saved_dir"),
	)
	if err != nil {
		return err
	}

	tunables := app.TunablesFromViper()
	if err := tunables.Validate(); err != nil {
		return err
	}
	runtime := app.NewRuntimeConfig(tunables)
	runtime.StartWatching()

	cursor := app.NewCursor(filepath.Join(historyDir, ".last_processed"))
	alerts := app.NewAlertStore(
		filepath.Join(historyDir, "alerts_history.json"),
		viper.GetInt("history.cap"),
		cursor,
	)
	evePath := viper.GetString("eve.path")
	tailer := app.NewEveTailer(evePath, cursor, alerts)

	reloader := suricata.NewSocketReloader(viper.GetString("blacklist.reload_binary"))
	blacklist := app.NewBlacklist(viper.GetString("blacklist.path"), reloader)
	if err := blacklist.Load(); err != nil {
		log.Warn().Err(err).Msg("Failed to load blacklist, starting with empty set")
	}

	capturer := capture.NewCICFlowCapturer(
		viper.GetString("capture.binary"),
		viper.GetString("capture.interface"),
	)
	loader := classify.NewLoader(func() string { return runtime.Current().FallbackIP })

	// The in-process classifier is a placeholder; the model named by
	// classify.model_path is served by an external adapter.
	classifier := classify.NewBenignClassifier()
	log.Info().
		Str("model", viper.GetString("classify.model_path")).
		Msg("No model adapter wired, classifying all traffic as benign")

	loop := app.NewCaptureLoop(captures, capturer, loader, classifier, blacklist, app.CaptureLoopConfig{
		Duration:    time.Duration(viper.GetInt("capture.duration_seconds")) * time.Second,
		CaptureOnly: viper.GetBool("capture.capture_only"),
	})
	loop.SetRuntime(runtime)

	if viper.GetBool("metrics.enabled") {
		metrics := output.NewPrometheusMetrics("suriwatch", alerts.Len, blacklist.Count)
		loop.SetMetrics(metrics)
		metricsConfig := output.MetricsConfig{
			Addr: viper.GetString("metrics.addr"),
			Path: "/metrics",
		}
		if err := metrics.StartServer(metricsConfig); err != nil {
			log.Warn().Err(err).Msg("Failed to start metrics server")
		}
		defer metrics.StopServer()

		api := buildAPI(tailer, alerts, captures, runtime, metrics, evePath)
		return serve(api, loop)
	}

	api := buildAPI(tailer, alerts, captures, runtime, nil, evePath)
	return serve(api, loop)
}

func buildAPI(
	tailer *app.EveTailer,
	alerts *app.AlertStore,
	captures *app.CaptureStore,
	runtime *app.RuntimeConfig,
	metrics *output.PrometheusMetrics,
	evePath string,
) *http.Server {
	config := httpapi.Config{
		Tailer:   tailer,
		Alerts:   alerts,
		Captures: captures,
		Runtime:  runtime,
		EvePath:  evePath,
		CSVDir:   viper.GetString("capture.csv_dir"),
	}
	if metrics != nil {
		config.Metrics = metrics
	}

	return &http.Server{
		Addr:              viper.GetString("api.addr"),
		Handler:           httpapi.New(config).Handler(),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func serve(api *http.Server, loop *app.CaptureLoop) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", api.Addr).Msg("Query API listening")
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("API server error")
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API shutdown error")
	}

	// Give the in-flight cycle time to finish its flush.
	select {
	case <-loopDone:
		log.Debug().Msg("Capture loop drained")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Capture loop shutdown timeout, forcing exit")
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	follower := input.NewEveFollower(viper.GetString("eve.path"), 1000, !watchAll)
	events, errs := follower.Start(ctx)
	defer follower.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok && err != nil {
				log.Warn().Err(err).Msg("Follow error")
			}
		case event, ok := <-events:
			if !ok {
				return nil
			}
			entry := log.Info().
				Str("timestamp", event.Timestamp).
				Str("src_ip", event.SrcIP).
				Str("dest_ip", event.DestIP).
				Str("proto", event.Proto)
			if event.Alert != nil {
				entry = entry.
					Str("signature", event.Alert.Signature).
					Int64("signature_id", event.Alert.SignatureID)
				if event.Alert.Severity != nil {
					entry = entry.Int("severity", *event.Alert.Severity)
				}
			}
			entry.Msg("Event")
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
