package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/jfmyers9/murmur/internal/analyser"
	"github.com/jfmyers9/murmur/internal/audio"
	"github.com/jfmyers9/murmur/internal/config"
	"github.com/jfmyers9/murmur/internal/daemon"
	"github.com/jfmyers9/murmur/internal/library"
	"github.com/jfmyers9/murmur/internal/player"
	"github.com/jfmyers9/murmur/internal/status"
	"github.com/jfmyers9/murmur/internal/tui"
	"github.com/jfmyers9/murmur/internal/visualizer"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	playLogFile   string
	playLogLevel  string
	playHeadless  bool
	playAutoplay  bool
	playStyle     string
	playCompact   bool
	playNullAudio bool
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the library",
	Long: `Play the library in a terminal UI with a spectrum visualizer.

Keys:
  space  play/pause        n/p  next/previous track
  l      cycle loop mode   m    mute
  s      next style        c    compact mode
  q      quit

With --headless no UI is drawn; playback is controlled by editing the
library and preferences from another terminal (murmur library select,
murmur loop, murmur mute). The player picks those changes up while it runs.

In UI mode logs go to <data-dir>/murmur.log unless --log-file is given.`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&playLogFile, "log-file", "", "Log file path (default: stderr when headless, <data-dir>/murmur.log otherwise)")
	playCmd.Flags().StringVar(&playLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	playCmd.Flags().BoolVar(&playHeadless, "headless", false, "Play without the terminal UI")
	playCmd.Flags().BoolVar(&playAutoplay, "autoplay", false, "Start playing immediately")
	playCmd.Flags().StringVar(&playStyle, "style", "", "Visualizer style (overrides config)")
	playCmd.Flags().BoolVar(&playCompact, "compact", false, "Start with the visualizer hidden")
	playCmd.Flags().BoolVar(&playNullAudio, "null-audio", false, "Discard audio instead of opening the sound device")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if playStyle != "" {
		cfg.Style = playStyle
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// The UI owns the terminal, so logs go to a file
	logFile := playLogFile
	if logFile == "" && !playHeadless {
		logFile = filepath.Join(cfg.DataDir, "murmur.log")
	}
	logger := setupLogger(logFile, playLogLevel)

	logger.Info().
		Str("version", version).
		Str("data_dir", cfg.DataDir).
		Bool("headless", playHeadless).
		Msg("Starting murmur")

	lib, err := library.Open(cfg.LibraryPath())
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer lib.Close()

	st := status.Default()
	hints := status.Hydrate(cfg.Store(), &st)
	logger.Debug().
		Dur("current_time", hints.CurrentTime).
		Dur("duration", hints.Duration).
		Bool("playing", hints.Playing).
		Str("loop", st.Loop.String()).
		Bool("muted", st.Muted).
		Msg("Restored preferences")

	sampleRate := beep.SampleRate(cfg.Audio.SampleRate)
	sink := openSink(sampleRate, cfg.Audio.BufferSize, logger)
	out := audio.NewOutput(audio.Config{
		SampleRate:   sampleRate,
		TapSize:      cfg.FFTSize,
		PollInterval: 250 * time.Millisecond,
		EventBuffer:  64,
	}, sink, logger)

	session := player.New(player.Config{
		SkipOnLoadFailure: cfg.Player.SkipOnLoadFailure,
		MaxLoadRetries:    cfg.Player.MaxLoadRetries,
		LoadTimeout:       cfg.Player.LoadTimeout,
	}, out, st, logger,
		player.WithPreferences(cfg.Store()),
		player.WithSelectHook(func(id string) {
			if err := lib.SetCurrentID(context.Background(), id); err != nil {
				logger.Warn().Err(err).Str("id", id).Msg("Failed to persist current track")
			}
		}),
	)

	d := daemon.New(daemon.Config{
		PollInterval: time.Second,
		Autoplay:     playAutoplay,
	}, session, lib, cfg.Store(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if playHeadless {
		if err := d.Run(ctx); err != nil {
			return fmt.Errorf("player error: %w", err)
		}
		logger.Info().Msg("Player stopped")
		return nil
	}

	return runUI(ctx, cfg, d, session, out, logger)
}

// runUI runs the terminal UI on top of the daemon until either stops
func runUI(ctx context.Context, cfg *config.Config, d *daemon.Daemon, session *player.Session, out *audio.Output, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	canvas := tui.NewCanvas()
	renderers := tui.Renderers(canvas)

	driver, err := visualizer.NewDriver(renderers, cfg.Style, cfg.ResizeQuiet, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Unknown style, using bars")
		driver, err = visualizer.NewDriver(renderers, "bars", cfg.ResizeQuiet, logger)
		if err != nil {
			return err
		}
	}
	defer driver.Close()

	sampler := analyser.NewSampler(out.Tap(), cfg.FFTSize)

	app := tui.New(tui.Config{
		FrameRate: cfg.FrameRate,
		Compact:   playCompact,
	}, session, driver, sampler, canvas, logger)
	app.SetStyleHook(func(style string) {
		if err := cfg.Store().Set("style", style); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist style")
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
		app.Stop()
	}()

	uiErr := app.Run(ctx)
	cancel()

	if err := <-done; err != nil {
		return fmt.Errorf("player error: %w", err)
	}
	logger.Info().Msg("Player stopped")
	return uiErr
}

// openSink opens the sound device, falling back to discarding audio in real
// time when there is none
func openSink(sampleRate beep.SampleRate, latency time.Duration, logger zerolog.Logger) audio.Sink {
	if !playNullAudio {
		sink, err := audio.NewSpeakerSink(sampleRate, latency)
		if err == nil {
			return sink
		}
		logger.Warn().Err(err).Msg("No sound device, audio will be discarded")
	}
	return audio.NewNullSink(sampleRate, 50*time.Millisecond)
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
