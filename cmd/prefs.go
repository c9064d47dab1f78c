package cmd

import (
	"fmt"

	"github.com/jfmyers9/murmur/internal/config"
	"github.com/jfmyers9/murmur/internal/music"
	"github.com/jfmyers9/murmur/internal/status"
	"github.com/spf13/cobra"
)

// loopCmd represents the loop command
var loopCmd = &cobra.Command{
	Use:   "loop [normal|single|like]",
	Short: "Show, cycle or set the loop mode",
	Long: `Control what plays when a track ends.

  normal  play the next track, wrapping at the end of the library
  single  repeat the current track
  like    play the next liked track

Without arguments, cycles normal -> single -> like -> normal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoop,
}

// muteCmd represents the mute command
var muteCmd = &cobra.Command{
	Use:   "mute [on|off]",
	Short: "Toggle or set mute",
	Long: `Mute or unmute playback. The visualizer keeps moving while muted.

Without arguments, toggles mute.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMute,
}

func init() {
	rootCmd.AddCommand(loopCmd)
	rootCmd.AddCommand(muteCmd)
}

// loadPreferences returns the stored preferences and the store they came from
func loadPreferences() (status.PlaybackStatus, *config.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return status.PlaybackStatus{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	st := status.Default()
	status.Hydrate(cfg.Store(), &st)
	return st, cfg.Store(), nil
}

func runLoop(cmd *cobra.Command, args []string) error {
	st, store, err := loadPreferences()
	if err != nil {
		return err
	}

	mode := music.Cycle(st.Loop)
	if len(args) == 1 {
		var ok bool
		mode, ok = music.ParseLoopMode(args[0])
		if !ok {
			return fmt.Errorf("invalid loop mode: %s (must be 'normal', 'single' or 'like')", args[0])
		}
	}

	if err := status.Persist(store, status.FieldLoop, mode); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "loop: %s\n", mode)
	return nil
}

func runMute(cmd *cobra.Command, args []string) error {
	st, store, err := loadPreferences()
	if err != nil {
		return err
	}

	muted := !st.Muted
	if len(args) == 1 {
		switch args[0] {
		case "on":
			muted = true
		case "off":
			muted = false
		default:
			return fmt.Errorf("invalid mute argument: %s (must be 'on' or 'off')", args[0])
		}
	}

	if err := status.Persist(store, status.FieldMuted, muted); err != nil {
		return err
	}

	if muted {
		fmt.Fprintln(cmd.OutOrStdout(), "muted")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "unmuted")
	}
	return nil
}
