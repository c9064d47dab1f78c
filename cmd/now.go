/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/murmur/internal/config"
	"github.com/jfmyers9/murmur/internal/library"
	"github.com/jfmyers9/murmur/internal/music"
	"github.com/jfmyers9/murmur/internal/status"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the current track",
	Long: `Display the current track of the library.

The output format can be customized in ~/.config/murmur/config.yaml
using a Go template. Available fields: .ID, .Name, .URL, .Liked, .Loop, .Muted

Exit codes:
  0 - A track is selected
  1 - No track selected`,
	RunE: runNow,
}

// nowInfo is the data the output template sees
type nowInfo struct {
	ID    string
	Name  string
	URL   string
	Liked bool
	Loop  string
	Muted bool
}

func init() {
	rootCmd.AddCommand(nowCmd)

	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text (overrides config)")
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	lib, err := library.Open(cfg.LibraryPath())
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer lib.Close()

	id, err := lib.CurrentID(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		lib.Close()
		os.Exit(1)
	}
	track, err := lib.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get current track: %w", err)
	}

	st := status.Default()
	status.Hydrate(cfg.Store(), &st)

	output, err := formatTrack(newNowInfo(track, st), cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	marquee, _ := cmd.Flags().GetBool("marquee")
	if !cmd.Flags().Changed("marquee") {
		marquee = cfg.MarqueeEnabled
	}

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, cfg.MarqueeSpeed, cfg.MarqueeSeparator, time.Now())
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

func newNowInfo(track music.Track, st status.PlaybackStatus) nowInfo {
	return nowInfo{
		ID:    track.ID,
		Name:  track.Name,
		URL:   track.URL,
		Liked: track.Liked,
		Loop:  st.Loop.String(),
		Muted: st.Muted,
	}
}

// formatTrack applies the template to the track data
func formatTrack(info nowInfo, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, info); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width, measured in
// display columns. Text that does not fit is cut and ends in "...".
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	const ellipsis = "..."
	current := runewidth.StringWidth(text)

	switch {
	case current == width:
		return text
	case current < width:
		return text + strings.Repeat(" ", width-current)
	case width <= len(ellipsis):
		return ellipsis[:width]
	}

	cut := runewidth.Truncate(text, width-len(ellipsis), "") + ellipsis
	// A wide rune may leave the cut one column short
	if w := runewidth.StringWidth(cut); w < width {
		cut += strings.Repeat(" ", width-w)
	}
	return cut
}

// marqueeText scrolls text that does not fit through a window of width
// columns. The offset is derived from now, advancing speed runes per second
// through "text + separator + text", so repeated invocations (for example
// from a status bar) animate without keeping state.
func marqueeText(text string, width int, speed int, separator string, now time.Time) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	loop := []rune(text + separator + text)
	start := int(now.Unix()*int64(speed)) % len(loop)
	if start < 0 {
		start += len(loop)
	}

	var b strings.Builder
	used := 0
	for i := 0; i < len(loop); i++ {
		r := loop[(start+i)%len(loop)]
		rw := runewidth.RuneWidth(r)
		if used+rw > width {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	b.WriteString(strings.Repeat(" ", width-used))
	return b.String()
}
