package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jfmyers9/murmur/internal/config"
	"github.com/jfmyers9/murmur/internal/library"
	"github.com/jfmyers9/murmur/internal/music"
	"github.com/spf13/cobra"
)

// libraryCmd represents the library command
var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the track library",
	Long: `Manage the tracks murmur plays.

Tracks are referenced by id, a unique id prefix, or their name. A running
player picks up changes within a second.`,
}

var libraryAddCmd = &cobra.Command{
	Use:   "add <path|url>...",
	Short: "Add tracks to the library",
	Long: `Add local files (mp3, wav, flac, ogg) or http(s) URLs to the end of the library.

Relative paths are stored as absolute paths.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLibraryAdd,
}

var libraryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracks in the library",
	Args:    cobra.NoArgs,
	RunE:    runLibraryList,
}

var libraryLikeCmd = &cobra.Command{
	Use:   "like <track>",
	Short: "Mark a track as liked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setLiked(cmd, args[0], true)
	},
}

var libraryUnlikeCmd = &cobra.Command{
	Use:   "unlike <track>",
	Short: "Clear the liked mark of a track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setLiked(cmd, args[0], false)
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:     "remove <track>",
	Aliases: []string{"rm"},
	Short:   "Remove a track from the library",
	Args:    cobra.ExactArgs(1),
	RunE:    runLibraryRemove,
}

var librarySelectCmd = &cobra.Command{
	Use:   "select <track>",
	Short: "Make a track current",
	Long: `Make a track the current one. A running player switches to it and
starts playing; otherwise it is loaded the next time murmur plays.`,
	Args: cobra.ExactArgs(1),
	RunE: runLibrarySelect,
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryAddCmd, libraryListCmd, libraryLikeCmd, libraryUnlikeCmd, libraryRemoveCmd, librarySelectCmd)

	libraryAddCmd.Flags().StringP("name", "n", "", "Display name (only with a single track)")
	libraryAddCmd.Flags().Bool("liked", false, "Mark the added tracks as liked")
	libraryListCmd.Flags().Bool("liked", false, "Only list liked tracks")
}

// openLibrary loads the configuration and opens the library it points at
func openLibrary() (*library.Library, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	dbPath := cfg.LibraryPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lib, err := library.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return lib, nil
}

func runLibraryAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name, _ := cmd.Flags().GetString("name")
	liked, _ := cmd.Flags().GetBool("liked")
	if name != "" && len(args) > 1 {
		return fmt.Errorf("--name can only be used when adding a single track")
	}

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	for _, arg := range args {
		locator, err := normalizeLocator(arg)
		if err != nil {
			return err
		}

		track, err := lib.Add(ctx, music.Track{Name: name, URL: locator, Liked: liked})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", arg, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", shortID(track.ID), track.Name)
	}
	return nil
}

// normalizeLocator makes local paths absolute and leaves URLs alone
func normalizeLocator(arg string) (string, error) {
	if strings.Contains(arg, "://") {
		return arg, nil
	}

	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", arg, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cannot add %s: %w", arg, err)
	}
	return abs, nil
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	likedOnly, _ := cmd.Flags().GetBool("liked")

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	entries, err := lib.Entries(ctx)
	if err != nil {
		return err
	}
	current, err := lib.CurrentID(ctx)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Library is empty. Add tracks with 'murmur library add'.")
		return nil
	}

	renderTracks(cmd.OutOrStdout(), entries, current, likedOnly)
	return nil
}

// renderTracks renders the library as a table
func renderTracks(w io.Writer, entries []library.Entry, currentID string, likedOnly bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"#", "", "ID", "Name", "♥", "Source", "Added"})

	for i, e := range entries {
		if likedOnly && !e.Liked {
			continue
		}

		marker := ""
		if e.ID == currentID {
			marker = text.FgGreen.Sprint("▶")
		}
		heart := ""
		if e.Liked {
			heart = text.FgHiRed.Sprint("♥")
		}

		t.AppendRow(table.Row{
			i + 1,
			marker,
			shortID(e.ID),
			e.Name,
			heart,
			shortenLocator(e.URL, 40),
			e.AddedAt.Format("2006-01-02"),
		})
	}

	t.Render()
}

func setLiked(cmd *cobra.Command, ref string, liked bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	track, err := lib.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := lib.SetLiked(ctx, track.ID, liked); err != nil {
		return err
	}

	verb := "Liked"
	if !liked {
		verb = "Unliked"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, track.Name)
	return nil
}

func runLibraryRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	track, err := lib.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	if err := lib.Remove(ctx, track.ID); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", track.Name)
	return nil
}

func runLibrarySelect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	track, err := lib.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	if err := lib.SetCurrentID(ctx, track.ID); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", track.Name)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// shortenLocator keeps the tail of long paths and URLs
func shortenLocator(locator string, limit int) string {
	r := []rune(locator)
	if len(r) <= limit {
		return locator
	}
	return "…" + string(r[len(r)-limit+1:])
}
