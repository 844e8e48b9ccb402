package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"playresolver/internal/domain"
	"playresolver/internal/resolve"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var (
		artists  []string
		title    string
		album    string
		isrc     string
		force    bool
		score    int
		jsonFlag bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one play and print the enriched metadata",
		Example: `  playresolver resolve --artist "Daft Punk" --title "One More Time"
  playresolver resolve --artist "Artist A, Artist B" --title "Song (feat. C)" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			play := domain.Play{
				Artists: artists,
				Track:   strings.TrimSpace(title),
				Album:   strings.TrimSpace(album),
				ISRC:    strings.TrimSpace(isrc),
			}
			if !play.Has(domain.FieldTitle) && !play.Has(domain.FieldArtists) && play.ISRC == "" {
				return errors.New("at least one of --title, --artist or --isrc is required")
			}

			var override resolve.StageOverride
			if cmd.Flags().Changed("force") {
				override.ForceSearch = &force
			}
			if cmd.Flags().Changed("score") {
				override.Score = &score
			}

			logger := ctx.logger()
			store, closeStore := buildCache(cmd.Context(), ctx.env, logger)
			defer closeStore()
			service, err := buildService(ctx.env, resolver, store, logger)
			if err != nil {
				return err
			}

			result, err := service.Resolve(cmd.Context(), play, override)
			softOutcome := errors.Is(err, domain.ErrSkipped) || domain.IsNoMatch(err)
			out := cmd.OutOrStdout()
			if jsonFlag || !isTerminal(out) {
				if writeErr := emitJSON(cmd, resolveOutput(result, err)); writeErr != nil {
					return writeErr
				}
				if err != nil && !softOutcome {
					return err
				}
				return nil
			}
			if err != nil {
				if softOutcome {
					fmt.Fprintln(out, err.Error())
					return nil
				}
				return err
			}
			fmt.Fprintln(out, renderResult(result))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&artists, "artist", "a", nil, "Artist name (repeatable)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Track title")
	cmd.Flags().StringVar(&album, "album", "", "Album title")
	cmd.Flags().StringVar(&isrc, "isrc", "", "ISRC of the recording")
	cmd.Flags().BoolVar(&force, "force", false, "Search even when nothing is missing")
	cmd.Flags().IntVar(&score, "score", resolve.DefaultScoreThreshold, "Minimum candidate score (0-100)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON even on a terminal")
	return cmd
}

type resolveCLIOutput struct {
	Outcome string          `json:"outcome"`
	Result  *resolve.Result `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func resolveOutput(result resolve.Result, err error) resolveCLIOutput {
	switch {
	case err == nil:
		return resolveCLIOutput{Outcome: "resolved", Result: &result}
	case errors.Is(err, domain.ErrSkipped):
		return resolveCLIOutput{Outcome: "skipped", Error: err.Error()}
	case domain.IsNoMatch(err):
		return resolveCLIOutput{Outcome: "no_match", Error: err.Error()}
	default:
		return resolveCLIOutput{Outcome: "error", Error: err.Error()}
	}
}

func renderResult(result resolve.Result) string {
	rows := [][]string{
		{"Track", result.Original.Track, result.Play.Track},
		{"Artists", strings.Join(result.Original.Artists, ", "), strings.Join(result.Play.Artists, ", ")},
		{"Album", result.Original.Album, result.Play.Album},
		{"Album artists", strings.Join(result.Original.AlbumArtists, ", "), strings.Join(result.Play.AlbumArtists, ", ")},
		{"ISRC", result.Original.ISRC, result.Play.ISRC},
		{"Recording ID", result.Original.IDs.Recording, result.Play.IDs.Recording},
		{"Release ID", result.Original.IDs.Release, result.Play.IDs.Release},
	}
	summary := renderTable("Play", leftColumns("Field", "Original", "Resolved"), rows)

	details := [][]string{
		{"Stage", string(result.Stage)},
		{"Score", strconv.Itoa(result.Recording.Score)},
		{"Similarity", strconv.FormatFloat(result.Similarity, 'f', 3, 64)},
		{"Free text", yesNo(result.FreeText)},
		{"Host", result.Host},
		{"Cached", yesNo(result.Cached)},
		{"Query", result.Query},
	}
	return summary + "\n" + renderTable("Match", leftColumns("Detail", "Value"), details)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
