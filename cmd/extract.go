/*
Copyright 2025 Lucas Chagas <lucas.w.chagas@gmail.com>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/demostf/steamvoice/internal/extract"
	"github.com/spf13/cobra"
)

var (
	// playerFilter is a comma-separated list of SteamID64s to filter by
	playerFilter string

	// outputFormat is the requested output audio format
	outputFormat string

	// steamID64Regex is the regular expression for validating SteamID64 format
	// SteamID64 should be a 17-digit number starting with 7656
	steamID64Regex = regexp.MustCompile(`^7656\d{13}$`)
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [flags] <demo-file>",
	Short: "Extract voice data from a CS2 demo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		demoPath := args[0]

		playerIDs, err := parsePlayerFilter(playerFilter)
		if err != nil {
			return err
		}

		cfg := extract.Config{
			DemoPath:       demoPath,
			OutputDir:      Opts.AbsOutputDir,
			ForceOverwrite: Opts.ForceOverwrite,
			PlayerIDs:      playerIDs,
			Format:         outputFormat,
			MetricsAddr:    Opts.MetricsAddr,
			LiveAddr:       Opts.LiveAddr,
			DumpRawDir:     Opts.DumpRawDir,
		}

		if err := extract.Run(cfg); err != nil {
			return err
		}

		msg := fmt.Sprintf("Voice data extraction complete. Files saved to: %s", Opts.AbsOutputDir)
		if len(playerIDs) > 0 {
			msg += fmt.Sprintf(" (filtered to %d players)", len(playerIDs))
		}
		fmt.Println(msg)
		return nil
	},
}

// parsePlayerFilter splits a comma-separated SteamID64 list, skipping and
// warning about malformed entries. An empty filter string returns a nil
// slice, meaning "all players".
func parsePlayerFilter(filter string) ([]string, error) {
	if filter == "" {
		return nil, nil
	}

	var playerIDs, invalidIDs []string
	for _, id := range strings.Split(filter, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !steamID64Regex.MatchString(id) {
			slog.Warn("invalid SteamID64 format, skipping", "id", id)
			invalidIDs = append(invalidIDs, id)
			continue
		}
		playerIDs = append(playerIDs, id)
	}

	if len(playerIDs) == 0 && len(invalidIDs) > 0 {
		return nil, fmt.Errorf("no valid SteamID64s provided, received: %s", strings.Join(invalidIDs, ", "))
	}
	return playerIDs, nil
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&playerFilter, "players", "p", "", "filter to specific players by steamID64 (comma-separated list)")
	extractCmd.Flags().StringVar(&outputFormat, "format", "wav", "output audio format (wav, mp3, ogg, flac, aac, m4a)")
}
