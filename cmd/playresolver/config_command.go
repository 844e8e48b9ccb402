package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"playresolver/internal/app"
	"playresolver/internal/musicbrainz"
	"playresolver/internal/resolve"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigCheckCommand(ctx))
	return configCmd
}

func newConfigCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the resolver configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonFlag || !isTerminal(out) {
				return emitJSON(cmd, map[string]any{
					"source":   configSource(ctx.env),
					"cache":    ctx.env.CacheBackend,
					"hosts":    hostInfos(resolver),
					"defaults": resolver.Defaults,
				})
			}
			fmt.Fprintf(out, "Configuration OK (%s)\n", configSource(ctx.env))
			fmt.Fprintln(out, renderHosts(resolver))
			fmt.Fprintln(out, renderStageConfig(resolver.Defaults))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON even on a terminal")
	return cmd
}

func configSource(env app.Config) string {
	if env.ResolverConfigPath == "" {
		return "built-in defaults"
	}
	return env.ResolverConfigPath
}

func hostInfos(resolver app.Resolver) []any {
	items := make([]any, 0, len(resolver.Hosts))
	for _, hostCfg := range resolver.Hosts {
		items = append(items, musicbrainz.NewClient(hostCfg).Info())
	}
	return items
}

func renderHosts(resolver app.Resolver) string {
	rows := make([][]string, 0, len(resolver.Hosts))
	for _, hostCfg := range resolver.Hosts {
		info := musicbrainz.NewClient(hostCfg).Info()
		rows = append(rows, []string{
			info.Name,
			info.URL,
			fmt.Sprintf("%d / %s", info.RateLimit, info.Interval),
			info.TTL.String(),
			info.Timeout.String(),
			yesNo(info.HasAPIKey),
		})
	}
	return renderTable("Hosts", []column{
		{Header: "Host"},
		{Header: "URL"},
		{Header: "Rate", Right: true},
		{Header: "TTL", Right: true},
		{Header: "Timeout", Right: true},
		{Header: "API key"},
	}, rows)
}

func renderStageConfig(cfg resolve.StageConfig) string {
	fields := make([]string, 0, len(cfg.SearchWhenMissing))
	for _, field := range cfg.SearchWhenMissing {
		fields = append(fields, string(field))
	}
	artistFallback := string(cfg.FallbackArtistSearch)
	if artistFallback == "" {
		artistFallback = "off"
	}
	rows := [][]string{
		{"searchWhenMissing", strings.Join(fields, ", ")},
		{"forceSearch", strconv.FormatBool(cfg.ForceSearch)},
		{"score", strconv.Itoa(cfg.Score)},
		{"fallbackAlbumSearch", strconv.FormatBool(cfg.FallbackAlbumSearch)},
		{"fallbackArtistSearch", artistFallback},
		{"fallbackFreeText", strconv.FormatBool(cfg.FallbackFreeText)},
		{"ignoreVA", strconv.FormatBool(cfg.IgnoreVA)},
		{"releaseAllowEmpty", strconv.FormatBool(cfg.ReleaseAllowEmpty)},
		{"escapeCharacters", strconv.FormatBool(cfg.EscapeCharacters)},
		{"removeCharacters", strconv.FormatBool(cfg.RemoveCharacters)},
		{"searchLimit", strconv.Itoa(cfg.SearchLimit)},
	}
	for _, axis := range []struct {
		name  string
		rules resolve.AxisRules
	}{
		{"releaseStatus", cfg.ReleaseStatus},
		{"releaseGroupPrimaryType", cfg.ReleaseGroupPrimaryType},
		{"releaseGroupSecondaryType", cfg.ReleaseGroupSecondaryType},
		{"releaseCountry", cfg.ReleaseCountry},
	} {
		rows = append(rows,
			[]string{axis.name + "Allow", strings.Join(axis.rules.Allow, ", ")},
			[]string{axis.name + "Deny", strings.Join(axis.rules.Deny, ", ")},
			[]string{axis.name + "Priority", strings.Join(axis.rules.Priority, ", ")},
		)
	}
	return renderTable("Stage config", leftColumns("Setting", "Value"), rows)
}
