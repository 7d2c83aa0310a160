package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ebenezer-ucz/ebz/internal/localcache"
	"github.com/ebenezer-ucz/ebz/internal/schema"
)

var (
	exportFormat  string
	exportOffline bool
)

var exportCmd = &cobra.Command{
	Use:   "export [table...]",
	Short: "Dump collections as JSON or YAML",
	Long: `Write the named collections (default: all sixteen) to stdout.

Data is loaded from the remote store; with --offline the local mirror
snapshot from the last successful sync is used instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tables := args
		if len(tables) == 0 {
			tables = schema.Tables()
		}

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		dump := make(map[string]json.RawMessage, len(tables))
		if exportOffline {
			cache, err := localcache.Open(env.cfg.MirrorPath())
			if err != nil {
				return fmt.Errorf("local mirror unavailable: %w", err)
			}
			defer cache.Close()
			for _, table := range tables {
				rows, err := cache.Dump(table)
				if err != nil {
					return err
				}
				items := make([]json.RawMessage, 0, len(rows))
				for _, r := range rows {
					items = append(items, json.RawMessage(r.Payload))
				}
				data, err := json.Marshal(items)
				if err != nil {
					return err
				}
				dump[table] = data
			}
		} else {
			degraded, err := env.load(context.Background())
			if err != nil {
				return err
			}
			if degraded {
				return fmt.Errorf("remote schema missing; try --offline for the mirror snapshot")
			}
			for _, table := range tables {
				data, err := env.st.ExportTable(table)
				if err != nil {
					return err
				}
				dump[table] = data
			}
		}

		switch exportFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(dump)
		case "yaml":
			// Re-decode so YAML sees structures, not raw JSON bytes.
			plain := make(map[string]any, len(dump))
			for table, data := range dump {
				var v any
				if err := json.Unmarshal(data, &v); err != nil {
					return err
				}
				plain[table] = v
			}
			return yaml.NewEncoder(os.Stdout).Encode(plain)
		default:
			return fmt.Errorf("unknown format %q (json or yaml)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or yaml")
	exportCmd.Flags().BoolVar(&exportOffline, "offline", false, "read the local mirror instead of the remote store")
}
