package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coolbeans/amlegal/pkg/config"
	"github.com/coolbeans/amlegal/pkg/document"
	"github.com/coolbeans/amlegal/pkg/importer"
	"github.com/coolbeans/amlegal/pkg/store"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "amlegal",
		Short: "American Legal code importer",
		Long: `Amlegal imports American Legal XML exports into a legal code database.

It parses each exported chapter and produces:
  - Structures (titles, chapters, articles, appendices) and laws
  - Cross-references between sections
  - Defined terms with their scope
  - Structured amendment history
  - Permalinks for every structure and law`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log every parsing step")

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(permalinksCmd())
	rootCmd.AddCommand(labelsCmd())
	rootCmd.AddCommand(inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a directory of exported XML files",
		Long: `Import every XML file of a directory in one session, then rebuild permalinks.

Example:
  amlegal import --dir ./export --db code.db
  amlegal import --config amlegal.yaml --edition 2013 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
				cfg.Directory = dir
			}
			if edition, _ := cmd.Flags().GetString("edition"); edition != "" {
				cfg.Edition.Slug = edition
				cfg.Edition.Name = edition
			}
			if cmd.Flags().Changed("current") {
				cfg.Edition.Current, _ = cmd.Flags().GetBool("current")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			watch, _ := cmd.Flags().GetBool("watch")
			replace, _ := cmd.Flags().GetBool("replace")
			asJSON, _ := cmd.Flags().GetBool("json")

			st, err := store.Open(cfg.Database, store.WithMkdirAll())
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			imp := importer.New(st, cfg,
				importer.WithImporterLogger(newLogger(cmd)),
				importer.WithReplace(replace),
			)

			printReport := func(report *importer.Report) {
				if asJSON {
					fmt.Println(importer.FormatReportJSON(report))
				} else {
					fmt.Print(importer.FormatReport(report))
				}
			}

			fmt.Printf("Importing %s into %s (edition %s)\n", cfg.Directory, cfg.Database, cfg.Edition.Slug)
			report, err := imp.Run(ctx)
			if report != nil {
				printReport(report)
			}
			if err != nil {
				return err
			}

			if !watch {
				return nil
			}

			fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", cfg.Directory)
			delay, _ := cmd.Flags().GetDuration("delay")
			return imp.Watch(ctx, delay, func(report *importer.Report, err error) {
				if report != nil {
					printReport(report)
				}
				if err != nil {
					fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
				}
			})
		},
	}

	cmd.Flags().String("dir", "", "Directory of exported XML files (overrides config)")
	cmd.Flags().String("edition", "", "Edition slug (overrides config)")
	cmd.Flags().Bool("current", true, "Mark the edition as current")
	cmd.Flags().Bool("watch", false, "Re-import when files in the directory change (replaces the edition's laws)")
	cmd.Flags().Bool("replace", false, "Delete the edition's laws before importing")
	cmd.Flags().Duration("delay", importer.DefaultWatchDelay, "Quiet period before a watched re-import")
	cmd.Flags().Bool("json", false, "Print the report as JSON")

	return cmd
}

func permalinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permalinks",
		Short: "Rebuild permalinks for every stored structure and law",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			startTime := time.Now()
			imp := importer.New(st, cfg, importer.WithImporterLogger(newLogger(cmd)))
			count, err := imp.BuildPermalinks(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build permalinks: %w", err)
			}

			fmt.Printf("Built %d permalinks in %s\n", count, time.Since(startTime).Round(time.Millisecond))
			return nil
		},
	}
}

func labelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Show the structural label vocabulary, broadest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			labels, err := importer.New(st, cfg).Labels(cmd.Context())
			if err != nil {
				return err
			}

			for i, label := range labels {
				fmt.Printf("%2d  %s\n", len(labels)-1-i, label)
			}
			return nil
		},
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Parse one exported file and print its laws as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			doc, err := document.Parse(data)
			if err != nil {
				return err
			}
			if !doc.HasSections() {
				return fmt.Errorf("no sections found in %s", args[0])
			}

			session, err := importer.NewSession(cfg, cfg.StructureLabels, importer.WithLogger(newLogger(cmd)))
			if err != nil {
				return err
			}
			session.Parse(doc, args[0])

			output, err := json.MarshalIndent(session.Laws(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode laws: %w", err)
			}
			fmt.Println(string(output))

			for _, skip := range session.Skipped() {
				fmt.Fprintf(os.Stderr, "skipped %s: %s\n", skip.Kind, skip.Detail)
			}
			return nil
		},
	}
}

// loadConfig reads --config when given and applies --db.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if db, _ := cmd.Flags().GetString("db"); strings.TrimSpace(db) != "" {
		cfg.Database = db
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
