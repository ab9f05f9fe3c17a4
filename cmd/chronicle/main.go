// Command chronicle runs the narrative memory engine: a status server with an
// async extraction pipeline, plus one-shot ingest/plan/conflicts/stats
// subcommands for scripting.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/internal/engine"
	"github.com/inklet/chronicle/internal/llm"
	"github.com/inklet/chronicle/internal/server"
	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/internal/storage/postgres"
	"github.com/inklet/chronicle/internal/storage/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:           "chronicle",
		Short:         "Narrative memory and context assembly for long-form novel generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configFile string
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file (overlays environment)")

	loadConfig := func() (*config.Config, error) {
		if configFile != "" {
			return config.LoadConfigFile(configFile)
		}
		return config.LoadConfig()
	}

	root.AddCommand(serveCmd(loadConfig))
	root.AddCommand(ingestCmd(loadConfig))
	root.AddCommand(planCmd(loadConfig))
	root.AddCommand(conflictsCmd(loadConfig))
	root.AddCommand(statsCmd(loadConfig))

	if err := root.Execute(); err != nil {
		log.Fatalf("chronicle: %v", err)
	}
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	case "sqlite", "":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlite.NewStore(filepath.Join(cfg.Storage.DataPath, "chronicle.db"))
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
}

// buildEngine constructs the engine with the configured LLM provider.
func buildEngine(cfg *config.Config) (*engine.Engine, storage.Store, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	generator, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	eng, err := engine.New(cfg, store, generator, embedder)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return eng, store, nil
}

func serveCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the status server and async extraction workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, store, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := eng.Start(ctx); err != nil {
				return err
			}

			addr, _, err := server.Start(ctx, cfg, store, eng)
			if err != nil {
				return err
			}
			log.Printf("chronicle: status server running at http://%s", addr)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			<-sigChan

			log.Println("chronicle: shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := eng.Shutdown(shutdownCtx); err != nil {
				log.Printf("chronicle: engine shutdown: %v", err)
			}
			cancel()
			return nil
		},
	}
}

func ingestCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var chapter int
	cmd := &cobra.Command{
		Use:   "ingest <manuscript-id> <chapter-file>",
		Short: "Extract and merge one finished chapter synchronously",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			text, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read chapter file: %w", err)
			}

			eng, store, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := eng.IngestChapter(cmd.Context(), args[0], chapter, string(text)); err != nil {
				return err
			}

			stats, err := eng.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("chapter %d merged: %d characters, %d cameos, %d world entities, %d foreshadowing\n",
				chapter, stats.Characters, stats.Cameos, stats.WorldEntities, stats.Foreshadowing)
			return nil
		},
	}
	cmd.Flags().IntVar(&chapter, "chapter", 1, "chapter number of the ingested text")
	return cmd
}

func planCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var plan engine.ChapterPlan
	cmd := &cobra.Command{
		Use:   "plan <manuscript-id>",
		Short: "Assemble the context package for the next chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, store, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			plan.ManuscriptID = args[0]
			result, err := eng.PlanChapter(cmd.Context(), &plan)
			if err != nil {
				return err
			}

			for _, seg := range result.Context.Segments {
				fmt.Printf("=== %s ===\n%s\n\n", seg.Role, seg.Text)
			}
			fmt.Printf("--- %d segments, %d chars, ~%d tokens, %d warnings\n",
				result.Context.Meta.SegmentCount, result.Context.Meta.TotalChars,
				result.Context.Meta.EstimatedTokens, len(result.Warnings))
			for _, warning := range result.Warnings {
				fmt.Printf("warning: %s\n", warning.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&plan.Chapter, "chapter", 1, "chapter number being planned")
	cmd.Flags().StringVar(&plan.Title, "title", "", "chapter title")
	cmd.Flags().StringVar(&plan.Goal, "goal", "", "chapter goal")
	cmd.Flags().StringVar(&plan.Location, "location", "", "chapter location")
	cmd.Flags().StringVar(&plan.Outline, "outline", "", "story outline text")
	cmd.Flags().StringVar(&plan.UserDirection, "direction", "", "user direction for this chapter")
	return cmd
}

func conflictsCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts <manuscript-id>",
		Short: "Report terminal-status characters that appear again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, store, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			warnings, err := eng.DetectManuscriptConflicts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(warnings) == 0 {
				fmt.Println("no conflicts detected")
				return nil
			}
			for _, warning := range warnings {
				fmt.Println(warning.Message)
			}
			return nil
		},
	}
}

func statsCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <manuscript-id>",
		Short: "Show store counts for a manuscript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, store, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := eng.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("characters:     %d\n", stats.Characters)
			fmt.Printf("cameos:         %d\n", stats.Cameos)
			fmt.Printf("world entities: %d\n", stats.WorldEntities)
			fmt.Printf("foreshadowing:  %d\n", stats.Foreshadowing)
			fmt.Printf("chronicle:      %d\n", stats.Chronicle)
			fmt.Printf("summaries:      %d\n", stats.Summaries)
			return nil
		},
	}
}
