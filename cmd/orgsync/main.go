package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/everstacklabs/orgsync/internal/cache"
	"github.com/everstacklabs/orgsync/internal/config"
	"github.com/everstacklabs/orgsync/internal/loader"
	"github.com/everstacklabs/orgsync/internal/provider/githubapi"
	"github.com/everstacklabs/orgsync/internal/reconcile"
	"github.com/everstacklabs/orgsync/internal/report"
	"github.com/everstacklabs/orgsync/internal/validate"
)

var cfgFile string

// exitError carries a specific process exit code through cobra's error path
// so deferred cleanup still runs before main exits.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func exitCode(code int) error {
	if code == reconcile.ExitSuccess {
		return nil
	}
	return exitError{code: code}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "orgsync",
		Short:         "Declarative GitHub organization management",
		Long:          "Reconciles GitHub organizations against YAML configuration: settings, webhooks, repositories, rulesets, secrets, variables, and environments.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./orgsync.yaml)")

	rootCmd.AddCommand(
		planCmd(),
		applyCmd(),
		fetchCmd(),
		validateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what would change (no writes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, runner, _, err := setup(cmd)
			if err != nil {
				return err
			}

			results, err := runner.Plan(cmd.Context())
			printResults(results, nil)
			if err != nil {
				return err
			}

			return exitCode(reconcile.ExitCodeFor(results, true))
		},
	}
	addRunFlags(cmd)
	return cmd
}

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply pending changes to the configured organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, runner, _, err := setup(cmd)
			if err != nil {
				return err
			}

			results, err := runner.Apply(cmd.Context())
			printResults(results, func(r reconcile.RunResult) {
				if r.Apply != nil {
					fmt.Print(report.RenderApply(r.Org, r.Apply))
				}
			})
			if err != nil {
				return err
			}

			return exitCode(reconcile.ExitCodeFor(results, false))
		},
	}
	addRunFlags(cmd)
	return cmd
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Import live organization state into config files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, runner, repo, err := setup(cmd)
			if err != nil {
				return err
			}

			orgs := cfg.Orgs
			if len(orgs) == 0 {
				orgs, err = runner.Orgs()
				if err != nil {
					return err
				}
			}

			for _, org := range orgs {
				imported, err := runner.Import(cmd.Context(), org)
				if err != nil {
					return fmt.Errorf("importing %s: %w", org, err)
				}
				path := loader.ConfigPath(cfg.ConfigPath, org)
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return err
				}
				if err := loader.Save(path, imported); err != nil {
					return err
				}
				slog.Info("config written", "org", org, "path", path)
			}

			push, _ := cmd.Flags().GetBool("push")
			if push && repo != nil {
				msg := fmt.Sprintf("Import live state for %d organization(s)", len(orgs))
				if err := repo.CommitAndPush(cmd.Context(), msg); err != nil {
					return err
				}
				slog.Info("config repo updated")
			}
			return nil
		},
	}
	cmd.Flags().Bool("push", false, "Commit and push imported configs to the config repo")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate organization configs without contacting GitHub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			runner := reconcile.New(cfg, nil)
			orgs, err := runner.Orgs()
			if err != nil {
				return err
			}

			failed := false
			for _, org := range orgs {
				expected, err := loader.Load(loader.ConfigPath(cfg.ConfigPath, org))
				if err != nil {
					fmt.Printf("%s: %v\n", org, err)
					failed = true
					continue
				}
				result := validate.Organization(expected)
				for _, issue := range result.Issues {
					fmt.Println(issue.String())
				}
				if result.HasErrors() {
					failed = true
				} else {
					fmt.Printf("%s: ok\n", org)
				}
			}
			if failed {
				return exitCode(reconcile.ExitValidation)
			}
			return nil
		},
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("orgs", nil, "Organizations to reconcile (default: all configured)")
	cmd.Flags().Bool("prune", false, "Delete live entities absent from the configuration")
	cmd.Flags().Bool("no-cache", false, "Bypass the conditional-request cache")
}

func setup(cmd *cobra.Command) (*config.Config, *reconcile.Runner, *loader.ConfigRepo, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	if orgs, _ := cmd.Flags().GetStringSlice("orgs"); len(orgs) > 0 {
		cfg.Orgs = orgs
	}
	if prune, _ := cmd.Flags().GetBool("prune"); prune {
		cfg.Prune = true
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.NoCache = true
	}

	setupLogging(cfg.LogLevel)

	if cfg.GitHub.Token == "" {
		return nil, nil, nil, fmt.Errorf("no GitHub token configured (set GITHUB_TOKEN)")
	}

	repo, err := reconcile.SyncConfigRepo(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	gw, err := buildGateway(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, reconcile.New(cfg, gw), repo, nil
}

func buildGateway(ctx context.Context, cfg *config.Config) (*githubapi.Gateway, error) {
	opts := []githubapi.Option{
		githubapi.WithRateLimit(cfg.RateLimit),
	}
	if cfg.GitHub.BaseURL != "" {
		opts = append(opts, githubapi.WithBaseURL(cfg.GitHub.BaseURL))
	}
	if !cfg.NoCache {
		ttl, err := cfg.ParsedCacheTTL()
		if err != nil {
			ttl = time.Hour
		}
		store, err := cache.New(cfg.CacheDir, ttl)
		if err != nil {
			slog.Warn("failed to create cache, continuing without", "error", err)
		} else {
			opts = append(opts, githubapi.WithCache(store))
		}
	}
	return githubapi.New(ctx, cfg.GitHub.Token, opts...)
}

func printResults(results []reconcile.RunResult, extra func(reconcile.RunResult)) {
	for _, r := range results {
		if r.Validation != nil {
			for _, issue := range r.Validation.Errors() {
				fmt.Println(issue.String())
			}
		}
		if r.Diff != nil {
			fmt.Print(report.RenderDiff(r.Diff))
		}
		if extra != nil {
			extra(r)
		}
		if r.Error != nil {
			slog.Error("run failed", "org", r.Org, "error", r.Error)
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
