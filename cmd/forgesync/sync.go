package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/forgevtt/forgesync/internal/config"
	"github.com/forgevtt/forgesync/internal/datastore"
	"github.com/forgevtt/forgesync/internal/forgeapi"
	"github.com/forgevtt/forgesync/internal/migrate"
	"github.com/forgevtt/forgesync/internal/sync"
	"github.com/forgevtt/forgesync/internal/utils"
)

// runSync wires the store, API client and optional world migrator into
// one engine run and renders the outcome.
func runSync(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	forceRehash, _ := cmd.Flags().GetBool("force-rehash")
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	store, err := datastore.NewLocalStore(cfg.MirrorDir())
	if err != nil {
		return fmt.Errorf("open mirror: %w", err)
	}

	api := forgeapi.New(cfg.ServerURL, cfg.APIKey)
	remote := sync.NewRemoteLibrary(api)

	opts := sync.Options{
		ForceLocalRehash:         forceRehash,
		OverwriteLocalMismatches: overwrite,
	}

	var walker *migrate.Walker
	if cfg.World != "" {
		worldDir := cfg.WorldDir()
		if !utils.DirExists(worldDir) {
			return fmt.Errorf("world directory %q does not exist", worldDir)
		}
		resolver := migrate.NewResolver(
			cfg.AssetsBaseURL(),
			cfg.BazaarBaseURL(),
			migrate.NewFSPackageIndex(cfg.DataDir),
			worldDir,
		)
		walker = migrate.NewWalker(migrate.NewNeDBStore(worldDir), resolver)
		opts.UpdateWorldDb = true
	}

	engine := sync.NewEngine(remote, store, opts, migratorOrNil(walker), newProgressPrinter())

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	printResult(result)
	if walker != nil {
		fmt.Println(walker.Report().Summary())
	}

	exitCode = result.Status.ExitCode()
	return nil
}

// migratorOrNil keeps a typed-nil *Walker out of the engine's
// interface field.
func migratorOrNil(w *migrate.Walker) sync.WorldMigrator {
	if w == nil {
		return nil
	}
	return w
}

// newProgressPrinter renders progress on a single line when attached
// to a terminal, one slog line otherwise.
func newProgressPrinter() sync.ProgressFunc {
	tty := isatty.IsTerminal(os.Stdout.Fd())
	return func(u sync.ProgressUpdate) {
		if u.Total == 0 {
			return
		}
		if tty {
			fmt.Printf("\r\033[K%s [%d/%d] %s", u.Step, u.Current, u.Total, u.Name)
			if u.Current == u.Total {
				fmt.Println()
			}
			return
		}
		slog.Debug("progress", "step", u.Step, "current", u.Current, "total", u.Total, "name", u.Name)
	}
}

func printResult(r *sync.Result) {
	fmt.Println()
	switch r.Status {
	case sync.StatusComplete:
		fmt.Println(green("sync complete"))
	case sync.StatusCompletedWithErrors:
		fmt.Println(yellow("sync completed with errors"))
	case sync.StatusCancelled:
		fmt.Println(yellow("sync cancelled"))
	default:
		fmt.Println(red("sync " + string(r.Status)))
	}

	fmt.Printf("  synced  %s\n", humanize.Comma(int64(len(r.Synced))))
	fmt.Printf("  skipped %s\n", humanize.Comma(int64(len(r.Skipped))))
	fmt.Printf("  failed  %s\n", humanize.Comma(int64(len(r.Failed))))
	fmt.Printf("  took    %s\n", r.Duration.Round(10*time.Millisecond))

	for _, f := range r.Failed {
		fmt.Printf("  %s %s: %s\n", red("✗"), f.Name, f.Reason)
	}
}
