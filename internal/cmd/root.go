package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"braid/internal/config"
	"braid/internal/config/yamlstore"
	"braid/internal/journal"
	"braid/internal/store"
)

// AppProvider lazily initializes the App on first use, so commands that
// never touch the workspace (version, init) don't require one.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	// Config captured from flags before Execute()
	BraidPath  string
	JSONOutput bool
	Quiet      bool
	Out        io.Writer
	Err        io.Writer
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

// NewTestProvider creates a provider pre-initialized with the given App.
// Used for testing commands with a test App.
func NewTestProvider(app *App) *AppProvider {
	return &AppProvider{
		app: app,
		Out: app.Out,
		Err: app.Err,
	}
}

func (p *AppProvider) init() (*App, error) {
	paths, err := config.ResolvePaths(p.BraidPath)
	if err != nil {
		return nil, err
	}

	configStore, err := yamlstore.New(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyDefaults(configStore); err != nil {
		return nil, err
	}
	config.ApplyEnvOverrides(configStore)
	if err := config.Validate(configStore); err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}

	return &App{
		Journal:     journal.New(paths.ConfigDir),
		ConfigStore: configStore,
		ConfigDir:   paths.ConfigDir,
		Out:         out,
		Err:         errOut,
		JSON:        p.JSONOutput || envTruthy(config.EnvJSON),
		Quiet:       p.Quiet || envTruthy(config.EnvQuiet),
	}, nil
}

func envTruthy(name string) bool {
	v := os.Getenv(name)
	return v == "1" || v == "true"
}

// Execute runs the CLI.
func Execute() error {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}

	rootCmd := newRootCmd(provider)
	err := rootCmd.Execute()
	if err != nil {
		reportError(provider, err)
	}
	return err
}

// reportError prints the failure in the format the caller asked for:
// a machine-readable JSON object under --json, plain text otherwise.
func reportError(provider *AppProvider, err error) {
	errOut := provider.Err
	if errOut == nil {
		errOut = os.Stderr
	}
	if provider.JSONOutput || envTruthy(config.EnvJSON) {
		payload := map[string]string{
			"error":   errorKind(err),
			"message": err.Error(),
		}
		_ = json.NewEncoder(errOut).Encode(payload)
		return
	}
	fmt.Fprintf(errOut, "Error: %s\n", err)
}

// errorKind maps sentinel errors to stable machine-readable names.
func errorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, store.ErrInvalidParent):
		return "invalid_parent"
	case errors.Is(err, store.ErrInvalidEdge):
		return "invalid_edge"
	case errors.Is(err, store.ErrCycle):
		return "cycle"
	case errors.Is(err, store.ErrLockTimeout):
		return "lock_timeout"
	default:
		return "error"
	}
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "braid",
		Short: "A git-backed issue tracker with dependency awareness",
		Long: `Braid is a git-native issue tracker that stores issues as an append-only
event log in .braid/issues.jsonl. The log merges like source code: divergent
replicas reconcile automatically, id collisions are repaired deterministically,
and blocking dependencies drive the ready-work queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if provider.Quiet {
				logrus.SetLevel(logrus.ErrorLevel)
			}
		},
	}

	// Global flags - these populate the provider config
	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&provider.Quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&provider.BraidPath, "path", "", "Path to the .braid directory (default: search from cwd)")

	rootCmd.AddCommand(newInitCmd(provider))
	rootCmd.AddCommand(newCreateCmd(provider))
	rootCmd.AddCommand(newShowCmd(provider))
	rootCmd.AddCommand(newUpdateCmd(provider))
	rootCmd.AddCommand(newCloseCmd(provider))
	rootCmd.AddCommand(newReopenCmd(provider))
	rootCmd.AddCommand(newDeleteCmd(provider))
	rootCmd.AddCommand(newCommentCmd(provider))
	rootCmd.AddCommand(newDepCmd(provider))
	rootCmd.AddCommand(newReadyCmd(provider))
	rootCmd.AddCommand(newBlockedCmd(provider))
	rootCmd.AddCommand(newListCmd(provider))
	rootCmd.AddCommand(newLabelCmd(provider))
	rootCmd.AddCommand(newExportCmd(provider))
	rootCmd.AddCommand(newImportCmd(provider))
	rootCmd.AddCommand(newCompactCmd(provider))
	rootCmd.AddCommand(newMigrateCmd(provider))
	rootCmd.AddCommand(newSyncCmd(provider))
	rootCmd.AddCommand(newDaemonCmd(provider))
	rootCmd.AddCommand(newDoctorCmd(provider))
	rootCmd.AddCommand(newConfigCmd(provider))
	rootCmd.AddCommand(newVersionCmd(provider))

	return rootCmd
}
