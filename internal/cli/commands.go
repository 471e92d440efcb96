package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/logging"
	"github.com/dyike/PainRadar/internal/storage"
)

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "painradar",
		Short: "PainRadar - Reddit pain point analysis",
		Long: `PainRadar reads a subreddit, finds the problems its members keep running into,
and turns them into business opportunities with a written report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start the interactive chat
			return runChat(cmd.Context(), opts, "")
		},
	}

	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path (JSON)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newSolutionsCmd(opts))
	rootCmd.AddCommand(newChatCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// load returns the effective configuration. With --config the file is the
// source of truth; otherwise defaults, .env and the environment are used.
func (o *rootOptions) load() (*config.Config, error) {
	var cfg *config.Config
	if o.configPath != "" {
		mgr, err := config.NewManager(config.WithConfigPath(o.configPath), config.WithInitialConfig(config.DefaultConfig()))
		if err != nil {
			return nil, err
		}
		c := mgr.Get()
		cfg = &c
	} else {
		cfg = config.DefaultConfig()
	}
	if o.debug {
		cfg.Debug = true
	}
	logging.Configure(cfg)
	return cfg, nil
}

// manager returns the config manager serve watches. Without --config the
// file lives in the data directory and is seeded from the environment.
func (o *rootOptions) manager() (*config.Manager, error) {
	initial := config.DefaultConfig()
	if o.debug {
		initial.Debug = true
	}
	if o.configPath != "" {
		return config.NewManager(config.WithConfigPath(o.configPath), config.WithInitialConfig(initial))
	}
	return config.NewManager(config.WithConfigDir(initial.DataDir), config.WithInitialConfig(initial))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(titleStyle.Render(fmt.Sprintf("%s v%s", consts.AppName, consts.Version)))
			fmt.Println("Reddit community pain point analysis")
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration, secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			showConfig(cfg)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and the datastore connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return validateConfig(cmd.Context(), cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update one key of the configuration file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.manager()
			if err != nil {
				return err
			}
			if err := mgr.UpdateFromJSON(setPatch(args[0], args[1])); err != nil {
				return err
			}
			fmt.Println(completedStyle.Render(fmt.Sprintf("✔ %s updated in %s", args[0], mgr.Path())))
			return nil
		},
	})

	return configCmd
}

// setPatch turns key=value into a JSON patch. Values that already parse as
// JSON keep their type, anything else is sent as a string.
func setPatch(key, value string) string {
	raw := json.RawMessage(strings.TrimSpace(value))
	if !json.Valid(raw) {
		raw, _ = json.Marshal(value)
	}
	patch, _ := json.Marshal(map[string]json.RawMessage{key: raw})
	return string(patch)
}

func showConfig(cfg *config.Config) {
	c := cfg.Redacted()
	fmt.Println(headerStyle.Render("📋 Current PainRadar configuration"))
	rows := [][2]string{
		{"Project directory", c.ProjectDir},
		{"Data directory", c.DataDir},
		{"Log level", c.LogLevel},
		{"", ""},
		{"LLM provider", c.LLMProvider},
		{"Chat model", c.ChatModel},
		{"Backend URL", c.BackendURL},
		{"API key", c.LLMAPIKey()},
		{"", ""},
		{"Database", c.DatabaseType},
		{"Database URL", c.DatabaseURL},
		{"HTTP address", c.Addr()},
		{"Report mode", c.ReportMode},
		{"Report currency", c.ReportCurrency},
		{"Request timeout", c.RequestTimeout().String()},
		{"Workflow timeout", c.WorkflowTimeout().String()},
		{"", ""},
		{"Reddit user agent", c.RedditUserAgent},
		{"Reddit OAuth", strconv.FormatBool(c.RedditClientID != "")},
		{"Eino debug", strconv.FormatBool(c.EinoDebugEnabled)},
	}
	for _, r := range rows {
		if r[0] == "" {
			fmt.Println()
			continue
		}
		fmt.Printf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-20s", r[0]+":")), r[1])
	}
}

func validateConfig(ctx context.Context, cfg *config.Config) error {
	fmt.Println(headerStyle.Render("🔍 Validating PainRadar configuration"))

	fmt.Print("⚙️  Checking configuration values... ")
	if err := cfg.Validate(); err != nil {
		fmt.Println(errorStyle.Render("✘"))
		return err
	}
	fmt.Println(completedStyle.Render("✔"))

	fmt.Print("📁 Checking directories... ")
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Println(errorStyle.Render("✘"))
		return err
	}
	fmt.Println(completedStyle.Render("✔"))

	var warnings []string
	if cfg.LLMAPIKey() == "" {
		warnings = append(warnings, fmt.Sprintf("no API key for %s: analyses cannot run", cfg.LLMProvider))
	}
	if cfg.RedditClientID == "" || cfg.RedditSecret == "" {
		warnings = append(warnings, "Reddit credentials not configured: using the public endpoints")
	}

	fmt.Printf("🗄️  Connecting to %s... ", cfg.DatabaseType)
	store, err := storage.New(ctx, cfg)
	if err != nil {
		fmt.Println(errorStyle.Render("✘"))
		return err
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		fmt.Println(errorStyle.Render("✘"))
		return err
	}
	fmt.Println(completedStyle.Render("✔"))

	fmt.Println()
	if len(warnings) == 0 {
		fmt.Println(completedStyle.Render("Configuration is valid."))
		return nil
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stdout, inProgressStyle.Render("⚠ "+w))
	}
	return nil
}
