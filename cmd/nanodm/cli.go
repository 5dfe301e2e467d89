package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/nanodm/store"
)

// CLI wires the cobra command tree to a viper configuration
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	logger    *zap.Logger
}

// NewCLI builds the command tree. Configuration is read from flags, then
// NANODM_* environment variables, then nanodm.yaml.
func NewCLI() *CLI {
	cli := &CLI{
		viperInst: viper.New(),
		logger:    zap.NewNop(),
	}
	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

// Execute runs the command named by os.Args
func (cli *CLI) Execute() error {
	defer func() { _ = cli.logger.Sync() }()
	return cli.rootCmd.Execute()
}

func (cli *CLI) setupViperConfig() {
	if configFile := os.Getenv("NANODM_CONFIG"); configFile != "" {
		cli.viperInst.SetConfigFile(configFile)
	} else {
		cli.viperInst.SetConfigName("nanodm")
		cli.viperInst.SetConfigType("yaml")
		cli.viperInst.AddConfigPath(".")
		cli.viperInst.AddConfigPath("$HOME/.nanodm")
	}

	cli.viperInst.SetEnvPrefix("NANODM")
	cli.viperInst.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cli.viperInst.AutomaticEnv()

	// A missing config file is fine
	_ = cli.viperInst.ReadInConfig()
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "nanodm",
		Short: "Inspect and maintain nanodm document stores",
		Long: `nanodm works directly on the records of a JSON file store.

Configuration sources, highest precedence first:
  1. Command line flags
  2. Environment variables (NANODM_STORE, NANODM_OUTPUT, NANODM_LOG_LEVEL)
  3. nanodm.yaml in the current directory or ~/.nanodm (or NANODM_CONFIG)

Examples:
  nanodm --store library.json collections
  nanodm --store library.json find books --query '{"year": {"$gt": 1960}}' --sort year
  nanodm --store library.json index authors name --unique`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cli.viperInst.GetString("log-level"), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cli.logger = logger
			return nil
		},
	}

	flags := cli.rootCmd.PersistentFlags()
	flags.StringP("store", "s", "", "path to the store file")
	flags.StringP("output", "o", "json", "output format (json|yaml)")
	flags.String("log-level", "warn", "log level (debug|info|warn|error)")

	for _, name := range []string{"store", "output", "log-level"} {
		_ = cli.viperInst.BindPFlag(name, flags.Lookup(name))
	}
}

func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.findCommand(),
		cli.countCommand(),
		cli.clearCommand(),
		cli.dropCommand(),
		cli.indexCommand(),
		cli.indexesCommand(),
		cli.collectionsCommand(),
		cli.migrateCommand(),
		cli.exportCommand(),
		cli.importCommand(),
	)
}

// openStore opens the configured store file
func (cli *CLI) openStore() (*store.Store, error) {
	path := cli.viperInst.GetString("store")
	if path == "" {
		return nil, fmt.Errorf("store path is required (--store or NANODM_STORE)")
	}
	s, err := store.Open(path, store.WithLogger(cli.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// withStore opens the store for the duration of fn
func (cli *CLI) withStore(fn func(*store.Store) error) error {
	s, err := cli.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			cli.logger.Warn("failed to close store", zap.Error(cerr))
		}
	}()
	return fn(s)
}
