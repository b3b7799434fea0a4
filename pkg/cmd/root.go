package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/notion-outreach/pkg/config"
	"github.com/telekom/notion-outreach/pkg/output"
	"github.com/telekom/notion-outreach/pkg/system"
)

// CredentialStore persists credentials for later runs.
type CredentialStore interface {
	Store(key, value string) error
	Delete(key string) error
}

type Config struct {
	Context      context.Context
	OutputWriter io.Writer
	InputReader  io.Reader
	// LoadConfig replaces config.Load.
	LoadConfig  func() (*config.Config, error)
	Credentials CredentialStore
	// Logger replaces the logger built from the loaded configuration.
	Logger *zap.SugaredLogger
}

type runtimeState struct {
	load         func() (*config.Config, error)
	cfg          *config.Config
	campaignPath string
	outputFormat string
	debug        bool
	writer       io.Writer
	reader       io.Reader
	credentials  CredentialStore
	log          *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		Context:      context.Background(),
		OutputWriter: os.Stdout,
		InputReader:  os.Stdin,
		LoadConfig:   config.Load,
		Credentials:  config.NewKeyringProvider(),
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		load:        cfg.LoadConfig,
		writer:      cfg.OutputWriter,
		reader:      cfg.InputReader,
		credentials: cfg.Credentials,
		log:         cfg.Logger,
	}

	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Send templated outreach emails to contacts in a Notion database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("OUTREACH_OUTPUT")
			}
			if _, err := output.ParseFormat(rt.outputFormat); err != nil {
				return err
			}
			if skipsConfig(cmd) {
				return nil
			}
			return rt.EnsureConfigLoaded()
		},
	}

	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&rt.campaignPath, "campaign", "", "Campaign YAML file overriding message and eligibility settings")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug logging")

	base := cfg.Context
	if base == nil {
		base = context.Background()
	}
	root.SetContext(context.WithValue(base, runtimeKey{}, rt))

	root.AddCommand(
		NewRunCommand(),
		NewDiagnoseCommand(),
		NewConfigCommand(),
		NewCredentialsCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

// skipsConfig reports whether cmd works without a loaded configuration.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "completion", "credentials", "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) OutputFormat() output.Format {
	f, err := output.ParseFormat(rt.outputFormat)
	if err != nil {
		return output.FormatTable
	}
	return f
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Reader() io.Reader {
	if rt.reader != nil {
		return rt.reader
	}
	return os.Stdin
}

// EnsureConfigLoaded loads the configuration, applies the campaign file and
// builds the logger. It is a no-op once a configuration is present.
func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	load := rt.load
	if load == nil {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return err
	}
	if rt.campaignPath != "" {
		campaign, err := config.LoadCampaign(rt.campaignPath)
		if err != nil {
			return err
		}
		if err := cfg.ApplyCampaign(campaign); err != nil {
			return err
		}
	}
	rt.cfg = cfg

	if rt.log == nil {
		logger, err := system.NewLogger(cfg.Debug || rt.debug, levelFor(cfg.LogLevel, rt.debug))
		if err != nil {
			return err
		}
		rt.log = logger.Sugar()
	}
	return nil
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log == nil {
		return zap.NewNop().Sugar()
	}
	return rt.log
}

func levelFor(level string, debug bool) string {
	if debug {
		return "debug"
	}
	return strings.ToLower(level)
}
