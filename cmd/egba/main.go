package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/user-none/egba/gba"
	"github.com/user-none/egba/internal/logger"
	"github.com/user-none/egba/storage"
)

// App carries what every command needs after global flags are applied.
type App struct {
	Config *storage.Config
	Logger *slog.Logger
	Out    io.Writer
}

type CLI struct {
	DataDir   string `help:"Override the data directory holding config.yaml, states and saves." type:"path" placeholder:"DIR"`
	LogLevel  string `help:"Log level: debug, info, warn or error. Overrides config.yaml." placeholder:"LEVEL"`
	LogFormat string `help:"Log format: text or json. Overrides config.yaml." placeholder:"FORMAT"`

	Run    RunCmd    `cmd:"" help:"Run a ROM for a number of frames, optionally paced, saving states and a screenshot"`
	Verify VerifyCmd `cmd:"" help:"Check determinism and save state round trips across concurrent sessions"`
	Info   InfoCmd   `cmd:"" help:"Print the cartridge header of a ROM"`
	States StatesCmd `cmd:"" help:"List or delete the save states of a ROM"`
	Mkrom  MkromCmd  `cmd:"" help:"Write the built-in test BIOS and test ROMs"`
	Config ConfigCmd `cmd:"" help:"Show, create or repair config.yaml"`
}

func newApp(cli *CLI, out io.Writer) (*App, error) {
	storage.Init(gba.Factory{}.SystemInfo().DataDirName)
	if cli.DataDir != "" {
		storage.SetBaseDir(cli.DataDir)
	}
	if err := storage.EnsureDirectories(); err != nil {
		return nil, err
	}

	config, err := storage.LoadConfig()
	if err != nil {
		return nil, err
	}
	problems := storage.ValidateConfig(config)
	storage.FixConfig(config)

	level, format := config.Log.Level, config.Log.Format
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		format = cli.LogFormat
	}
	l, err := logger.Setup(level, format)
	if err != nil {
		return nil, err
	}
	for _, p := range problems {
		l.Warn("invalid config value replaced with default", "problem", p)
	}

	return &App{Config: config, Logger: l, Out: out}, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("egba"),
		kong.Description("egba - a deterministic Game Boy Advance core driven one frame at a time"),
		kong.UsageOnError(),
	)

	app, err := newApp(&cli, os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := ctx.Run(app); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
