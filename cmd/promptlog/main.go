// Command promptlog renders prompt templates, sends instrumented chat calls,
// posts feedback and runs a local collector for development.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lgc202/promptlog/config"
	"github.com/lgc202/promptlog/llm"
)

func main() {
	if err := newRootCmd(newApp(os.Stdout, os.Stderr)).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand shares. newProvider is swapped in tests.
type app struct {
	out, errOut io.Writer

	configPath string
	debug      bool

	settings config.Settings
	level    *slog.LevelVar
	logger   *slog.Logger

	newProvider func(name string, s config.ProviderSettings, logger *slog.Logger) (llm.Provider, error)
}

func newApp(out, errOut io.Writer) *app {
	level := new(slog.LevelVar)
	return &app{
		out:         out,
		errOut:      errOut,
		level:       level,
		logger:      slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
		newProvider: buildProvider,
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "promptlog",
		Short:         "LLM 调用日志工具",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "配置文件路径（yaml/json/toml），为空时只读取 PROMPTLOG_* 环境变量")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "输出调试日志，并记录所有遥测失败")

	rootCmd.AddCommand(
		newVersionCmd(a),
		newRenderCmd(a),
		newChatCmd(a),
		newFeedbackCmd(a),
		newCollectCmd(a),
	)
	return rootCmd
}

// load reads settings once. Later edits to the config file only move the log
// level; commands keep the settings they started with.
func (a *app) load() error {
	cfg, err := config.LoadSettings(a.configPath, config.WithLogger[config.Settings](a.logger))
	if err != nil {
		return err
	}
	a.settings = cfg.Get()
	if a.debug {
		a.settings.Debug = true
	}
	a.level.Set(a.settings.LogLevel())

	cfg.OnChange(func(old, new config.Settings) {
		if !a.debug {
			a.level.Set(new.LogLevel())
		}
		a.logger.Info("settings reloaded", slog.String("path", cfg.Path()), slog.Bool("debug", new.Debug))
	})
	return nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
