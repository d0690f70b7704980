/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"bennypowers.dev/devgraph/devserver"
	"bennypowers.dev/devgraph/devtransform"
	"bennypowers.dev/devgraph/internal/logging"
	"bennypowers.dev/devgraph/internal/platform"
	"bennypowers.dev/devgraph/optimizer"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a development server with live module reload",
	Long: `Start a development server that resolves a project's ES module graph
on demand, transforms TypeScript/JSX/CSS sources for the browser, pre-bundles
bare-specifier dependencies, and pushes hot-module-reload updates over a
websocket as files change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		root := cfg.ProjectDir
		if root == "" {
			root, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("unable to get current working directory: %w", err)
			}
		}

		port := viper.GetInt("serve.port")
		targetStr := viper.GetString("serve.target")

		var target devtransform.Target
		if targetStr != "" {
			if !devtransform.IsValidTarget(targetStr) {
				return fmt.Errorf("invalid target '%s': must be one of es2015, es2016, es2017, es2018, es2019, es2020, es2021, es2022, es2023, or esnext", targetStr)
			}
			target = devtransform.Target(targetStr)
		} else {
			target = devtransform.ES2022
		}

		strategy := optimizer.StrategyLazy
		if cfg.Optimizer.Strategy != "" {
			strategy = optimizer.Strategy(cfg.Optimizer.Strategy)
		}

		debounceWindow := cfg.Watch.DebounceWindow
		if debounceWindow == 0 {
			debounceWindow = 50 * time.Millisecond
		}

		// Create pterm-backed live logger
		log := logging.NewLiveLogger(cfg.Verbose)
		defer log.Stop()

		fs := platform.NewOSFileSystem()
		fw, err := platform.NewFSNotifyFileWatcher()
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		clock := platform.NewRealTimeProvider()

		serverCfg := devserver.Config{
			Root:              root,
			Addr:              fmt.Sprintf(":%d", port),
			Target:            target,
			DebounceWindow:    debounceWindow,
			ExcludeGlobs:      cfg.Watch.Exclude,
			OptimizerStrategy: strategy,
		}

		server, err := devserver.New(serverCfg, cfg.Environments, fs, fw, clock, devserver.DefaultBundlerFor(), log, log)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		defer func() {
			if err := server.Shutdown(context.Background()); err != nil {
				log.Warning("Server shutdown: %v", err)
			}
		}()

		log.Start()
		log.Info("Server starting on http://localhost:%d", port)

		statusMsg := fmt.Sprintf("Running on %s %s Press %s for help, %s to quit",
			pterm.FgCyan.Sprintf("http://localhost:%d", port),
			pterm.FgGray.Sprint("|"),
			pterm.FgYellow.Sprint("h"),
			pterm.FgYellow.Sprint("q"),
		)
		log.SetStatus(statusMsg)

		go func() {
			if err := server.ListenAndServe(); err != nil {
				log.Error("server error: %v", err)
			}
		}()

		// Start keyboard input handler after a brief delay so pterm's live
		// area stabilizes before we enable raw mode.
		quitChan := make(chan struct{})
		go func() {
			time.Sleep(100 * time.Millisecond)
			handleKeyboardInput(log, port, quitChan)
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-quitChan:
		case <-sigChan:
		}

		log.SetStatus("Shutting down...")
		log.Info("Shutting down server...")
		return nil
	},
}

// openBrowser opens the given URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// showHelp displays the keyboard shortcuts help menu
func showHelp(log logging.LiveLogger) {
	log.Info(`Keyboard Shortcuts
	o - Open in browser
	c - Clear console
	h - Show this help
	q - Quit server
	Ctrl+C - Also quits server                      `)
}

// handleKeyboardInput reads keyboard input and handles commands using atomicgo/keyboard
func handleKeyboardInput(log logging.LiveLogger, port int, quitChan chan struct{}) {
	err := keyboard.Listen(func(key keys.Key) (stop bool, err error) {
		if key.Code == keys.CtrlC {
			close(quitChan)
			return true, nil
		}

		if key.Code != keys.RuneKey || len(key.Runes) == 0 {
			return false, nil
		}

		switch key.Runes[0] {
		case 'q', 'Q':
			log.Info("Quitting...")
			close(quitChan)
			return true, nil

		case 'o', 'O':
			url := fmt.Sprintf("http://localhost:%d", port)
			log.Info("Opening %s in browser...", url)
			if err := openBrowser(url); err != nil {
				log.Warning("Failed to open browser: %v", err)
			}

		case 'c', 'C':
			log.Clear()
			log.Info("Console cleared")

		case 'h', 'H', '?':
			showHelp(log)
		}

		return false, nil
	})

	if err != nil {
		log.Warning("Keyboard input disabled: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8000, "Port to serve on")
	serveCmd.Flags().String("target", "", "TypeScript/JavaScript transform target (es2015, es2016, es2017, es2018, es2019, es2020, es2021, es2022, es2023, esnext)")
	serveCmd.Flags().StringSlice("environments", nil, "Named module-graph environments to serve (comma-separated, default: client,ssr)")
	serveCmd.Flags().String("strategy", "", "Dependency optimizer strategy: pre-scan, scan, lazy, or eager (default: lazy)")
	serveCmd.Flags().StringSlice("watch-exclude", nil, "Glob patterns to ignore in file watcher (comma-separated, e.g., 'dist/**,node_modules/**')")

	if err := viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port")); err != nil {
		panic(fmt.Sprintf("failed to bind flag serve.port: %v", err))
	}
	if err := viper.BindPFlag("serve.target", serveCmd.Flags().Lookup("target")); err != nil {
		panic(fmt.Sprintf("failed to bind flag serve.target: %v", err))
	}
	if err := viper.BindPFlag("environments", serveCmd.Flags().Lookup("environments")); err != nil {
		panic(fmt.Sprintf("failed to bind flag environments: %v", err))
	}
	if err := viper.BindPFlag("optimizer.strategy", serveCmd.Flags().Lookup("strategy")); err != nil {
		panic(fmt.Sprintf("failed to bind flag optimizer.strategy: %v", err))
	}
	if err := viper.BindPFlag("watch.exclude", serveCmd.Flags().Lookup("watch-exclude")); err != nil {
		panic(fmt.Sprintf("failed to bind flag watch.exclude: %v", err))
	}
}
