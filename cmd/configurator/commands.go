package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/injector"
)

func newRootCmd() *cobra.Command {
	var inputFolder string

	rootCmd := &cobra.Command{
		Use:           "configurator",
		Short:         "Versioned MongoDB schema and data configurator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&inputFolder, "input", "i", "", "input folder (defaults to INPUT_FOLDER or /input)")

	initialize := func() (*injector.App, error) {
		return injector.InitializeApp(injector.InputFolder(inputFolder))
	}

	rootCmd.AddCommand(
		newServeCmd(initialize),
		newProcessCmd(initialize),
		newRenderCmd(initialize),
		newLockCmd(initialize),
	)
	return rootCmd
}

type initializer func() (*injector.App, error)

func newServeCmd(initialize initializer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the API, processing configurations first when AUTO_PROCESS is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := initialize()
			if err != nil {
				return err
			}
			defer func() { _ = app.Logger.Sync() }()
			logger := app.Logger.With(log.String("built_at", app.Config.BuiltAt))

			if app.Config.AutoProcess {
				logger.Info("Processing configurations at startup")
				event, err := app.Service.ProcessAll(cmd.Context())
				if err != nil {
					logger.Error("Startup processing failed", log.Error(err))
				} else {
					logger.Info("Startup processing complete", log.String("status", string(event.Status)))
				}
				if app.Config.ExitAfterProcessing {
					return err
				}
			}

			gin.SetMode(gin.ReleaseMode)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Server.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			if err := app.Server.Stop(context.Background()); err != nil {
				logger.Error("Error stopping server", log.Error(err))
			}
			return app.Server.Close()
		},
	}
}

func newProcessCmd(initialize initializer) *cobra.Command {
	return &cobra.Command{
		Use:   "process [configuration]",
		Short: "Process every configuration, or only the named one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initialize()
			if err != nil {
				return err
			}
			defer func() { _ = app.Logger.Sync() }()

			var event *events.Event
			if len(args) == 1 {
				event, err = app.Service.ProcessOne(cmd.Context(), args[0])
			} else {
				event, err = app.Service.ProcessAll(cmd.Context())
			}
			if printErr := printDocument(cmd.OutOrStdout(), event); printErr != nil {
				return printErr
			}
			return err
		},
	}
}

func newRenderCmd(initialize initializer) *cobra.Command {
	return &cobra.Command{
		Use:       "render json|bson <configuration> <version>",
		Short:     "Render the JSON or BSON schema of one configuration version",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"json", "bson"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initialize()
			if err != nil {
				return err
			}
			render := app.Service.JSONSchema
			switch args[0] {
			case "json":
			case "bson":
				render = app.Service.BSONSchema
			default:
				return fmt.Errorf("unknown schema dialect %q, expected json or bson", args[0])
			}
			rendered, err := render(args[1], args[2])
			if err != nil {
				return err
			}
			return printDocument(cmd.OutOrStdout(), rendered)
		},
	}
}

func newLockCmd(initialize initializer) *cobra.Command {
	var unlock bool

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock every type, dictionary, enumeration set and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := initialize()
			if err != nil {
				return err
			}
			if err := app.Config.AssertLocal(); err != nil {
				return err
			}
			event, err := app.Service.LockAll(!unlock)
			if printErr := printDocument(cmd.OutOrStdout(), event); printErr != nil {
				return printErr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&unlock, "unlock", false, "unlock instead of lock")
	return cmd
}

func printDocument(w io.Writer, v any) error {
	if v == nil {
		return nil
	}
	out, err := document.ToJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
