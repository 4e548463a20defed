package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/algoroom/algoroom/internal/setup"
	"github.com/algoroom/algoroom/internal/worker/validator"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cmd := &cli.Command{
		Name:  "worker",
		Usage: "Start background workers",
		Commands: []*cli.Command{
			{
				Name:  "validator",
				Usage: "Start the username validator",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Run a single validation sweep and exit",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runValidator(ctx, c.Bool("once"))
				},
			},
		},
	}

	return cmd.Run(context.Background(), os.Args)
}

func runValidator(ctx context.Context, once bool) error {
	app, err := setup.InitializeApp()
	if err != nil {
		return err
	}
	defer app.Cleanup()

	worker := validator.New(app.DB.Users(), app.Clients, app.Executor, app.Config.Validator, app.Logger)

	if once {
		worker.RunOnce(ctx)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker.Start(ctx)

	return nil
}
