package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sujalbistaa/slidont/internal/config"
	apperr "github.com/sujalbistaa/slidont/internal/errors"
	"github.com/sujalbistaa/slidont/internal/models"
	"github.com/sujalbistaa/slidont/internal/moderation"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(svc *moderation.Service, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "slidontctl",
		Usage:   "Administer slidont events, queues and counters",
		Version: Version,
		Writer:  os.Stdout,
		Commands: []*cli.Command{
			seedCmd(svc),
			eventCmd(svc, cfg),
			listCmd(svc, cfg),
			doneCmd(svc, cfg),
			reconcileCmd(svc),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// eventView adds the presenter secret back for operators who ask for it.
type eventView struct {
	*models.Event
	PresenterSecret string `json:"presenterSecret,omitempty"`
}

func newEventView(e *models.Event, showSecret bool) eventView {
	v := eventView{Event: e}
	if showSecret {
		v.PresenterSecret = e.PresenterSecret
	}
	return v
}

func showSecretFlag() cli.Flag {
	return &cli.BoolFlag{Name: "show-secret", Usage: "Include the presenter secret in the output"}
}

func seedCmd(svc *moderation.Service) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create the configured default event if it does not exist",
		Flags: []cli.Flag{showSecretFlag()},
		Action: func(c *cli.Context) error {
			event, err := svc.Events.EnsureSeed(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, newEventView(event, c.Bool("show-secret")))
		},
	}
}

func eventCmd(svc *moderation.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "event",
		Usage:     "Show an event (defaults to the configured seed event)",
		ArgsUsage: "[slug]",
		Flags:     []cli.Flag{showSecretFlag()},
		Action: func(c *cli.Context) error {
			slug := slugArg(c, cfg)
			event, err := svc.Events.GetBySlug(c.Context, slug)
			if err != nil {
				return outputError(err)
			}
			if event == nil {
				return outputError(apperr.NewNotFound("event", slug))
			}
			return outputJSON(c.App.Writer, newEventView(event, c.Bool("show-secret")))
		},
	}
}

func listCmd(svc *moderation.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List questions or buzz of an event",
		ArgsUsage: "[slug]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "question", Usage: "Item kind: question|buzz"},
			&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Value: "new", Usage: "Public order: new|top"},
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include flagged and done items (presenter view)"},
		},
		Action: func(c *cli.Context) error {
			slug := slugArg(c, cfg)
			sortBy, err := moderation.ParseSort(c.String("sort"))
			if err != nil {
				return outputError(err)
			}
			switch c.String("kind") {
			case moderation.QuestionKind.Name:
				return listItems(c, svc.Questions, slug, sortBy)
			case moderation.BuzzKind.Name:
				return listItems(c, svc.Buzz, slug, sortBy)
			default:
				return outputError(apperr.NewInvalidRequest("kind must be one of: question, buzz"))
			}
		},
	}
}

func listItems[T any, PT moderation.Record[T]](c *cli.Context, col *moderation.Collection[T, PT], slug string, sortBy moderation.SortBy) error {
	if c.Bool("all") {
		items, err := col.ListAll(c.Context, slug)
		if err != nil {
			return outputError(err)
		}
		return outputJSON(c.App.Writer, map[string]any{"items": items, "pending": col.Pending(items)})
	}
	items, err := col.List(c.Context, slug, sortBy)
	if err != nil {
		return outputError(err)
	}
	return outputJSON(c.App.Writer, items)
}

func doneCmd(svc *moderation.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "done",
		Usage:     "Mark a question as answered",
		ArgsUsage: "<question-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "event", Aliases: []string{"e"}, Usage: "Event slug (defaults to the seed event)"},
			&cli.StringFlag{Name: "secret", EnvVars: []string{"PRESENTER_SECRET"}, Usage: "Presenter secret"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(apperr.NewInvalidRequest("exactly one question id is required"))
			}
			slug := c.String("event")
			if slug == "" {
				slug = cfg.SeedSlug
			}
			res, err := svc.MarkDone(c.Context, c.Args().First(), slug, c.String("secret"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, res)
		},
	}
}

func reconcileCmd(svc *moderation.Service) *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Recount vote and flag ledgers and repair drifted counters",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "all", Usage: "Item kind: question|buzz|all"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Report drift without repairing"},
		},
		Action: func(c *cli.Context) error {
			kind, dryRun := c.String("kind"), c.Bool("dry-run")
			var reports []*moderation.ReconcileReport
			if kind == "all" || kind == moderation.QuestionKind.Name {
				r, err := svc.Questions.Reconcile(c.Context, dryRun)
				if err != nil {
					return outputError(err)
				}
				reports = append(reports, r)
			}
			if kind == "all" || kind == moderation.BuzzKind.Name {
				r, err := svc.Buzz.Reconcile(c.Context, dryRun)
				if err != nil {
					return outputError(err)
				}
				reports = append(reports, r)
			}
			if len(reports) == 0 {
				return outputError(apperr.NewInvalidRequest("kind must be one of: question, buzz, all"))
			}
			return outputJSON(c.App.Writer, reports)
		},
	}
}

func slugArg(c *cli.Context, cfg *config.Config) string {
	if c.NArg() > 0 {
		return c.Args().First()
	}
	return cfg.SeedSlug
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	appErr := apperr.From(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
}
