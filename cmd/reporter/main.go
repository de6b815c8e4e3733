// Command reporter lists, reports and resolves civic issues against an issue-map server
// from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"issue-map/internal/apiclient"
	"issue-map/internal/config"
	"issue-map/internal/console"
	"issue-map/internal/logging"
	"issue-map/internal/model"
	"issue-map/internal/renderer"
	"issue-map/internal/workflow"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const usage = `usage: reporter <command> [flags]

commands:
  list                 show every reported issue
  report [flags]       report a new issue
  resolve <id>         mark an issue as resolved
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], cfg.Reporter, logger, os.Stdout, os.Stderr))
}

type app struct {
	client   *apiclient.Client
	board    *console.Map
	alerts   *console.Alerts
	renderer *renderer.Renderer
	logger   *logrus.Logger
	stdout   io.Writer
}

func run(ctx context.Context, args []string, cfg config.ReporterConfig, logger *logrus.Logger, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, rest := args[0], args[1:]

	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.BaseURL, "server", cfg.BaseURL, "issue-map server base URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "bearer token sent with resolve requests")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "request timeout")

	var (
		opts reportOptions
		gps  string
	)
	if cmd == "report" {
		fs.StringVar(&opts.category, "category", "", "issue type: garbage, broken_footpath, blocked_footpath, illegal_flex or pothole")
		fs.StringVar(&opts.title, "title", "", "short title")
		fs.StringVar(&opts.description, "description", "", "longer description")
		fs.StringVar(&opts.image, "image", "", "path of the photo to upload")
		fs.BoolVar(&opts.useGPS, "gps", false, "use the device position")
		fs.StringVar(&gps, "position", cfg.GPS, "device position as \"lat,lng\" when --gps is set")
		fs.Float64Var(&opts.lat, "lat", 0, "latitude of the map pick")
		fs.Float64Var(&opts.lng, "lng", 0, "longitude of the map pick")
	}
	if err := fs.Parse(rest); err != nil {
		return 2
	}
	opts.pick = fs.Changed("lat") || fs.Changed("lng")

	a, err := newApp(cfg, logger, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	switch cmd {
	case "list":
		err = a.list(ctx)
	case "report":
		if gps != "" {
			pos, perr := config.ParseCoordinate(gps)
			if perr != nil {
				fmt.Fprintf(stderr, "invalid --position: %v\n", perr)
				return 2
			}
			opts.device = &pos
		}
		err = a.report(ctx, opts)
	case "resolve":
		if fs.NArg() != 1 {
			fmt.Fprint(stderr, usage)
			return 2
		}
		id, perr := strconv.ParseInt(fs.Arg(0), 10, 64)
		if perr != nil || id <= 0 {
			fmt.Fprintf(stderr, "invalid issue id %q\n", fs.Arg(0))
			return 2
		}
		err = a.resolve(ctx, id)
	default:
		fmt.Fprint(stderr, usage)
		return 2
	}
	if err != nil {
		logger.WithError(err).Debug("command failed")
		return 1
	}
	return 0
}

func newApp(cfg config.ReporterConfig, logger *logrus.Logger, stdout, stderr io.Writer) (*app, error) {
	client, err := apiclient.New(cfg.BaseURL, apiclient.WithTimeout(cfg.Timeout), apiclient.WithToken(cfg.Token))
	if err != nil {
		return nil, err
	}
	a := &app{
		client: client,
		board:  console.NewMap(),
		alerts: console.NewAlerts(stderr),
		logger: logger,
		stdout: stdout,
	}
	a.renderer = renderer.New(client, client, a.board, a.alerts, logger)
	return a, nil
}

func (a *app) list(ctx context.Context) error {
	if err := a.renderer.Refresh(ctx); err != nil {
		return err
	}
	return a.board.Render(a.stdout)
}

func (a *app) resolve(ctx context.Context, id int64) error {
	if err := a.renderer.Resolve(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "issue %d resolved\n", id)
	return a.board.Render(a.stdout)
}

type reportOptions struct {
	category    string
	title       string
	description string
	image       string
	useGPS      bool
	device      *model.Coordinate
	pick        bool
	lat, lng    float64
}

// report drives the report form the way a user would: open it, choose a location, fill
// in the fields and submit.
func (a *app) report(ctx context.Context, opts reportOptions) error {
	// A failed initial load leaves an empty map; reporting still works.
	_ = a.renderer.Refresh(ctx)

	ctrl := workflow.New(workflow.Deps{
		Map:       a.board,
		Locator:   console.StaticLocator{Position: opts.device},
		Modal:     console.NewForm(io.Discard),
		Indicator: console.NewSpinner(a.stdout),
		Notifier:  a.alerts,
		Creator:   a.client,
		Refresher: a.renderer,
		Logger:    a.logger,
	})
	ctrl.Open()
	defer ctrl.Close()

	located := false
	if opts.useGPS {
		if _, err := ctrl.RequestGPS(ctx); err == nil {
			located = true
		}
	}
	if !located && opts.pick {
		if err := ctrl.PickOnMap(); err != nil {
			return err
		}
		a.board.Click(model.Coordinate{Latitude: opts.lat, Longitude: opts.lng})
	}

	_ = ctrl.SetCategory(opts.category)
	_ = ctrl.SetTitle(opts.title)
	_ = ctrl.SetDescription(opts.description)
	if opts.image != "" {
		data, err := os.ReadFile(opts.image)
		if err != nil {
			a.alerts.Notify(fmt.Errorf("read image: %w", err))
			return err
		}
		_ = ctrl.AttachImage(model.Image{Filename: filepath.Base(opts.image), Data: data})
	}

	if err := ctrl.Submit(ctx); err != nil {
		if errors.Is(err, workflow.ErrSubmitInProgress) {
			a.alerts.Notify(err)
		}
		return err
	}
	fmt.Fprintln(a.stdout, "Issue reported successfully")
	return a.board.Render(a.stdout)
}
