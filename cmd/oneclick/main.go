// Command oneclick drives the one-click widget against a widget backend from
// the terminal: it mounts the button on a headless page, clicks it and prints
// what a browser would have done. With -pick-start and -pick-end it also runs
// the location picker and asks the backend for fare quotes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/wolfman30/rideclick/internal/cookies"
	"github.com/wolfman30/rideclick/internal/http/handlers"
	"github.com/wolfman30/rideclick/internal/picker"
	"github.com/wolfman30/rideclick/internal/session"
	"github.com/wolfman30/rideclick/internal/widget"
	"github.com/wolfman30/rideclick/pkg/logging"
)

type options struct {
	apiKey        string
	baseURL       string
	origin        string
	variant       string
	importBrowser bool
	pickStart     string
	pickEnd       string
	near          string
	seats         int
	mapsKey       string
	timeout       time.Duration
	logLevel      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "oneclick:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("oneclick", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.apiKey, "api-key", os.Getenv("RIDECLICK_API_KEY"), "API key registered for -origin")
	fs.StringVar(&opts.baseURL, "base-url", widget.DefaultBaseURL, "widget backend root")
	fs.StringVar(&opts.origin, "origin", "", "origin of the page hosting the button")
	fs.StringVar(&opts.variant, "variant", widget.VariantCookieFrame.Name, "widget variant: cookie-frame, memory-redirect or map-picker")
	fs.BoolVar(&opts.importBrowser, "import-browser-cookie", false, "reuse the backend nonce cookie from a local browser profile")
	fs.StringVar(&opts.pickStart, "pick-start", "", "pickup search text")
	fs.StringVar(&opts.pickEnd, "pick-end", "", "dropoff search text")
	fs.StringVar(&opts.near, "near", "", "rider position as lat,lng")
	fs.IntVar(&opts.seats, "seats", 0, "seat count for fare quotes")
	fs.StringVar(&opts.mapsKey, "maps-key", os.Getenv("GOOGLE_MAPS_API_KEY"), "Google Maps API key for place search")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if strings.TrimSpace(opts.apiKey) == "" {
		return opts, errors.New("-api-key is required")
	}
	if opts.origin == "" {
		return opts, errors.New("-origin is required")
	}
	if (opts.pickStart == "") != (opts.pickEnd == "") {
		return opts, errors.New("-pick-start and -pick-end go together")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	variant, ok := widget.VariantByName(opts.variant)
	if !ok {
		return fmt.Errorf("unknown variant %q", opts.variant)
	}
	logger := logging.NewWithWriter(opts.logLevel, stderr)

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	// One jar for the page and the backend so the nonce cookie set by
	// /receive-oauth2 rides along on later calls.
	jar, err := cookies.NewJarStore(opts.baseURL)
	if err != nil {
		return err
	}
	if opts.importBrowser {
		found, warnings, err := cookies.ImportFromBrowser(ctx, jar, handlers.DefaultNonceCookie, cookies.BrowserImport{URL: opts.baseURL})
		for _, w := range warnings {
			logger.Warn("browser cookie import", "warning", w)
		}
		if err != nil {
			return err
		}
		logger.Info("browser cookie import finished", "found", found)
	}

	client := session.New(opts.baseURL, session.WithJar(jar.Jar()))
	page := widget.NewHeadlessPage(opts.origin, jar, stdout)
	page.AddElement(widget.DefaultElementID, map[string]string{widget.DefaultAPIKeyAttribute: opts.apiKey})

	w, err := widget.New(ctx, page, widget.Config{BaseURL: opts.baseURL, Variant: variant}, widget.Deps{Backend: client, Logger: logger})
	if err != nil {
		return err
	}
	if state, err := w.WaitReady(ctx); err != nil {
		return fmt.Errorf("init (%s): %w", state, err)
	}

	action, err := w.Click(ctx)
	if err != nil {
		return fmt.Errorf("click: %w", err)
	}
	printAction(stdout, action)

	if opts.pickStart == "" {
		return nil
	}
	return pickAndQuote(ctx, opts, client, stdout, logger)
}

func printAction(out io.Writer, a widget.Action) {
	switch a.Kind {
	case widget.ActionNavigate, widget.ActionFrame, widget.ActionOverlay:
		fmt.Fprintf(out, "%s %s\n", a.Kind, a.URL)
	case widget.ActionAlert:
		fmt.Fprintf(out, "alert %s\n", a.Message)
	default:
		fmt.Fprintf(out, "%s\n", a.Kind)
	}
	if len(a.Profile) > 0 {
		fmt.Fprintf(out, "profile %s\n", a.Profile)
	}
}

func pickAndQuote(ctx context.Context, opts options, client *session.Client, out io.Writer, logger *logging.Logger) error {
	places, err := picker.NewGooglePlaces(opts.mapsKey)
	if err != nil {
		return err
	}

	p := picker.New(picker.NewTextView(out), logger)
	var geo picker.Geolocator
	if opts.near != "" {
		pos, err := parsePoint(opts.near)
		if err != nil {
			return err
		}
		geo = picker.FixedPosition(pos)
	}
	p.Start(ctx, geo)

	for i, query := range []string{opts.pickStart, opts.pickEnd} {
		if err := p.Search(ctx, places, i, query); err != nil {
			return err
		}
	}

	req, ok := p.EstimateRequest(opts.seats)
	if !ok {
		return errors.New("no place found for both pickup and dropoff")
	}
	quotes, err := client.EstimatePrice(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(quotes)
}

func parsePoint(s string) (picker.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return picker.Point{}, fmt.Errorf("position %q: want lat,lng", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return picker.Point{}, fmt.Errorf("position %q: %w", s, err)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return picker.Point{}, fmt.Errorf("position %q: %w", s, err)
	}
	if la < -90 || la > 90 || ln < -180 || ln > 180 {
		return picker.Point{}, fmt.Errorf("position %q out of range", s)
	}
	return picker.Point{Lat: la, Lng: ln}, nil
}
