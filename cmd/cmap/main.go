package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/vanderheijden86/conceptmap/pkg/config"
	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/export"
	"github.com/vanderheijden86/conceptmap/pkg/generate"
	"github.com/vanderheijden86/conceptmap/pkg/hooks"
	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
	"github.com/vanderheijden86/conceptmap/pkg/model"
	"github.com/vanderheijden86/conceptmap/pkg/store"
	"github.com/vanderheijden86/conceptmap/pkg/ui"
	"github.com/vanderheijden86/conceptmap/pkg/version"
	"github.com/vanderheijden86/conceptmap/pkg/watcher"
)

// exportParallelism bounds concurrent output writers.
const exportParallelism = 4

type options struct {
	graphPath   string
	text        string
	generate    bool
	mapID       string
	storePath   string
	storeDriver string
	noStore     bool
	noHooks     bool
	configPath  string
	direction   string
	expandAll   bool
	toggles     []string
	outputs     []string
	format      string
	copy        bool
	tui         bool
	watch       bool
	showMetrics bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	var toggles, outputs string

	fs := flag.NewFlagSet("cmap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.graphPath, "graph", "", "Concept graph file (.json, .yaml) or directory to load")
	fs.StringVar(&o.text, "text", "", "Input text for -generate; @file reads a file, - reads stdin")
	fs.BoolVar(&o.generate, "generate", false, "Generate the concept graph from -text with the configured LLM")
	fs.StringVar(&o.mapID, "map-id", "", "Map ID for saved state (default: derived from the graph)")
	fs.StringVar(&o.storePath, "store", "", "State store location (default: from config)")
	fs.StringVar(&o.storeDriver, "store-driver", "", "State store driver: sqlite or json (default: from config)")
	fs.BoolVar(&o.noStore, "no-store", false, "Do not load or save mind map state")
	fs.BoolVar(&o.noHooks, "no-hooks", false, "Skip .cmap/hooks.yaml export hooks")
	fs.StringVar(&o.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/cmap/config.yaml)")
	fs.StringVar(&o.direction, "direction", "", "Layout direction: LR or TB")
	fs.BoolVar(&o.expandAll, "expand-all", false, "Expand every node before output")
	fs.StringVar(&toggles, "toggle", "", "Comma-separated node IDs to toggle, in order")
	fs.StringVar(&outputs, "o", "", "Comma-separated output files; format follows the extension")
	fs.StringVar(&o.format, "format", "", "Format for stdout and -copy: json, dot, mermaid or svg")
	fs.BoolVar(&o.copy, "copy", false, "Copy the map to the clipboard (mermaid unless -format says otherwise)")
	fs.BoolVar(&o.tui, "tui", false, "Open the interactive viewer")
	fs.BoolVar(&o.watch, "watch", false, "Reload when the -graph file changes")
	fs.BoolVar(&o.showMetrics, "metrics", false, "Print pipeline timings to stderr on exit")
	fs.BoolVar(&o.showVersion, "version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	o.toggles = splitList(toggles)
	o.outputs = splitList(outputs)

	if o.generate && strings.TrimSpace(o.text) == "" {
		return options{}, errors.New("-generate needs -text")
	}
	if o.generate && o.graphPath != "" {
		return options{}, errors.New("-graph and -generate are mutually exclusive")
	}
	if o.watch && o.graphPath == "" {
		return options{}, errors.New("-watch needs -graph")
	}
	if o.direction != "" {
		if _, err := mindmap.ParseDirection(o.direction); err != nil {
			return options{}, err
		}
	}
	if o.format != "" {
		f, err := export.ParseFormat(o.format)
		if err != nil {
			return options{}, err
		}
		if f == export.FormatPNG {
			return options{}, errors.New("-format png is only available through -o")
		}
	}
	return o, nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}
	if opts.showMetrics {
		metrics.SetEnabled(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, opts, os.Stdin, os.Stdout)
	stop()

	if opts.showMetrics {
		printMetrics(os.Stderr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) config.Config {
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Printf("warning: failed to load config: %v (using defaults)", err)
		return config.DefaultConfig()
	}
	return cfg
}

// readText resolves -text: "@path" reads a file and "-" reads stdin.
func readText(text string, stdin io.Reader) (string, error) {
	switch {
	case text == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case strings.HasPrefix(text, "@"):
		data, err := os.ReadFile(text[1:])
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(data), nil
	default:
		return text, nil
	}
}

// newGenerator picks the graph source for opts. It returns nil when the graph
// must come from the store instead.
func newGenerator(cfg config.Config, opts options) (generate.Generator, error) {
	switch {
	case opts.generate:
		return generate.NewOpenAIGenerator(generate.OpenAIOptions{
			APIKeyEnv:   cfg.LLM.APIKeyEnv,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
		})
	case opts.graphPath != "":
		return generate.FileGenerator{Path: opts.graphPath}, nil
	default:
		return nil, nil
	}
}

func newEngine(cfg config.Config, direction string) *mindmap.Engine {
	lc := cfg.LayoutConfig()
	if dir, err := mindmap.ParseDirection(direction); err == nil && direction != "" {
		lc.Direction = dir
	}
	return mindmap.NewEngine(lc)
}

func openStore(cfg config.Config, opts options) store.Store {
	if opts.noStore {
		return nil
	}
	driver := cfg.Store.Driver
	if opts.storeDriver != "" {
		driver = opts.storeDriver
		cfg.Store.Driver = driver
	}
	path := opts.storePath
	if path == "" {
		path = cfg.StorePath()
	}
	st, err := store.Open(driver, path)
	if err != nil {
		log.Printf("warning: state store unavailable: %v", err)
		return nil
	}
	return st
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout *os.File) error {
	cfg := loadConfig(opts.configPath)

	text, err := readText(opts.text, stdin)
	if err != nil {
		return err
	}
	gen, err := newGenerator(cfg, opts)
	if err != nil {
		return err
	}

	st := openStore(cfg, opts)
	if st != nil {
		defer st.Close()
	}

	ctrl := mindmap.NewController(newEngine(cfg, opts.direction))
	if err := populate(ctx, ctrl, gen, text, st, opts.mapID); err != nil {
		return err
	}

	mapID := opts.mapID
	if mapID == "" && ctrl.Phase() == mindmap.PhaseReady {
		mapID = store.MapID(ctrl.Graph())
	}
	opts.mapID = mapID
	var binding *store.Binding
	if st != nil && ctrl.Phase() == mindmap.PhaseReady {
		if _, err := store.RestoreInto(ctx, ctrl, st, mapID); err != nil {
			log.Printf("warning: ignoring saved state for %s: %v", mapID, err)
		}
		if err := st.SaveGraph(ctx, mapID, ctrl.Graph()); err != nil {
			log.Printf("warning: failed to save graph %s: %v", mapID, err)
		}
		binding = store.Bind(ctx, ctrl, st, mapID)
	}
	follow := func() {
		if binding == nil {
			return
		}
		id, err := binding.Follow()
		if err != nil {
			log.Printf("warning: %v", err)
		}
		if id != "" {
			opts.mapID = id
		}
	}

	if opts.expandAll {
		ctrl.ExpandAll()
	}
	for _, id := range opts.toggles {
		if !ctrl.Toggle(id) {
			log.Printf("warning: cannot toggle unknown node %q", id)
		}
	}

	useTUI := opts.tui
	if !useTUI && len(opts.outputs) == 0 && !opts.copy && !opts.watch {
		useTUI = isTerminal(stdout) && isTerminal(os.Stdin)
	}

	if useTUI {
		if !isTerminal(stdout) {
			return errors.New("-tui needs a terminal")
		}
		return runTUI(ctx, ctrl, gen, text, opts, follow)
	}

	if ctrl.Phase() == mindmap.PhaseError {
		return ctrl.Err()
	}
	if err := writeOutputs(ctx, ctrl.View(), opts, cfg, stdout); err != nil {
		return err
	}
	if opts.watch {
		return watchAndExport(ctx, ctrl, &opts, cfg, stdout, follow)
	}
	return nil
}

// populate fills ctrl from gen, or from the store when there is no generator.
func populate(ctx context.Context, ctrl *mindmap.Controller, gen generate.Generator, text string, st store.Store, mapID string) error {
	if gen != nil {
		ticket := ctrl.BeginGeneration()
		g, err := gen.Generate(ctx, text)
		ctrl.CompleteGeneration(ticket, g, err)
		return nil
	}
	if st == nil || mapID == "" {
		return errors.New("nothing to show: pass -graph, -text with -generate, or -map-id of a saved map")
	}
	g, err := st.LoadGraph(ctx, mapID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("no saved graph for map %q", mapID)
	}
	ctrl.CompleteGeneration(ctrl.BeginGeneration(), *g, nil)
	return nil
}

// writeOutputs writes every -o file, fills the clipboard for -copy, and
// prints to stdout when neither was requested.
func writeOutputs(ctx context.Context, v mindmap.View, opts options, cfg config.Config, stdout io.Writer) error {
	if len(opts.outputs) > 0 {
		if err := exportWithHooks(ctx, v, opts, cfg.Export.Format); err != nil {
			return err
		}
	}
	if opts.copy {
		data, err := export.ExportView(v, clipboardFormat(opts.format))
		if err != nil {
			return err
		}
		if err := clipboard.WriteAll(string(data)); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
	}
	if len(opts.outputs) == 0 && !opts.copy {
		format := export.FormatJSON
		if opts.format != "" {
			format, _ = export.ParseFormat(opts.format)
		}
		data, err := export.ExportView(v, format)
		if err != nil {
			return err
		}
		if _, err := stdout.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func clipboardFormat(flagFormat string) export.Format {
	if f, err := export.ParseFormat(flagFormat); err == nil && f != export.FormatPNG {
		return f
	}
	return export.FormatMermaid
}

// outputFormat infers the format of path, falling back to the configured
// default when the path has no extension.
func outputFormat(path, fallback string) (export.Format, error) {
	if f, err := export.FormatForPath(path); err == nil {
		return f, nil
	}
	return export.ParseFormat(fallback)
}

// exportAll writes v to every path concurrently.
func exportAll(ctx context.Context, v mindmap.View, paths []string, fallback string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(exportParallelism)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			format, err := outputFormat(path, fallback)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			start := time.Now()
			if err := export.Save(v, path, format); err != nil {
				return fmt.Errorf("export %s: %w", path, err)
			}
			debug.LogTiming("export "+path, time.Since(start))
			return nil
		})
	}
	return g.Wait()
}

// exportWithHooks wraps exportAll in the project's pre- and post-export
// hooks. Post-export failures are reported but do not fail the run.
func exportWithHooks(ctx context.Context, v mindmap.View, opts options, fallback string) error {
	ec := hooks.ExportContext{
		MapID:     opts.mapID,
		Title:     v.Title,
		Paths:     opts.outputs,
		NodeCount: len(v.Nodes),
		Timestamp: time.Now(),
	}
	for _, p := range opts.outputs {
		f, err := outputFormat(p, fallback)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		ec.Formats = append(ec.Formats, string(f))
	}

	ex, err := hooks.RunHooks(".", ec, opts.noHooks)
	if err != nil {
		return fmt.Errorf("load hooks: %w", err)
	}
	if ex != nil {
		if err := ex.RunPreExport(ctx); err != nil {
			return err
		}
	}
	if err := exportAll(ctx, v, opts.outputs, fallback); err != nil {
		return err
	}
	if ex != nil {
		if err := ex.RunPostExport(ctx); err != nil {
			log.Printf("warning: %v", err)
		}
		if s := ex.Summary(); s != "" {
			log.Print(s)
		}
	}
	return nil
}

func startWatcher(opts options, initial model.ConceptGraph) *watcher.GraphWatcher {
	if !opts.watch {
		return nil
	}
	gw, err := watcher.WatchGraph(opts.graphPath, initial)
	if err != nil {
		log.Printf("warning: cannot watch %s: %v", opts.graphPath, err)
		return nil
	}
	return gw
}

func runTUI(ctx context.Context, ctrl *mindmap.Controller, gen generate.Generator, text string, opts options, replaced func()) error {
	gw := startWatcher(opts, ctrl.Graph())
	if gw != nil {
		defer gw.Stop()
	}
	err := ui.Run(ctx, ctrl, ui.Options{Generator: gen, Text: text, Watcher: gw, GraphReplaced: replaced})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchAndExport re-exports after every change to the graph file until ctx
// is cancelled. replaced runs after each reload, before the export; it may
// update opts.mapID.
func watchAndExport(ctx context.Context, ctrl *mindmap.Controller, opts *options, cfg config.Config, stdout io.Writer, replaced func()) error {
	gw := startWatcher(*opts, ctrl.Graph())
	if gw == nil {
		return fmt.Errorf("cannot watch %s", opts.graphPath)
	}
	defer gw.Stop()
	if gw.IsPolling() {
		log.Printf("watching %s (polling)", gw.Path())
	} else {
		log.Printf("watching %s", gw.Path())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-gw.Events():
			if ev.Err != nil {
				log.Printf("warning: reload failed: %v", ev.Err)
				continue
			}
			ctrl.LoadGraph(ev.Graph)
			replaced()
			if opts.expandAll {
				ctrl.ExpandAll()
			}
			log.Printf("reloaded: %s", ev.Diff.Summary())
			if err := writeOutputs(ctx, ctrl.View(), *opts, cfg, stdout); err != nil {
				log.Printf("warning: export failed: %v", err)
			}
		}
	}
}

func printMetrics(w io.Writer) {
	stats := metrics.AllTimingStats()
	if len(stats) == 0 {
		fmt.Fprintln(w, "no timings recorded")
		return
	}
	fmt.Fprintf(w, "%-20s %8s %10s %10s %10s\n", "metric", "count", "total_ms", "avg_ms", "max_ms")
	for _, s := range stats {
		fmt.Fprintf(w, "%-20s %8d %10.3f %10.3f %10.3f\n", s.Name, s.Count, s.TotalMs, s.AvgMs, s.MaxMs)
	}
}
