package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/calumari/jxml"
	"github.com/calumari/jxml/server"
)

var (
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

const usage = `Usage:
  jxml convert [-in file|-] [-out file] [-format auto|json|yaml] [-item tag] [-root tag] [-debug] [-log file]
  jxml serve   [-config file] [-addr addr] [-data dir] [-cache dir] [-debug] [-log file]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "convert":
		err = runConvert(args[1:], stdin, stdout, stderr)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		fmt.Fprint(stderr, usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", errStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

func runConvert(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fset := flag.NewFlagSet("convert", flag.ContinueOnError)
	fset.SetOutput(stderr)
	var (
		in      = fset.String("in", "-", "Input JSON or YAML file (- for stdin)")
		out     = fset.String("out", "", "Output XML file (stdout if empty)")
		format  = fset.String("format", "auto", "Input format: auto, json or yaml")
		itemTag = fset.String("item", jxml.DefaultItemTag, "Element name for sequence items")
		rootTag = fset.String("root", jxml.DefaultRootTag, "Name of the document element")
		debug   = fset.Bool("debug", false, "Log every conversion step to the log file")
		logFile = fset.String("log", "jxml.log", "Log file used in debug mode")
	)
	if err := fset.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*debug, *logFile)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if *debug {
		fmt.Fprintf(stderr, "Debug mode is on. Events are logged at: %s\n", *logFile)
	}

	f, err := jxml.ParseFormat(*format)
	if err != nil {
		return err
	}
	reg, err := jxml.NewRegistry(jxml.Stdlib())
	if err != nil {
		return err
	}
	opts := []jxml.DecodeOption{jxml.WithRegistry(reg), jxml.WithFormat(f)}

	var v any
	if *in == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if v, err = jxml.Decode(data, opts...); err != nil {
			return err
		}
	} else if v, err = jxml.DecodeFile(*in, opts...); err != nil {
		return err
	}

	enc, err := jxml.NewEncoder(
		jxml.WithLogger(logger),
		jxml.WithItemTag(*itemTag),
		jxml.WithRootTag(*rootTag),
	)
	if err != nil {
		return err
	}

	if *out == "" {
		return enc.Encode(stdout, v)
	}
	ok, err := enc.WriteDocument(v, *out)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("could not write %s", *out)
	}
	fmt.Fprintf(stderr, "%s %s\n", okStyle.Render("Wrote"), *out)
	return nil
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fset := flag.NewFlagSet("serve", flag.ContinueOnError)
	fset.SetOutput(stderr)
	defaults := server.DefaultConfig()
	var (
		configFile = fset.String("config", "", "YAML configuration file")
		addr       = fset.String("addr", defaults.Addr, "Listen address")
		dataDir    = fset.String("data", defaults.DataDir, "Directory holding the source reports")
		cacheDir   = fset.String("cache", defaults.CacheDir, "Directory receiving generated XML")
		debug      = fset.Bool("debug", defaults.Debug, "Enable debug logging to the log file")
		logFile    = fset.String("log", defaults.LogFile, "Log file used in debug mode")
	)
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg := defaults
	if *configFile != "" {
		loaded, err := server.LoadConfig(*configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	// Flags given explicitly win over the configuration file.
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "data":
			cfg.DataDir = *dataDir
		case "cache":
			cfg.CacheDir = *cacheDir
		case "debug":
			cfg.Debug = *debug
		case "log":
			cfg.LogFile = *logFile
		}
	})

	logger, err := newLogger(cfg.Debug, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg, err := jxml.NewRegistry(jxml.Stdlib())
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, server.WithLogger(logger), server.WithRegistry(reg))
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "%s %s\n", okStyle.Render("Serving"), cfg.Addr)
	return srv.Run(ctx)
}
