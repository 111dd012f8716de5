package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"peach/internal/ast"
	"peach/internal/cache"
	"peach/internal/ir"
	"peach/internal/manifest"
	"peach/internal/modules"
	"peach/internal/parser"
	"peach/internal/resolver"
	"peach/internal/types"
	"peach/internal/value"
	"peach/internal/vm"
)

const version = "0.1.0"

const (
	imageExt    = ".pbc"
	historyFile = ".peach_history"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = cmdRun(os.Args[2:])
	case "build":
		err = cmdBuild(os.Args[2:])
	case "dis":
		err = cmdDis(os.Args[2:])
	case "parse":
		err = cmdParse(os.Args[2:])
	case "repl":
		err = cmdRepl(os.Args[2:])
	case "cache":
		err = cmdCache(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	case "version", "--version":
		fmt.Println("peach", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`peach: lazy compiler and bytecode VM

Usage:
  peach run   [flags] [file.rs|file.pbc]
  peach build [flags] [file.rs] [-o out.pbc]
  peach dis   [flags] [file.rs|file.pbc]
  peach parse <file.rs>
  peach repl  [flags]
  peach cache list|clear

Without a file argument the project is read from peach.toml, looked up
from the working directory upwards.

Flags:
  -main       function to evaluate (default: project main, usually "main")
  -root       directory module files are resolved against
  -trace      print every executed instruction to stderr
  -no-cache   do not read or write the build cache
  -max-depth  maximum call depth (0: unlimited)
  -o          output file for build (default: <input>.pbc)
  -v          log verbosity (repeatable as -v=2)`)
}

// options are the flags shared by run, build, dis and repl.
type options struct {
	main     string
	root     string
	trace    bool
	noCache  bool
	maxDepth int
	verbose  int
}

func newFlagSet(name string, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&o.main, "main", "", "function to evaluate")
	fs.StringVar(&o.root, "root", "", "module root directory")
	fs.BoolVar(&o.trace, "trace", false, "trace executed instructions")
	fs.BoolVar(&o.noCache, "no-cache", false, "bypass the build cache")
	fs.IntVar(&o.maxDepth, "max-depth", 0, "maximum call depth")
	fs.IntVar(&o.verbose, "v", 0, "log verbosity")
	return fs
}

// project is the resolved configuration for one invocation.
type project struct {
	m     *manifest.Manifest
	root  string
	entry string
	main  string
}

// loadProject combines peach.toml (if any) with the command line. An
// explicit file argument overrides the manifest entry.
func loadProject(o *options, file string) (*project, error) {
	commonlog.Configure(o.verbose, nil)

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default(wd)
	}

	p := &project{m: m, root: m.RootPath(), entry: m.EntryPath(), main: m.Project.Main}
	if file != "" {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}
		p.entry = abs
		p.root = filepath.Dir(abs)
	}
	if o.root != "" {
		if p.root, err = filepath.Abs(o.root); err != nil {
			return nil, err
		}
	}
	if o.main != "" {
		p.main = o.main
	}
	if o.maxDepth == 0 {
		o.maxDepth = m.Run.MaxDepth
	}
	return p, nil
}

func (p *project) engine(o *options) (*resolver.Engine, error) {
	opts := []resolver.Option{resolver.WithMaxDepth(o.maxDepth)}
	if o.trace {
		opts = append(opts, resolver.WithTrace(traceTo(os.Stderr)))
	}
	e := resolver.New(opts...)
	if err := e.SetProjectRoot(p.root); err != nil {
		return nil, err
	}
	if err := e.LoadFile(p.entry); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *project) openCache(o *options) *cache.Cache {
	if o.noCache || o.trace || !p.m.CacheEnabled() {
		return nil
	}
	c, err := cache.Open(p.m.CachePath())
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: cache disabled:", err)
		return nil
	}
	return c
}

// image returns the image for the project's main function, from the cache
// when it is still fresh.
func (p *project) image(o *options) (*ir.Image, error) {
	c := p.openCache(o)
	if c != nil {
		defer c.Close()
		if img, err := c.Get(p.entry, p.main); err == nil {
			return img, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			return nil, err
		}
	}

	e, err := p.engine(o)
	if err != nil {
		return nil, err
	}
	img, err := e.Image(p.main)
	if err != nil {
		return nil, err
	}
	if c != nil {
		if err := c.Put(p.entry, p.main, img); err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
	}
	return img, nil
}

func traceTo(w io.Writer) vm.TraceFunc {
	return func(fn string, ip int, in ir.Instruction) {
		fmt.Fprintf(w, "%-16s %04d  %s\n", fn, ip, in)
	}
}

func printResult(v value.Value) {
	if v.Kind != value.KindVoid {
		fmt.Println(v)
	}
}

// -------------- RUN --------------

func cmdRun(args []string) error {
	var o options
	fs := newFlagSet("run", &o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	input := fs.Arg(0)

	if filepath.Ext(input) == imageExt {
		commonlog.Configure(o.verbose, nil)
		img, err := ir.ReadImageFile(input)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		return runImage(img, &o)
	}

	p, err := loadProject(&o, input)
	if err != nil {
		return err
	}

	// Tracing runs straight from the engine so only what executes compiles.
	if o.trace {
		e, err := p.engine(&o)
		if err != nil {
			return err
		}
		v, err := e.Eval(p.main)
		if err != nil {
			return err
		}
		printResult(v)
		return nil
	}

	img, err := p.image(&o)
	if err != nil {
		return err
	}
	return runImage(img, &o)
}

func runImage(img *ir.Image, o *options) error {
	entry, err := img.EntryFunction()
	if err != nil {
		return err
	}
	opts := []vm.Option{vm.WithMaxDepth(o.maxDepth)}
	if o.trace {
		opts = append(opts, vm.WithTrace(traceTo(os.Stderr)))
	}
	v, err := vm.New(img, opts...).Call(entry)
	if err != nil {
		return err
	}
	printResult(v)
	return nil
}

// -------------- BUILD --------------

func cmdBuild(args []string) error {
	var o options
	var out string
	fs := newFlagSet("build", &o)
	fs.StringVar(&out, "o", "", "output file (default: <input>.pbc)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := loadProject(&o, fs.Arg(0))
	if err != nil {
		return err
	}
	if out == "" {
		out = strings.TrimSuffix(p.entry, filepath.Ext(p.entry)) + imageExt
	}

	img, err := p.image(&o)
	if err != nil {
		return err
	}
	if err := ir.WriteImageFile(out, img); err != nil {
		return err
	}

	info, err := os.Stat(out)
	if err != nil {
		return err
	}
	fmt.Printf("Built %s: %d functions, %s\n", out, len(img.Functions), humanize.Bytes(uint64(info.Size())))
	return nil
}

// -------------- DIS --------------

func cmdDis(args []string) error {
	var o options
	fs := newFlagSet("dis", &o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	input := fs.Arg(0)

	if filepath.Ext(input) == imageExt {
		img, err := ir.ReadImageFile(input)
		if err != nil {
			return err
		}
		return ir.DisassembleImage(os.Stdout, img)
	}

	o.noCache = true
	p, err := loadProject(&o, input)
	if err != nil {
		return err
	}
	img, err := p.image(&o)
	if err != nil {
		return err
	}
	return ir.DisassembleImage(os.Stdout, img)
}

// -------------- PARSE --------------

func cmdParse(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("parse: missing input file")
	}
	src, err := modules.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Print(ast.DumpFile(src.File))
	return nil
}

// -------------- CACHE --------------

func cmdCache(args []string) error {
	var o options
	fs := newFlagSet("cache", &o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := loadProject(&o, "")
	if err != nil {
		return err
	}
	c, err := cache.Open(p.m.CachePath())
	if err != nil {
		return err
	}
	defer c.Close()

	switch fs.Arg(0) {
	case "", "list":
		entries, err := c.List()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %s:%s  %s  built %s\n",
				e.BuildID, e.File, e.Fn, humanize.Bytes(uint64(e.Size)), humanize.Time(e.Built))
		}
		return nil
	case "clear":
		n, err := c.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached images from %s\n", n, c.Path())
		return nil
	default:
		return fmt.Errorf("cache: unknown subcommand %q", fs.Arg(0))
	}
}

// -------------- REPL --------------

const (
	promptMain = "peach> "
	promptCont = "  ...> "
)

func cmdRepl(args []string) error {
	var o options
	fs := newFlagSet("repl", &o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	commonlog.Configure(o.verbose, nil)

	opts := []resolver.Option{resolver.WithMaxDepth(o.maxDepth)}
	if o.trace {
		opts = append(opts, resolver.WithTrace(traceTo(os.Stderr)))
	}
	e := resolver.New(opts...)
	if o.root != "" {
		if err := e.SetProjectRoot(o.root); err != nil {
			return err
		}
	}
	s := e.NewSession()

	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return replLines(s, bufio.NewScanner(os.Stdin))
	}

	fmt.Printf("peach %s. Type :quit to exit, :vars to list variables.\n", version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, ok := readByParseProbe(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		switch strings.TrimSpace(line) {
		case "":
			continue
		case ":quit", ":q":
			return nil
		case ":vars":
			fmt.Println(strings.Join(s.Vars(), " "))
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(line, "\n", " "))
		evalLine(s, line)
	}
}

// readByParseProbe keeps reading lines while braces are still open.
func readByParseProbe(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err != nil {
			// io.EOF, liner.ErrPromptAborted or a terminal failure
			return "", false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if strings.Count(b.String(), "{") <= strings.Count(b.String(), "}") {
			return b.String(), true
		}
	}
}

func replLines(s *resolver.Session, sc *bufio.Scanner) error {
	for sc.Scan() {
		evalLine(s, sc.Text())
	}
	return sc.Err()
}

func evalLine(s *resolver.Session, line string) {
	v, ty, err := s.Eval(line)
	if err != nil {
		var perr *parser.Error
		if errors.As(err, &perr) {
			for _, msg := range perr.Msgs {
				fmt.Fprintln(os.Stderr, "parse error:", msg)
			}
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	if ty != types.Unit {
		fmt.Printf("%s: %s\n", v, ty)
	}
}
