package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/wippyai/circuit/asm"
	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/compiler"
	"github.com/wippyai/circuit/gate"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to a TOML compiler configuration")
		verifyFlag  = flag.Bool("verify", true, "Run the circuit verifier")
		foldFlag    = flag.Bool("fold", false, "Fold trivial selectors")
		printWhat   = flag.String("print", "", "Print regions,gates,schedule (comma-separated)")
		dumpFile    = flag.String("dump", "", "Write CBOR snapshots of every compiled method to this file")
		cachePath   = flag.String("cache", "", "SQLite compile cache")
		workers     = flag.Int("workers", 0, "Parallel compilations (0 = GOMAXPROCS)")
		verbose     = flag.Bool("v", false, "Debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: gatec [-config file.toml] [-fold] [-print regions,gates,schedule] file.gasm...")
		fmt.Fprintln(os.Stderr, "       gatec -dump out.cbor file.gasm...")
		fmt.Fprintln(os.Stderr, "       gatec -i file.gasm...  (interactive mode)")
		os.Exit(1)
	}

	cfg := compiler.DefaultConfig()
	if *configFile != "" {
		loaded, err := compiler.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verify":
			cfg.Verify = *verifyFlag
		case "fold":
			cfg.FoldSelectors = *foldFlag
		case "cache":
			cfg.CachePath = *cachePath
		case "workers":
			cfg.Workers = *workers
		}
	})
	if *verbose {
		cfg.LogLevel = "debug"
	}

	log, err := compiler.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	cfg.Logger = log

	if *interactive {
		cfg.Logger = zap.NewNop()
		if err := runInteractive(flag.Args(), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(flag.Args(), cfg, *printWhat, *dumpFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadMethods(files []string) ([]*bytecode.Method, error) {
	var methods []*bytecode.Method
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		ms, err := asm.Assemble(string(src))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		methods = append(methods, ms...)
	}
	return methods, nil
}

func compileFiles(files []string, cfg compiler.Config) ([]*compiler.Compiled, error) {
	methods, err := loadMethods(files)
	if err != nil {
		return nil, err
	}
	c, err := compiler.New(cfg)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.CompileAll(context.Background(), methods)
}

func run(files []string, cfg compiler.Config, printWhat, dumpFile string) error {
	results, err := compileFiles(files, cfg)
	if err != nil {
		return err
	}

	sections := make(map[string]bool)
	for _, s := range strings.Split(printWhat, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sections[s] = true
		}
	}
	for s := range sections {
		switch s {
		case "regions", "gates", "schedule":
		default:
			return fmt.Errorf("unknown -print section %q", s)
		}
	}

	p := newPrinter(os.Stdout)
	failed := 0
	for _, res := range results {
		p.summary(res)
		if res.Err != nil {
			failed++
			continue
		}
		if sections["regions"] {
			p.regions(res)
		}
		if sections["gates"] {
			p.gates(res.Circuit)
		}
		if sections["schedule"] {
			p.schedule(res)
		}
	}

	if dumpFile != "" {
		if err := dump(dumpFile, results); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", dumpFile)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d methods failed", failed, len(results))
	}
	return nil
}

type dumpRecord struct {
	Name     string       `cbor:"1,keyasint"`
	Snapshot []byte       `cbor:"2,keyasint"`
	Blocks   [][]gate.Ref `cbor:"3,keyasint,omitempty"`
}

func dump(path string, results []*compiler.Compiled) error {
	var records []dumpRecord
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		snap, err := res.Circuit.Snapshot()
		if err != nil {
			return err
		}
		records = append(records, dumpRecord{Name: res.Method.Name, Snapshot: snap, Blocks: res.Blocks})
	}
	data, err := cbor.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	return nil
}
