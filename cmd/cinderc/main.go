// cinderc is the command-line driver for the cinder codegen core: it
// loads a cinder.toml project, compiles its entry source through
// codegen.Generate, and writes (or inspects) the resulting IR Proc.
//
// Lexing/parsing to an ast.Node tree is an external collaborator per
// spec.md §1 ("out of scope ... opaque services"); this driver accepts
// a pre-built AST as a JSON document rather than Ruby-family source
// text, which keeps the CLI runnable end to end without pulling in a
// front-end grammar the codegen core itself has no opinion about.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/cinder-lang/cinder/ast"
	"github.com/cinder-lang/cinder/codegen"
	"github.com/cinder-lang/cinder/ir"
	"github.com/cinder-lang/cinder/manifest"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	noOptimize := flag.Bool("no-optimize", false, "Disable peephole optimization")
	enableTail := flag.Bool("enable-tail-call", false, "Set CompileOptions.EnableTailCall (codegen emits no TAILCALL either way)")
	output := flag.String("o", "", "Output path for the compiled Proc (defaults to the manifest's build.output)")
	noCache := flag.Bool("no-cache", false, "Skip the on-disk compile cache")
	disasmMode := flag.Bool("disasm", false, "Disassemble a compiled Proc instead of compiling")
	goConst := flag.Bool("go-const", false, "With -disasm, emit Go opcode-mnemonic constants instead of text disassembly")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cinderc [options] <path>\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a JSON-encoded AST (see ast.Node) into an IR Proc, or\n")
		fmt.Fprintf(os.Stderr, "disassembles an already-compiled Proc with -disasm.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cinderc ./myproject              # compile using ./myproject/cinder.toml\n")
		fmt.Fprintf(os.Stderr, "  cinderc -o out.circ main.ast.json # compile a single AST file\n")
		fmt.Fprintf(os.Stderr, "  cinderc -disasm out.circ         # print disassembly\n")
		fmt.Fprintf(os.Stderr, "  cinderc -disasm -go-const out.circ  # emit Go opcode constants\n")
	}
	flag.Parse()

	commonlog.NewInfoMessage(0, "cinderc starting")

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := args[0]

	if *disasmMode {
		if err := runDisasm(path, *goConst); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runCompile(path, *verbose, *noOptimize, *enableTail, *noCache, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCompile resolves a project (or a bare AST file), compiles its
// entry through codegen.Generate, and writes the result.
func runCompile(path string, verbose, noOptimize, enableTail, noCache bool, outOverride string) error {
	sessionID := uuid.NewString()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", path, err)
	}

	var entryPath, outPath, cacheDir string
	if info.IsDir() {
		m, err := manifest.Load(path)
		if err != nil {
			return err
		}
		entryPath = m.EntryPath()
		outPath = filepath.Join(m.Dir, m.Build.Output)
		cacheDir = m.CachePath()
		if !m.Build.Optimize {
			noOptimize = true
		}
		if m.Build.EnableTail {
			enableTail = true
		}
	} else {
		entryPath = path
		outPath = path + ".circ"
		cacheDir = filepath.Join(filepath.Dir(path), ".cinder-cache")
	}
	if outOverride != "" {
		outPath = outOverride
	}

	src, err := os.ReadFile(entryPath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", entryPath, err)
	}

	hash := sha256.Sum256(src)
	cacheKey := hex.EncodeToString(hash[:])
	cachePath := filepath.Join(cacheDir, cacheKey+".circ")

	if !noCache {
		if cached, err := os.ReadFile(cachePath); err == nil {
			if _, err := ir.DecodeCache(cached); err == nil {
				commonlog.NewInfoMessage(0, "cinderc cache hit")
				if verbose {
					fmt.Printf("cache hit: %s\n", cachePath)
				}
				return os.WriteFile(outPath, cached, 0o644)
			}
		}
	}

	root, err := parseASTFile(src)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", entryPath, err)
	}

	logger := &cliLogger{verbose: verbose}
	opts := codegen.CompileOptions{
		NoOptimize:     noOptimize,
		Logger:         logger,
		SessionID:      sessionID,
		EnableTailCall: enableTail,
	}
	proc, err := codegen.Generate(root, entryPath, opts)
	if err != nil {
		return err
	}

	data, err := proc.EncodeCache()
	if err != nil {
		return fmt.Errorf("encoding compiled proc: %w", err)
	}

	if !noCache {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return fmt.Errorf("creating cache dir %s: %w", cacheDir, err)
		}
		if err := os.WriteFile(cachePath, data, 0o644); err != nil {
			return fmt.Errorf("writing cache entry: %w", err)
		}
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	commonlog.NewInfoMessage(0, "cinderc compile done")
	if verbose {
		fmt.Printf("compiled %s -> %s (%d instructions, %d registers)\n", entryPath, outPath, proc.ILen(), proc.NRegs)
	}
	return nil
}

// astFile is the JSON envelope parseASTFile reads: a single top-level
// expression the way a front-end's parser_state would hand codegen its
// root AST node (spec.md §6's "root AST" contract), shaped here as a
// Begin of top-level statements so a project's whole entry file lowers
// as one Proc.
type astFile struct {
	Statements []json.RawMessage `json:"statements"`
}

// parseASTFile decodes the opaque front-end hand-off. Only a minimal
// literal/self subset is supported directly; anything else is expected
// to arrive as an *ast.Begin wrapping nodes a real front-end already
// built in-process (this driver's JSON path exists for standalone
// invocation and fixture-driven testing, not as a parser replacement).
func parseASTFile(src []byte) (ast.Node, error) {
	var stmts []ast.Node
	var file astFile
	if err := json.Unmarshal(src, &file); err != nil {
		return nil, fmt.Errorf("decoding AST file: %w", err)
	}
	for _, raw := range file.Statements {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, n)
	}
	return &ast.Begin{List: stmts}, nil
}

type nodeEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func decodeNode(raw json.RawMessage) (ast.Node, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case "int":
		var n ast.Int
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return nil, err
		}
		return &n, nil
	case "str":
		var n ast.Str
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return nil, err
		}
		return &n, nil
	case "self":
		var n ast.Self
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return nil, err
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("unsupported AST node kind %q in JSON hand-off", env.Kind)
	}
}

// cliLogger adapts codegen.Logger to stdout, used when no commonlog
// sink is wired through; commonlog itself carries the session-level
// start/done messages above.
type cliLogger struct{ verbose bool }

func (l *cliLogger) Debug(msg string, args ...any) {
	if l.verbose {
		fmt.Printf("[debug] %s %v\n", msg, args)
	}
}
func (l *cliLogger) Info(msg string, args ...any) {
	if l.verbose {
		fmt.Printf("[info] %s %v\n", msg, args)
	}
}
func (l *cliLogger) Warn(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "[warn] %s %v\n", msg, args)
}

func runDisasm(path string, goConst bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	proc, err := ir.DecodeCache(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	if goConst {
		return emitGoConsts(proc, filepath.Base(path))
	}
	fmt.Println(proc.DisassembleTree(filepath.Base(path)))
	return nil
}
