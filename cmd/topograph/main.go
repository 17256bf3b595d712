package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/hanpama/topograph/internal/filter"
	"github.com/hanpama/topograph/internal/graph"
	"github.com/hanpama/topograph/internal/isolation"
	"github.com/hanpama/topograph/internal/otel"
	"github.com/hanpama/topograph/internal/persist"
	"github.com/hanpama/topograph/internal/schema"
	"github.com/hanpama/topograph/internal/walker"
)

const rootUsage = `topograph COMMAND [FLAGS]

Commands:
  validate  Validate a schema declaration directory
  run       Survey a principal's graph and print the reports as JSON
  compact   Rewrite a store, reclaiming state unreachable from any root
  help      Show help for a command
`

const validateUsage = `validate FLAGS:
  -schema.dir <dir>  Schema declaration directory (default: .)
`

const runUsage = `run FLAGS:
  -schema.dir <dir>           Schema declaration directory (default: .)
  -store.path <dir>           Store directory to load the graph from (optional)
  -principal <name>           Acting principal (default: the system principal)
  -otel.endpoint <host:port>  OTLP collector endpoint
  -otel.service <name>        OpenTelemetry service name (default: topograph)
`

const compactUsage = `compact FLAGS:
  -schema.dir <dir>           Schema declaration directory (default: .)
  -store.path <dir>           Store directory (required)
  -otel.endpoint <host:port>  OTLP collector endpoint
  -otel.service <name>        OpenTelemetry service name (default: topograph)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("topograph", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "validate":
		return cmdValidate(cmdArgs)
	case "run":
		return cmdRun(cmdArgs)
	case "compact":
		return cmdCompact(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "validate":
		fmt.Print(validateUsage)
	case "run":
		fmt.Print(runUsage)
	case "compact":
		fmt.Print(compactUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func cmdValidate(args []string) error {
	schemaDir := "."

	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaDir, "schema.dir", schemaDir, "Schema declaration directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, validateUsage)
		return err
	}

	reg, err := schema.LoadDir(schemaDir)
	if err != nil {
		return err
	}

	// Count only what the directory declares, not the builtin types.
	var nodes, edges, walkers int
	for name, t := range reg.Types {
		if name == schema.RootTypeName || name == schema.GenericEdgeTypeName {
			continue
		}
		switch t.Kind {
		case schema.KindNode:
			nodes++
		case schema.KindEdge:
			edges++
		case schema.KindWalker:
			walkers++
		}
	}
	fmt.Printf("ok: %d node types, %d edge types, %d walker types\n", nodes, edges, walkers)
	return nil
}

// surveyorType is registered by the run command on top of the loaded schema;
// declaring it in schema files is rejected to keep the name unambiguous.
const surveyorType = "Surveyor"

func cmdRun(args []string) error {
	schemaDir := "."
	storePath := ""
	principal := isolation.SystemPrincipal
	otelEndpoint := ""
	otelService := "topograph"

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaDir, "schema.dir", schemaDir, "Schema declaration directory")
	fs.StringVar(&storePath, "store.path", storePath, "Store directory")
	fs.StringVar(&principal, "principal", principal, "Acting principal")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, runUsage)
		return err
	}

	ctx := context.Background()

	if otelEndpoint != "" {
		shutdown, err := otel.Setup(otelEndpoint, otelService)
		if err != nil {
			return fmt.Errorf("otel setup: %w", err)
		}
		defer shutdown(ctx)
	}

	reg, err := schema.LoadDir(schemaDir)
	if err != nil {
		return err
	}
	if reg.GetType(surveyorType) != nil {
		return fmt.Errorf("schema declares reserved walker type %q", surveyorType)
	}
	reg.AddType(schema.NewWalkerType(surveyorType).
		AddAbility(schema.NewAbility("survey", schema.DirEntry)))

	store := graph.NewStore(reg)
	mgr := isolation.NewManager(store)
	if storePath != "" {
		backend, err := persist.Open(persist.DefaultConfig(storePath))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer backend.Close()
		snap, err := backend.Load(ctx)
		if err != nil {
			return fmt.Errorf("load store: %w", err)
		}
		if err := store.Restore(snap); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if err := mgr.Restore(snap); err != nil {
			return fmt.Errorf("restore roots: %w", err)
		}
	}
	root, err := mgr.ResolveRoot(principal)
	if err != nil {
		return err
	}

	eng := walker.NewEngine(store)
	if err := eng.Bind(surveyorType, "survey", surveyNode); err != nil {
		return err
	}
	res, err := eng.Spawn(ctx, root, surveyorType, nil,
		&walker.SpawnOptions{Root: root, VisitOnce: true})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Reports)
}

// surveyNode reports the node under the walker and fans out over every
// outgoing edge.
func surveyNode(ctx context.Context, ac *walker.Context) error {
	here := ac.Here().Node
	typeName, err := ac.Store().NodeType(here)
	if err != nil {
		return err
	}
	fields := map[string]json.RawMessage{}
	for _, def := range ac.Store().Registry().EffectiveFields(typeName) {
		v, err := ac.Store().NodeField(here, def.Name)
		if err != nil {
			return err
		}
		data, err := ctyjson.Marshal(v, def.Type)
		if err != nil {
			return err
		}
		fields[def.Name] = data
	}
	ac.Report(map[string]any{"node": uint64(here), "type": typeName, "fields": fields})

	steps, err := ac.Steps(graph.DirOut, filter.StepFilter{})
	if err != nil {
		return err
	}
	ac.Visit(steps...)
	return nil
}

func cmdCompact(args []string) error {
	schemaDir := "."
	storePath := ""
	otelEndpoint := ""
	otelService := "topograph"

	fs := flag.NewFlagSet("compact", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaDir, "schema.dir", schemaDir, "Schema declaration directory")
	fs.StringVar(&storePath, "store.path", storePath, "Store directory")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, compactUsage)
		return err
	}
	if storePath == "" {
		fmt.Fprint(os.Stderr, compactUsage)
		return fmt.Errorf("-store.path is required")
	}

	ctx := context.Background()

	if otelEndpoint != "" {
		shutdown, err := otel.Setup(otelEndpoint, otelService)
		if err != nil {
			return fmt.Errorf("otel setup: %w", err)
		}
		defer shutdown(ctx)
	}

	reg, err := schema.LoadDir(schemaDir)
	if err != nil {
		return err
	}

	backend, err := persist.Open(persist.DefaultConfig(storePath))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	snap, err := backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}

	store := graph.NewStore(reg)
	if err := store.Restore(snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	mgr := isolation.NewManager(store)
	if err := mgr.Restore(snap); err != nil {
		return fmt.Errorf("restore roots: %w", err)
	}

	stats, err := store.Checkpoint(ctx, backend, mgr.Records())
	if err != nil {
		return err
	}
	fmt.Printf("compacted: %d nodes, %d edges retained; %d nodes, %d edges reclaimed\n",
		stats.Nodes, stats.Edges, stats.ReclaimedNodes, stats.ReclaimedEdges)
	return nil
}
