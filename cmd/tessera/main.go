// Package main implements the tessera binary: the index lifecycle
// commands (create-index, drop-index, refresh-index, show-index) plus
// table registration, run against a local or S3-backed table layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tesseradb/tessera/internal/catalog"
	"github.com/tesseradb/tessera/internal/command"
	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/engine"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/session"
	"github.com/tesseradb/tessera/internal/storage"
	"github.com/tesseradb/tessera/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Tessera - Secondary Indexes For Partitioned Columnar Tables\n\n")
	fmt.Fprintf(os.Stderr, "Usage: tessera <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  register-table   Register a table and its partition directories\n")
	fmt.Fprintf(os.Stderr, "  create-index     Build a new index over a table\n")
	fmt.Fprintf(os.Stderr, "  drop-index       Remove an index and its segment files\n")
	fmt.Fprintf(os.Stderr, "  refresh-index    Re-run every index against the current row set\n")
	fmt.Fprintf(os.Stderr, "  show-index       List index definitions, one row per key column\n")
	fmt.Fprintf(os.Stderr, "  plan             Prune a table's data files against an index for a key interval\n")
	fmt.Fprintf(os.Stderr, "  version          Show version information\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  TESSERA_DATA_DIR      Base directory for local state\n")
	fmt.Fprintf(os.Stderr, "  TESSERA_BACKEND       Session backend (default, extended)\n")
	fmt.Fprintf(os.Stderr, "  TESSERA_STORAGE_TYPE  Storage type (local, s3)\n")
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "register-table":
		err = runRegisterTable(args)
	case "create-index":
		err = runCreateIndex(args)
	case "drop-index":
		err = runDropIndex(args)
	case "refresh-index":
		err = runRefreshIndex(args)
	case "show-index":
		err = runShowIndex(args)
	case "plan":
		err = runPlan(args)
	case "version":
		fmt.Printf("tessera version %s (commit: %s)\n", version, commit)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("tessera %s: %v", cmd, err)
	}
}

// commonFlags adds the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (configFile, dataDir *string) {
	configFile = fs.String("config", "", "Path to configuration file (YAML or JSON)")
	dataDir = fs.String("data-dir", "", "Base directory for local state")
	return
}

func loadConfig(configFile, dataDir string) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession wires storage, catalog, and the configured backend.
func openSession(ctx context.Context, cfg *config.Config) (*session.Session, func(), error) {
	var (
		fs  storage.FileSystem
		err error
	)
	switch cfg.Storage.Type {
	case "s3":
		fs, err = storage.NewS3FS(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
	default:
		fs, err = storage.NewLocalFS(cfg.Storage.Path)
	}
	if err != nil {
		return nil, nil, err
	}

	cat, err := catalog.NewCatalog(cfg.CatalogPath(), fs)
	if err != nil {
		return nil, nil, err
	}
	sess, err := session.Open(cfg, fs, cat)
	if err != nil {
		cat.Close()
		return nil, nil, err
	}
	return sess, func() { cat.Close() }, nil
}

func openRelation(ctx context.Context, sess *session.Session, table string) (*command.Relation, error) {
	if table == "" {
		return nil, fmt.Errorf("--table is required")
	}
	return command.OpenRelation(ctx, sess, table)
}

func runRegisterTable(args []string) error {
	fs := flag.NewFlagSet("register-table", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	schemaSpec := fs.String("schema", "", "Comma-separated name:type pairs (e.g. user_id:int64,event:string)")
	reader := fs.String("reader", engine.TSVReaderName, "Reader class name for the table's data files")
	partitions := fs.String("partitions", "", "Comma-separated partition directories")
	fs.Parse(args)

	cfg, err := loadConfig(*configFile, *dataDir)
	if err != nil {
		return err
	}
	schema, err := parseSchema(*schemaSpec)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, closeFn, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	err = sess.Catalog().RegisterTable(ctx, &catalog.TableRecord{
		Name:            *table,
		ReaderClassName: *reader,
		Schema:          schema,
	})
	if err != nil {
		return err
	}
	for _, dir := range splitList(*partitions) {
		if err := sess.Catalog().AddPartition(ctx, *table, dir); err != nil {
			return err
		}
	}
	log.Printf("registered table %s with %d partitions", *table, len(splitList(*partitions)))
	return nil
}

func runCreateIndex(args []string) error {
	fs := flag.NewFlagSet("create-index", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	name := fs.String("name", "", "Index name")
	columns := fs.String("columns", "", "Comma-separated key columns, each name or name:desc")
	kindName := fs.String("kind", "btree", "Index kind: btree, bitmap")
	allowExists := fs.Bool("allow-exists", false, "Replace an existing index of the same name")
	fs.Parse(args)

	cfg, err := loadConfig(*configFile, *dataDir)
	if err != nil {
		return err
	}
	kind, err := index.ParseKind(*kindName)
	if err != nil {
		return err
	}
	cols, err := parseColumns(*columns)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, closeFn, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	rel, err := openRelation(ctx, sess, *table)
	if err != nil {
		return err
	}
	err = command.CreateIndex(ctx, sess, rel, command.CreateRequest{
		Name:        *name,
		Columns:     cols,
		Kind:        kind,
		AllowExists: *allowExists,
	})
	if err != nil {
		return err
	}
	log.Printf("created index %s on table %s", *name, *table)
	return nil
}

func runDropIndex(args []string) error {
	fs := flag.NewFlagSet("drop-index", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	name := fs.String("name", "", "Index name")
	allowNotExists := fs.Bool("allow-not-exists", false, "Succeed even if the index does not exist")
	fs.Parse(args)

	cfg, err := loadConfig(*configFile, *dataDir)
	if err != nil {
		return err
	}
	ctx := context.Background()
	sess, closeFn, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	rel, err := openRelation(ctx, sess, *table)
	if err != nil {
		return err
	}
	if err := command.DropIndex(ctx, sess, rel, *name, *allowNotExists); err != nil {
		return err
	}
	log.Printf("dropped index %s from table %s", *name, *table)
	return nil
}

func runRefreshIndex(args []string) error {
	fs := flag.NewFlagSet("refresh-index", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	fs.Parse(args)

	cfg, err := loadConfig(*configFile, *dataDir)
	if err != nil {
		return err
	}
	ctx := context.Background()
	sess, closeFn, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	rel, err := openRelation(ctx, sess, *table)
	if err != nil {
		return err
	}
	if err := command.RefreshIndex(ctx, sess, rel); err != nil {
		return err
	}
	log.Printf("refreshed indexes on table %s", *table)
	return nil
}

func runShowIndex(args []string) error {
	fs := flag.NewFlagSet("show-index", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	fs.Parse(args)

	cfg, err := loadConfig(*configFile, *dataDir)
	if err != nil {
		return err
	}
	ctx := context.Background()
	sess, closeFn, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	rel, err := openRelation(ctx, sess, *table)
	if err != nil {
		return err
	}
	rows, err := command.ShowIndex(ctx, sess, rel)
	if err != nil {
		return err
	}
	fmt.Printf("%-20s %-20s %-8s %-9s %s\n", "INDEX", "COLUMN", "POS", "DIRECTION", "KIND")
	for _, row := range rows {
		fmt.Printf("%-20s %-20s %-8d %-9s %s\n",
			row.IndexName, row.ColumnName, row.Position, row.Direction, row.Kind)
	}
	return nil
}

func runPlan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	name := fs.String("index", "", "Index name to consult")
	start := fs.String("start", "", "Comma-separated lower-bound key values (empty for unbounded)")
	end := fs.String("end", "", "Comma-separated upper-bound key values (empty for unbounded)")
	exclusiveStart := fs.Bool("exclusive-start", false, "Treat the lower bound as exclusive")
	exclusiveEnd := fs.Bool("exclusive-end", false, "Treat the upper bound as exclusive")
	fs.Parse(args)

	cfg, err := loadConfig(*configFile, *dataDir)
	if err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--index is required")
	}
	ctx := context.Background()
	sess, closeFn, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	rel, err := openRelation(ctx, sess, *table)
	if err != nil {
		return err
	}
	plan, err := command.PlanScan(ctx, sess, rel, command.PlanRequest{
		IndexName:      *name,
		Start:          splitList(*start),
		StartInclusive: !*exclusiveStart,
		End:            splitList(*end),
		EndInclusive:   !*exclusiveEnd,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%-40s %-8s %-8s %s\n", "PARTITION", "FILES", "SKIPPED", "SCAN")
	for _, part := range plan.Partitions {
		fmt.Printf("%-40s %-8d %-8d %s\n",
			part.Dir, part.Result.Total, part.Result.Skipped, strings.Join(part.Result.Scan, ","))
	}
	fmt.Printf("\n%d of %d files skipped (ratio %.2f)\n", plan.Skipped, plan.Total, plan.PruningRatio())
	return nil
}

func parseSchema(spec string) (types.Schema, error) {
	if spec == "" {
		return types.Schema{}, fmt.Errorf("--schema is required")
	}
	var schema types.Schema
	for _, part := range splitList(spec) {
		nameType := strings.SplitN(part, ":", 2)
		if len(nameType) != 2 {
			return types.Schema{}, fmt.Errorf("bad schema entry %q, want name:type", part)
		}
		dt := types.ParseDataType(strings.ToUpper(nameType[1]))
		if dt == types.TypeInvalid {
			return types.Schema{}, fmt.Errorf("unknown column type %q", nameType[1])
		}
		schema.Columns = append(schema.Columns, types.ColumnDef{
			Name: nameType[0],
			Type: dt,
		})
	}
	return schema, nil
}

func parseColumns(spec string) ([]index.Column, error) {
	if spec == "" {
		return nil, fmt.Errorf("--columns is required")
	}
	var cols []index.Column
	for _, part := range splitList(spec) {
		name, order, found := strings.Cut(part, ":")
		ascending := true
		if found {
			switch strings.ToLower(order) {
			case "asc":
			case "desc":
				ascending = false
			default:
				return nil, fmt.Errorf("bad column order %q, want asc or desc", order)
			}
		}
		cols = append(cols, index.Column{Name: name, Ascending: ascending})
	}
	return cols, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
