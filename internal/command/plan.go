package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/session"
	"github.com/tesseradb/tessera/internal/stats"
	"github.com/tesseradb/tessera/pkg/types"
)

// PlanRequest describes one scan-planning invocation: the index to
// consult and the key interval the query constrains it to. Bound values
// are literals parsed against the index's key column types, in key
// order; a shorter list is a prefix bound and an empty list is
// unbounded on that side.
type PlanRequest struct {
	IndexName      string
	Start          []string
	StartInclusive bool
	End            []string
	EndInclusive   bool
}

// PartitionScan is one partition's pruning outcome.
type PartitionScan struct {
	Dir    string
	Result *index.PruneResult
}

// ScanPlan is the relation-wide outcome: which data files a query over
// the interval must read, per partition.
type ScanPlan struct {
	IndexName  string
	Partitions []PartitionScan
	Total      int
	Skipped    int
}

// PruningRatio is the fraction of the relation's files the plan skips.
func (p *ScanPlan) PruningRatio() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Skipped) / float64(p.Total)
}

// PlanScan prunes every partition's data files through the named
// index's segment statistics. Read-only; files whose segments are
// missing or unreadable are conservatively kept in the scan set.
func PlanScan(ctx context.Context, sess *session.Session, rel *Relation, req PlanRequest) (*ScanPlan, error) {
	states, err := loadPartitions(ctx, sess, rel)
	if err != nil {
		return nil, err
	}

	var (
		def   index.Definition
		found bool
	)
	for _, state := range states {
		if state.md == nil {
			continue
		}
		if im, ok := state.md.Index(req.IndexName); ok {
			def = im.Definition
			found = true
			break
		}
	}
	if !found {
		return nil, indexNotFoundErr(req.IndexName, rel.Table)
	}

	interval, err := parseInterval(req, keyColumns(def, rel.Schema))
	if err != nil {
		return nil, err
	}

	plan := &ScanPlan{IndexName: req.IndexName}
	for _, state := range states {
		if len(state.files) == 0 {
			continue
		}
		res, err := sess.Pruner().PruneFiles(ctx, state.dir, req.IndexName,
			state.files, []stats.Interval{interval})
		if err != nil {
			return nil, err
		}
		plan.Partitions = append(plan.Partitions, PartitionScan{Dir: state.dir, Result: res})
		plan.Total += res.Total
		plan.Skipped += res.Skipped
	}
	return plan, nil
}

// keyColumns projects the index's key columns out of the table schema,
// in key order.
func keyColumns(def index.Definition, schema types.Schema) []types.ColumnDef {
	cols := make([]types.ColumnDef, 0, len(def.Ordinals()))
	for _, ord := range def.Ordinals() {
		if ord < len(schema.Columns) {
			cols = append(cols, schema.Columns[ord])
		}
	}
	return cols
}

func parseInterval(req PlanRequest, cols []types.ColumnDef) (stats.Interval, error) {
	start, err := parseBound(req.Start, cols)
	if err != nil {
		return stats.Interval{}, err
	}
	end, err := parseBound(req.End, cols)
	if err != nil {
		return stats.Interval{}, err
	}
	return stats.Interval{
		Start:          start,
		StartInclusive: req.StartInclusive,
		End:            end,
		EndInclusive:   req.EndInclusive,
	}, nil
}

func parseBound(vals []string, cols []types.ColumnDef) (types.Key, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	if len(vals) > len(cols) {
		return nil, errors.NewValidationError(errors.CodeInvalidArgument,
			fmt.Sprintf("bound has %d values but the index key has %d columns", len(vals), len(cols)))
	}
	key := make(types.Key, 0, len(vals))
	for i, raw := range vals {
		v, err := parseKeyValue(raw, cols[i].Type)
		if err != nil {
			return nil, errors.NewValidationError(errors.CodeInvalidArgument,
				fmt.Sprintf("bound value %q is not a valid %s for key column %s", raw, cols[i].Type, cols[i].Name))
		}
		key = append(key, v)
	}
	return key, nil
}

func parseKeyValue(raw string, t types.DataType) (types.Value, error) {
	switch t {
	case types.TypeInt64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.Int64Value(v), nil
	case types.TypeFloat64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.Float64Value(v), nil
	case types.TypeString:
		return types.StringValue(raw), nil
	case types.TypeBytes:
		return types.BytesValue([]byte(raw)), nil
	case types.TypeBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return types.Value{}, err
		}
		return types.BoolValue(v), nil
	default:
		return types.Value{}, fmt.Errorf("unsupported key column type %v", t)
	}
}
