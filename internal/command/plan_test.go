package command

import (
	"context"
	"reflect"
	"testing"

	"github.com/tesseradb/tessera/internal/errors"
)

func TestPlanScanPrunesByKeyInterval(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.registerTable(t, "p1", "p2")
	env.writeFile(t, "p1/a.tsv", "1\tlogin\n5\tlogout\n")
	env.writeFile(t, "p2/b.tsv", "100\tlogin\n105\tlogout\n")

	rel := env.relation(t)
	if err := CreateIndex(ctx, env.sess, rel, userIDIndex()); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	// Between the two files' key ranges: everything prunes away.
	plan, err := PlanScan(ctx, env.sess, rel, PlanRequest{
		IndexName:      "idx_user",
		Start:          []string{"10"},
		StartInclusive: true,
		End:            []string{"50"},
		EndInclusive:   true,
	})
	if err != nil {
		t.Fatalf("PlanScan failed: %v", err)
	}
	if plan.Total != 2 || plan.Skipped != 2 {
		t.Errorf("skipped %d of %d files, want 2 of 2", plan.Skipped, plan.Total)
	}
	if plan.PruningRatio() != 1.0 {
		t.Errorf("pruning ratio = %v, want 1.0", plan.PruningRatio())
	}

	// A point inside the first file's range scans only that file.
	plan, err = PlanScan(ctx, env.sess, rel, PlanRequest{
		IndexName:      "idx_user",
		Start:          []string{"5"},
		StartInclusive: true,
		End:            []string{"5"},
		EndInclusive:   true,
	})
	if err != nil {
		t.Fatalf("PlanScan failed: %v", err)
	}
	if plan.Skipped != 1 {
		t.Errorf("skipped %d files, want 1", plan.Skipped)
	}
	var scan []string
	for _, part := range plan.Partitions {
		scan = append(scan, part.Result.Scan...)
	}
	if !reflect.DeepEqual(scan, []string{"a.tsv"}) {
		t.Errorf("scan set = %v, want [a.tsv]", scan)
	}

	// Unbounded interval reads everything.
	plan, err = PlanScan(ctx, env.sess, rel, PlanRequest{IndexName: "idx_user"})
	if err != nil {
		t.Fatalf("PlanScan failed: %v", err)
	}
	if plan.Skipped != 0 || plan.Total != 2 {
		t.Errorf("unbounded plan skipped %d of %d, want 0 of 2", plan.Skipped, plan.Total)
	}
}

func TestPlanScanRecordsEffectiveness(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.registerTable(t, "p1")
	env.writeFile(t, "p1/a.tsv", "1\tx\n2\ty\n")

	rel := env.relation(t)
	if err := CreateIndex(ctx, env.sess, rel, userIDIndex()); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	_, err := PlanScan(ctx, env.sess, rel, PlanRequest{
		IndexName:      "idx_user",
		Start:          []string{"50"},
		StartInclusive: true,
	})
	if err != nil {
		t.Fatalf("PlanScan failed: %v", err)
	}

	top := env.sess.PruneStats().TopIndexes(1)
	if len(top) != 1 || top[0].Index != "idx_user" {
		t.Fatalf("tracker top = %+v, want idx_user", top)
	}
	if top[0].Files != 1 || top[0].Skipped != 1 {
		t.Errorf("tracker counters = %+v, want 1 file 1 skipped", top[0])
	}
}

func TestPlanScanUnknownIndex(t *testing.T) {
	env := newEnv(t)
	env.registerTable(t, "p1")
	env.writeFile(t, "p1/a.tsv", "1\tx\n")

	_, err := PlanScan(context.Background(), env.sess, env.relation(t), PlanRequest{IndexName: "nope"})
	if !errors.HasCode(err, errors.CodeIndexNotFound) {
		t.Fatalf("expected INDEX_NOT_FOUND, got %v", err)
	}
}

func TestPlanScanBadBound(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.registerTable(t, "p1")
	env.writeFile(t, "p1/a.tsv", "1\tx\n")

	rel := env.relation(t)
	if err := CreateIndex(ctx, env.sess, rel, userIDIndex()); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	// Non-numeric literal for an INT64 key column.
	_, err := PlanScan(ctx, env.sess, rel, PlanRequest{
		IndexName: "idx_user",
		Start:     []string{"abc"},
	})
	if !errors.HasCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}

	// More bound values than key columns.
	_, err = PlanScan(ctx, env.sess, rel, PlanRequest{
		IndexName: "idx_user",
		Start:     []string{"1", "2"},
	})
	if !errors.HasCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestPlanScanSeesSegmentsAfterRefresh(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.registerTable(t, "p1")
	env.writeFile(t, "p1/a.tsv", "1\tx\n")

	rel := env.relation(t)
	if err := CreateIndex(ctx, env.sess, rel, userIDIndex()); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	// Warm the pruner's segment cache.
	if _, err := PlanScan(ctx, env.sess, rel, PlanRequest{IndexName: "idx_user"}); err != nil {
		t.Fatalf("PlanScan failed: %v", err)
	}

	env.writeFile(t, "p1/b.tsv", "200\tz\n")
	if err := RefreshIndex(ctx, env.sess, rel); err != nil {
		t.Fatalf("RefreshIndex failed: %v", err)
	}

	// The refresh-built segment must be consulted, so the new file is
	// prunable like the original one.
	plan, err := PlanScan(ctx, env.sess, env.relation(t), PlanRequest{
		IndexName:      "idx_user",
		Start:          []string{"150"},
		StartInclusive: true,
		End:            []string{"180"},
		EndInclusive:   true,
	})
	if err != nil {
		t.Fatalf("PlanScan failed: %v", err)
	}
	if plan.Total != 2 || plan.Skipped != 2 {
		t.Errorf("skipped %d of %d files after refresh, want 2 of 2", plan.Skipped, plan.Total)
	}
}
