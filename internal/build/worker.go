package build

import (
	"context"
	"fmt"
	"path"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/meta"
	"github.com/tesseradb/tessera/internal/stats"
	"github.com/tesseradb/tessera/pkg/types"
)

// writeIndexFromRows is the per-task body: shared-nothing, it reads each
// assigned data file, streams its projected key columns through a fresh
// set of statistics summaries, and writes one segment per file under the
// job's staging prefix. It returns one Result per data file processed.
func (j *Job) writeIndexFromRows(ctx context.Context, task Task) ([]Result, error) {
	results := make([]Result, 0, len(task.Files))
	for _, file := range task.Files {
		filePath := path.Join(task.Dir, file)

		if j.opts.Append {
			done, err := j.fs.Exists(ctx, j.finalSegmentPath(task.Dir, file))
			if err != nil {
				return nil, errors.NewStorageError(errors.CodeReadFailed,
					fmt.Sprintf("checking segment for %s", filePath), err)
			}
			if done {
				continue
			}
		}

		content, err := j.fs.ReadFile(ctx, filePath)
		if err != nil {
			return nil, errors.NewStorageError(errors.CodeReadFailed,
				fmt.Sprintf("reading data file %s", filePath), err)
		}

		rowCount, segment, err := j.buildSegment(ctx, content)
		if err != nil {
			return nil, errors.NewBuildError(errors.CodeWriteFailed,
				fmt.Sprintf("building segment for %s", filePath), err)
		}

		if err := j.fs.WriteFileAtomic(ctx, j.tempSegmentPath(task.Dir, file), segment, true); err != nil {
			return nil, errors.NewStorageError(errors.CodeWriteFailed,
				fmt.Sprintf("staging segment for %s", filePath), err)
		}

		results = append(results, Result{
			Fingerprint: meta.Fingerprint(content),
			RowCount:    rowCount,
			DataFile:    file,
			Parent:      task.Dir,
		})
	}
	return results, nil
}

// buildSegment streams one data file's rows through fresh summaries and
// encodes the segment bytes.
func (j *Job) buildSegment(ctx context.Context, content []byte) (uint64, []byte, error) {
	summaries := make([]stats.Summary, 0, len(j.opts.StatsKinds))
	for _, kind := range j.opts.StatsKinds {
		s, err := stats.NewSummary(kind)
		if err != nil {
			return 0, nil, err
		}
		s.Reset(j.keySchema)
		summaries = append(summaries, s)
	}

	it, err := j.reader.ReadRows(ctx, content, j.opts.Ordinals)
	if err != nil {
		return 0, nil, err
	}

	var (
		rowCount  uint64
		keyStream []byte
	)
	for {
		row, ok, err := it.Next()
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			break
		}
		key := types.Key(row)
		for _, s := range summaries {
			s.Observe(key)
		}
		keyStream = key.AppendEncode(keyStream)
		rowCount++
	}

	return rowCount, index.EncodeSegment(rowCount, keyStream, summaries), nil
}
