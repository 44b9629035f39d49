package rewrite

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/rewrite"
)

type task struct {
	input  string
	output string
}

type taskResult int

const (
	resultRewritten taskResult = iota
	resultUnchanged
	resultFailed
)

// collectTasks lists HTML files under target. When target is a directory,
// output files keep their path relative to target under outputDir. Empty
// outputDir means rewriting in place.
func collectTasks(target, outputDir string) ([]task, error) {
	stat, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %s", target, err)
	}

	outputOf := func(relPath string) string {
		if outputDir == "" {
			return filepath.Join(target, relPath)
		}
		return filepath.Join(outputDir, relPath)
	}

	if stat.Mode().IsRegular() {
		output := target
		if outputDir != "" {
			output = filepath.Join(outputDir, filepath.Base(target))
		}
		return []task{{input: target, output: output}}, nil
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("target path does not point to a directory or file: %s", target)
	}

	tasks := []task{}
	err = filepath.WalkDir(target, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() || !common.IsHTMLFile(path) {
			return nil
		}

		relPath, err := filepath.Rel(target, path)
		if err != nil {
			return err
		}

		tasks = append(tasks, task{input: path, output: outputOf(relPath)})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %s", target, err)
	}

	return tasks, nil
}

// rewriteFile rewrites one HTML file. Output file is not touched when it is the
// input file and nothing changed.
func rewriteFile(ctx context.Context, rewriter *rewrite.Rewriter, t task) (taskResult, error) {
	data, err := os.ReadFile(t.input)
	if err != nil {
		return resultFailed, fmt.Errorf("failed to read %s: %s", t.input, err)
	}

	source := string(data)
	output := rewriter.Rewrite(ctx, source)

	result := resultRewritten
	if output == source {
		result = resultUnchanged
		if t.input == t.output {
			return result, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(t.output), 0o755); err != nil {
		return resultFailed, fmt.Errorf("failed to create output directory for %s: %s", t.output, err)
	}

	if err := os.WriteFile(t.output, []byte(output), 0o644); err != nil {
		return resultFailed, fmt.Errorf("failed to write %s: %s", t.output, err)
	}

	return result, nil
}
