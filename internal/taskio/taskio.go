// Package taskio loads generation tasks from disk. A task lives in a
// directory: prompt.json describes the job, and any docs/, rtl/ and verif/
// subdirectories provide context files for the prompts.
package taskio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hdlforge/internal/logging"
	"hdlforge/internal/state"
)

// contextDirs are scanned for prompt context, in priority order.
var contextDirs = []string{"docs", "rtl", "verif"}

const (
	maxContextFileSize = 100 * 1024
	maxScannedFiles    = 50
)

// taskFile is the on-disk prompt.json shape.
type taskFile struct {
	Prompt     string `json:"prompt"`
	TargetFile string `json:"target_file"`
}

// Load reads a task directory into a state.Task. A missing target_file
// defaults to generated.v in the task directory.
func Load(dir string) (state.Task, error) {
	data, err := os.ReadFile(filepath.Join(dir, "prompt.json"))
	if err != nil {
		return state.Task{}, fmt.Errorf("read prompt.json: %w", err)
	}

	var tf taskFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return state.Task{}, fmt.Errorf("parse prompt.json: %w", err)
	}
	if strings.TrimSpace(tf.Prompt) == "" {
		return state.Task{}, fmt.Errorf("prompt.json has no prompt")
	}

	target := tf.TargetFile
	if target == "" {
		target = "generated.v"
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}

	return state.Task{
		Description:  tf.Prompt,
		ContextFiles: ScanContext(dir),
		TargetFile:   target,
	}, nil
}

// ScanContext collects readable text files from the task's context
// directories. Paths in the returned map are relative to the task directory
// so the prompt builder's priority rules apply.
func ScanContext(dir string) map[string]string {
	log := logging.Get(logging.CategorySession)
	files := make(map[string]string)

	for _, sub := range contextDirs {
		root := filepath.Join(dir, sub)
		filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || len(files) >= maxScannedFiles {
				return nil
			}
			if info.Size() > maxContextFileSize {
				log.Debug("skipping oversized context file %s", path)
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return nil
			}
			files[filepath.ToSlash(rel)] = string(data)
			return nil
		})
	}

	if len(files) == 0 {
		return nil
	}
	return files
}
