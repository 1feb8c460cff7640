// Package cleanup implements pruning of old weekly report files.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// reportNameLayout is the format used for report file names.
const reportNameLayout = "week-2006-01-02.md"

// PruneByAge removes reports whose week started more than maxAgeDays ago.
// If dryRun is true, no files are deleted; the function only returns the
// names that would be removed. Returns the list of pruned file names.
func PruneByAge(reportsDir string, maxAgeDays int, dryRun bool) ([]string, error) {
	names, err := reportFiles(reportsDir)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	var pruned []string

	for _, name := range names {
		t, _ := time.ParseInLocation(reportNameLayout, name, time.Local)
		if !t.Before(cutoff) {
			continue
		}
		if !dryRun {
			if rmErr := os.Remove(filepath.Join(reportsDir, name)); rmErr != nil {
				return pruned, fmt.Errorf("removing %s: %w", name, rmErr)
			}
		}
		pruned = append(pruned, name)
	}

	return pruned, nil
}

// PruneKeepRecent removes all reports except the most recent keep. If
// dryRun is true, no files are deleted. Returns the list of pruned file
// names.
func PruneKeepRecent(reportsDir string, keep int, dryRun bool) ([]string, error) {
	names, err := reportFiles(reportsDir)
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}

	var pruned []string
	for _, name := range names[:len(names)-keep] {
		if !dryRun {
			if rmErr := os.Remove(filepath.Join(reportsDir, name)); rmErr != nil {
				return pruned, fmt.Errorf("removing %s: %w", name, rmErr)
			}
		}
		pruned = append(pruned, name)
	}

	return pruned, nil
}

// reportFiles lists report file names in chronological order. Other files
// are ignored and a missing directory yields nothing.
func reportFiles(reportsDir string) ([]string, error) {
	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading reports directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, parseErr := time.Parse(reportNameLayout, entry.Name()); parseErr == nil {
			names = append(names, entry.Name())
		}
	}

	// Date-stamped names sort chronologically.
	sort.Strings(names)
	return names, nil
}
