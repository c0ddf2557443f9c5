package library

import (
	"fmt"
	"strings"
	"time"
)

// Folder is a predefined view over the library.
type Folder string

const (
	FolderAll       Folder = "all"
	FolderUploads   Folder = "uploads"
	FolderGenerated Folder = "generated"
	FolderToday     Folder = "today"
)

var Folders = []Folder{FolderAll, FolderUploads, FolderGenerated, FolderToday}

func ParseFolder(s string) (Folder, error) {
	if s == "" {
		return FolderAll, nil
	}
	for _, f := range Folders {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("library: unknown folder %q", s)
}

// Match reports whether the task belongs to the folder. Today is relative to
// the local midnight of now.
func (f Folder) Match(t Task, now time.Time) bool {
	switch f {
	case FolderUploads:
		return t.Kind == KindUpload
	case FolderGenerated:
		return t.Kind != KindUpload
	case FolderToday:
		y, m, d := now.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		return !t.CreatedAt.Before(midnight)
	}
	return true
}

// Filter returns the tasks in the folder whose title, prompt or tags contain
// the query, ignoring case. Order is preserved.
func Filter(tasks []Task, folder Folder, query string, now time.Time) []Task {
	q := strings.ToLower(strings.TrimSpace(query))
	filtered := []Task{}
	for _, t := range tasks {
		if !folder.Match(t, now) {
			continue
		}
		if q != "" && !matchQuery(t, q) {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

func matchQuery(t Task, q string) bool {
	for _, s := range []string{t.Title, t.Prompt, t.Tags} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// Counts returns the number of tasks in each folder.
func Counts(tasks []Task, now time.Time) map[Folder]int {
	counts := make(map[Folder]int, len(Folders))
	for _, f := range Folders {
		counts[f] = 0
	}
	for _, t := range tasks {
		for _, f := range Folders {
			if f.Match(t, now) {
				counts[f]++
			}
		}
	}
	return counts
}
