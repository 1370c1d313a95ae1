package onnxmodel

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// labelCandidates are tried in order when no labels file is configured.
var labelCandidates = []string{"labels.txt", "synset.txt", "imagenet_classes.txt", "config.json"}

// resolveLabels loads labels from dir/name or the first candidate present.
func resolveLabels(dir, name string) ([]string, error) {
	if name != "" {
		return loadLabels(filepath.Join(dir, name))
	}
	for _, c := range labelCandidates {
		p, err := findFile(dir, func(n string) bool { return n == c })
		if err == nil {
			return loadLabels(p)
		}
	}
	return nil, fmt.Errorf("no labels file under %s (tried %s)", dir, strings.Join(labelCandidates, ", "))
}

// loadLabels reads a labels file. JSON files are read as a Hugging Face
// config (id2label), anything else as one label per line.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	var labels []string
	if filepath.Ext(path) == ".json" {
		labels, err = parseID2Label(data)
	} else {
		labels = parseLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// parseID2Label reads {"id2label": {"0": "tench, Tinca tinca", ...}}.
func parseID2Label(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json")
	}
	m := gjson.GetBytes(data, "id2label")
	if !m.IsObject() {
		return nil, errors.New("missing id2label object")
	}

	byIndex := map[int]string{}
	maxIdx := -1
	var bad error
	m.ForEach(func(k, v gjson.Result) bool {
		i, err := strconv.Atoi(k.String())
		if err != nil || i < 0 {
			bad = fmt.Errorf("bad label index %q", k.String())
			return false
		}
		byIndex[i] = v.String()
		maxIdx = max(maxIdx, i)
		return true
	})
	if bad != nil {
		return nil, bad
	}

	labels := make([]string, maxIdx+1)
	for i, l := range byIndex {
		labels[i] = l
	}
	return labels, nil
}

// parseLines reads one label per line. Leading synset ids
// ("n01440764 tench") are stripped.
func parseLines(data []byte) []string {
	var labels []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if id, rest, ok := strings.Cut(line, " "); ok && len(id) == 9 && id[0] == 'n' {
			if _, err := strconv.Atoi(id[1:]); err == nil {
				line = strings.TrimSpace(rest)
			}
		}
		labels = append(labels, line)
	}
	return labels
}

// findFile returns the first file under dir (depth-first, lexical order)
// whose base name satisfies match.
func findFile(dir string, match func(name string) bool) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && match(d.Name()) {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fs.ErrNotExist
	}
	return found, nil
}
