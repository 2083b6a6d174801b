package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"campus-connect/errors"
)

//go:embed denylist/*.txt
var denylistFolder embed.FS

// DenylistData carries the loaded entries plus metadata for logging.
type DenylistData struct {
	Entries   []string
	Languages []string
}

// LoadDenylist parses the embedded per-language denylist files into a unique
// list of entries. Filenames double as language tags (e.g. "en.txt" -> "en").
func LoadDenylist() (*DenylistData, error) {
	entries, err := fs.ReadDir(denylistFolder, "denylist")
	if err != nil {
		return nil, err
	}

	var languages []string
	unique := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := denylistFolder.ReadFile("denylist/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings correctly
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(unique) == 0 {
		return nil, errors.ErrEmptyDenylist
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	return &DenylistData{Entries: words, Languages: languages}, nil
}
