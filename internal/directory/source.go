package directory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ErrSourceNotFound is returned when the configured address book does not
// exist. Callers may continue with an empty directory.
var ErrSourceNotFound = errors.New("directory: address book not found")

// Source produces the configured entries.
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
}

// SourceFor picks a file source by extension: YAML for .yaml/.yml, INI
// otherwise.
func SourceFor(path, section string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLSource{Path: path}
	default:
		return INISource{Path: path, Section: section}
	}
}

// INISource reads an address book like:
//
//	[users]
//	+14155551212 = alice@example.com
type INISource struct {
	Path    string
	Section string
}

// Load implements Source.
func (s INISource) Load(ctx context.Context) ([]Entry, error) {
	if err := statSource(s.Path); err != nil {
		return nil, err
	}
	file, err := ini.Load(s.Path)
	if err != nil {
		return nil, fmt.Errorf("directory: parse %s: %w", s.Path, err)
	}
	name := s.Section
	if name == "" {
		name = "users"
	}
	if !file.HasSection(name) {
		return nil, fmt.Errorf("%w: %s has no [%s] section", ErrSourceNotFound, s.Path, name)
	}
	keys := file.Section(name).Keys()
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Entry{Phone: key.Name(), Email: key.Value()})
	}
	return entries, nil
}

// YAMLSource reads an address book like:
//
//	users:
//	  "+14155551212": alice@example.com
type YAMLSource struct {
	Path string
}

type yamlAddressBook struct {
	Users map[string]string `yaml:"users"`
}

// Load implements Source. Entries come back ordered by phone key.
func (s YAMLSource) Load(ctx context.Context) ([]Entry, error) {
	if err := statSource(s.Path); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("directory: read %s: %w", s.Path, err)
	}
	var book yamlAddressBook
	if err := yaml.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("directory: parse %s: %w", s.Path, err)
	}
	entries := make([]Entry, 0, len(book.Users))
	for phone, email := range book.Users {
		entries = append(entries, Entry{Phone: phone, Email: email})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Phone < entries[j].Phone })
	return entries, nil
}

func statSource(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrSourceNotFound, path)
		}
		return fmt.Errorf("directory: stat %s: %w", path, err)
	}
	return nil
}
