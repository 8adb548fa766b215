package knowledge

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// RecordKind classifies a knowledge record once at load time so the
// detail projection never has to probe raw fields again.
type RecordKind int

const (
	KindOther RecordKind = iota
	KindSelf
	KindWork
	KindPerson
	KindPlace
)

const (
	relationSelf = "本人"
	typeWork     = "作品"
	typePerson   = "人物"
	typePlace    = "地点"
)

type Record struct {
	Kind           RecordKind
	Name           string
	RelationToPoet string
	Type           string
	Dynasty        string
	BirthYear      *float64
	DeathYear      *float64
	Title          string
	Works          string
	Raw            map[string]any
}

// Entry holds every knowledge record for one poet. Immutable after load.
type Entry struct {
	Poet    string
	Records []Record
}

type Store struct {
	entries map[string]*Entry
	names   []string
}

// Load scans dir for files named <poet><suffix> and parses each as a JSON
// array of records. A file that fails to parse is logged and skipped.
func Load(dir, suffix string) (*Store, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read knowledge dir failed: %w", err)
	}

	store := &Store{entries: make(map[string]*Entry)}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), suffix) {
			continue
		}
		poet := strings.TrimSuffix(file.Name(), suffix)
		entry, err := loadEntry(filepath.Join(dir, file.Name()), poet)
		if err != nil {
			log.Printf("load poet data for %s failed: %v", poet, err)
			continue
		}
		store.entries[poet] = entry
		store.names = append(store.names, poet)
	}
	sort.Strings(store.names)

	log.Printf("knowledge store loaded %d poets", len(store.names))
	return store, nil
}

func (s *Store) List() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

func (s *Store) Get(name string) (*Entry, bool) {
	entry, ok := s.entries[name]
	return entry, ok
}

func (s *Store) Len() int {
	return len(s.names)
}

func loadEntry(path, poet string) (*Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file failed: %w", err)
	}

	var items []map[string]any
	if err := json.Unmarshal(sanitizeNonFinite(raw), &items); err != nil {
		return nil, fmt.Errorf("decode records failed: %w", err)
	}

	entry := &Entry{Poet: poet, Records: make([]Record, 0, len(items))}
	for _, item := range items {
		entry.Records = append(entry.Records, classify(item))
	}
	return entry, nil
}

// Pandas-generated files may carry bare NaN/Infinity tokens, which the
// JSON grammar forbids. Rewrite them to null before decoding.
var nonFiniteToken = regexp.MustCompile(`([:\[,]\s*)(?:-?Infinity|NaN)`)

func sanitizeNonFinite(raw []byte) []byte {
	return nonFiniteToken.ReplaceAll(raw, []byte("${1}null"))
}

func classify(item map[string]any) Record {
	record := Record{
		Name:           stringField(item, "name"),
		RelationToPoet: stringField(item, "relation_to_poet"),
		Type:           stringField(item, "type"),
		Dynasty:        stringField(item, "dynasty"),
		BirthYear:      floatField(item, "birth_year"),
		DeathYear:      floatField(item, "death_year"),
		Title:          stringField(item, "title"),
		Works:          stringField(item, "works"),
		Raw:            item,
	}

	switch {
	case record.RelationToPoet == relationSelf:
		record.Kind = KindSelf
	case record.Type == typeWork:
		record.Kind = KindWork
	case record.Type == typePerson:
		record.Kind = KindPerson
	case record.Type == typePlace:
		record.Kind = KindPlace
	}
	return record
}

func stringField(item map[string]any, key string) string {
	value, _ := item[key].(string)
	return value
}

func floatField(item map[string]any, key string) *float64 {
	value, ok := item[key].(float64)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}
