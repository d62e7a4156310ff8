// Package esco resolves occupation URIs to human-readable metadata from the
// ESCO reference files. It is consulted only after a recommendation has been
// produced.
package esco

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxSkills caps the skill list attached to resolved occupations.
const maxSkills = 10

// Details is the enriched metadata for one occupation.
type Details struct {
	URI         string
	Label       string
	Description string
	Skills      []string
}

// Resolver looks up occupation metadata by URI.
type Resolver interface {
	Resolve(uri string) (*Details, error)
}

type occupationRow struct {
	label       string
	description string
}

// Store is a CSV-backed Resolver over the ESCO occupations, skills,
// occupation-skill relation and occupation hierarchy files. Read-only after
// construction, safe for concurrent use.
type Store struct {
	occupations map[string]occupationRow
	skillLabels map[string]string
	occSkills   map[string][]string
	broader     map[string][]string
	narrower    map[string][]string
}

// NewStore loads the ESCO reference files. Every path but the occupations one
// may be empty: without skills files resolved occupations carry no skill
// list, without the occupation relations file the hierarchy lookups return
// nothing.
func NewStore(occupationsPath, skillsPath, skillRelationsPath, occupationRelationsPath string) (*Store, error) {
	store := &Store{
		occupations: make(map[string]occupationRow),
		skillLabels: make(map[string]string),
		occSkills:   make(map[string][]string),
		broader:     make(map[string][]string),
		narrower:    make(map[string][]string),
	}

	if err := store.loadOccupations(occupationsPath); err != nil {
		return nil, fmt.Errorf("occupations %s: %w", occupationsPath, err)
	}

	if skillsPath != "" {
		if err := store.loadSkills(skillsPath); err != nil {
			return nil, fmt.Errorf("skills %s: %w", skillsPath, err)
		}
	}

	if skillRelationsPath != "" {
		if err := store.loadSkillRelations(skillRelationsPath); err != nil {
			return nil, fmt.Errorf("skill relations %s: %w", skillRelationsPath, err)
		}
	}

	if occupationRelationsPath != "" {
		if err := store.loadOccupationRelations(occupationRelationsPath); err != nil {
			return nil, fmt.Errorf("occupation relations %s: %w", occupationRelationsPath, err)
		}
	}

	return store, nil
}

// Resolve returns the metadata for the given occupation URI.
func (s *Store) Resolve(uri string) (*Details, error) {
	row, ok := s.occupations[uri]
	if !ok {
		return nil, fmt.Errorf("occupation %s not found", uri)
	}

	var skills []string
	for _, skillURI := range s.occSkills[uri] {
		label, ok := s.skillLabels[skillURI]
		if !ok {
			continue
		}
		skills = append(skills, label)
		if len(skills) == maxSkills {
			break
		}
	}

	return &Details{
		URI:         uri,
		Label:       row.label,
		Description: row.description,
		Skills:      skills,
	}, nil
}

// Broader returns the direct parents of the occupation in the ESCO
// occupation pillar.
func (s *Store) Broader(uri string) []string {
	return s.broader[uri]
}

// Narrower returns every occupation below uri in the occupation pillar,
// children of children included.
func (s *Store) Narrower(uri string) []string {
	var result []string
	seen := map[string]struct{}{uri: {}}

	queue := append([]string(nil), s.narrower[uri]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, ok := seen[next]; ok {
			continue
		}
		seen[next] = struct{}{}
		result = append(result, next)
		queue = append(queue, s.narrower[next]...)
	}
	return result
}

func (s *Store) loadOccupations(path string) error {
	return eachRecord(path, []string{"conceptUri", "preferredLabel"}, func(get func(string) string) {
		s.occupations[get("conceptUri")] = occupationRow{
			label:       get("preferredLabel"),
			description: get("description"),
		}
	})
}

func (s *Store) loadSkills(path string) error {
	return eachRecord(path, []string{"conceptUri", "preferredLabel"}, func(get func(string) string) {
		s.skillLabels[get("conceptUri")] = get("preferredLabel")
	})
}

func (s *Store) loadSkillRelations(path string) error {
	return eachRecord(path, []string{"occupationUri", "skillUri"}, func(get func(string) string) {
		// The relation file mixes essential and optional skills; only the
		// essential ones are shown to the user.
		if relation := get("relationType"); relation != "" && relation != "essential" {
			return
		}
		occ := get("occupationUri")
		s.occSkills[occ] = append(s.occSkills[occ], get("skillUri"))
	})
}

// loadOccupationRelations reads the broaderRelationsOccPillar table, one
// child/parent pair per row.
func (s *Store) loadOccupationRelations(path string) error {
	return eachRecord(path, []string{"conceptUri", "broaderUri"}, func(get func(string) string) {
		child := get("conceptUri")
		parent := get("broaderUri")
		if child == "" || parent == "" {
			return
		}
		s.broader[child] = append(s.broader[child], parent)
		s.narrower[parent] = append(s.narrower[parent], child)
	})
}

// eachRecord streams a headered CSV file, handing each record to fn via a
// column accessor. Columns listed in required must be present; get returns
// "" for any other missing column.
func eachRecord(path string, required []string, fn func(get func(string) string)) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.TrimSpace(name)] = idx
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return fmt.Errorf("missing column %s", name)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		fn(func(column string) string {
			idx, ok := columns[column]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		})
	}
}
