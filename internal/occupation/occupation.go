package occupation

import (
	"fmt"
	"sort"
)

// SkillKeys is the fixed future-skill schema produced by the data preparation
// pipeline. Vector order follows this list.
var SkillKeys = []string{"FS1", "FS2", "FS3", "FS4", "FS5", "FS6", "FS7", "FS8", "FS9", "FS10"}

// Dimensions is the number of future-skill dimensions in a profile vector.
var Dimensions = len(SkillKeys)

// ProfileVector holds future-skill scores, one per entry of SkillKeys.
// Scores are in the 0-100 range. Two vectors are comparable only when they
// were built on the same schema.
type ProfileVector []float64

// ToMap renders the vector keyed by skill name for API responses.
func (p ProfileVector) ToMap() map[string]float64 {
	m := make(map[string]float64, len(p))
	for i, score := range p {
		if i >= len(SkillKeys) {
			break
		}
		m[SkillKeys[i]] = score
	}
	return m
}

// VectorFromMap builds a profile vector from a skill-keyed map. Every skill
// key must be present.
func VectorFromMap(scores map[string]float64) (ProfileVector, error) {
	vector := make(ProfileVector, 0, Dimensions)
	for _, key := range SkillKeys {
		score, ok := scores[key]
		if !ok {
			return nil, fmt.Errorf("profile is missing skill dimension %s", key)
		}
		vector = append(vector, score)
	}
	return vector, nil
}

// Occupation is a single catalog entry. Immutable once loaded.
type Occupation struct {
	URI     string
	Sector  string
	Profile ProfileVector
}

// Set is a mutable working subset of the catalog used during filtering.
// The zero value is an empty set.
type Set struct {
	Items []*Occupation
}

func (s *Set) Len() int {
	return len(s.Items)
}

func (s *Set) FindByURI(uri string) *Occupation {
	for _, occ := range s.Items {
		if occ.URI == uri {
			return occ
		}
	}
	return nil
}

// URIs returns the identifiers of all occupations in the set.
func (s *Set) URIs() []string {
	uris := make([]string, 0, len(s.Items))
	for _, occ := range s.Items {
		uris = append(uris, occ.URI)
	}
	return uris
}

// Vectors returns the profile vectors keyed by URI, the shape consumed by the
// distance engine.
func (s *Set) Vectors() map[string]ProfileVector {
	vectors := make(map[string]ProfileVector, len(s.Items))
	for _, occ := range s.Items {
		vectors[occ.URI] = occ.Profile
	}
	return vectors
}

// Clone returns a shallow copy. Occupations themselves are shared and never
// mutated.
func (s *Set) Clone() *Set {
	items := make([]*Occupation, len(s.Items))
	copy(items, s.Items)
	return &Set{Items: items}
}

// Exclude removes occupations whose URI is in targets and returns the
// removed URIs.
func (s *Set) Exclude(targets []string) []string {
	var excluded []string
	for _, target := range targets {
		for idx, occ := range s.Items {
			if occ.URI == target {
				s.RemoveByIndex(idx)
				excluded = append(excluded, occ.URI)
				break
			}
		}
	}
	return excluded
}

// KeepSectors drops every occupation whose sector is not in sectors and
// returns the removed URIs. An empty sector list keeps everything.
func (s *Set) KeepSectors(sectors []string) []string {
	if len(sectors) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(sectors))
	for _, sector := range sectors {
		allowed[sector] = struct{}{}
	}

	var excluded []string
	kept := s.Items[:0]
	for _, occ := range s.Items {
		if _, ok := allowed[occ.Sector]; ok {
			kept = append(kept, occ)
			continue
		}
		excluded = append(excluded, occ.URI)
	}
	s.Items = kept
	return excluded
}

// RemoveByIndex removes an occupation from the set by index. Does not
// preserve order.
func (s *Set) RemoveByIndex(idx int) {
	s.Items[idx] = s.Items[len(s.Items)-1]
	s.Items = s.Items[:len(s.Items)-1]
}

// SortByURI orders the set by identifier for reproducible iteration.
func (s *Set) SortByURI() {
	sort.Slice(s.Items, func(i, j int) bool { return s.Items[i].URI < s.Items[j].URI })
}
