package occupation

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	uriColumn    = "conceptUri"
	sectorColumn = "sector"
)

// Catalog is the read-only occupation profile table produced by the offline
// data preparation pipeline. It is loaded once at startup and shared across
// requests without locking; nothing mutates it after load.
type Catalog struct {
	byURI map[string]*Occupation
}

// NewCatalog builds a catalog from the given occupations. Duplicate URIs are
// rejected.
func NewCatalog(items []*Occupation) (*Catalog, error) {
	byURI := make(map[string]*Occupation, len(items))
	for _, occ := range items {
		if _, ok := byURI[occ.URI]; ok {
			return nil, fmt.Errorf("duplicate occupation uri %s", occ.URI)
		}
		byURI[occ.URI] = occ
	}
	return &Catalog{byURI: byURI}, nil
}

func (c *Catalog) Len() int {
	return len(c.byURI)
}

// FindByURI returns the occupation for the given URI or nil.
func (c *Catalog) FindByURI(uri string) *Occupation {
	return c.byURI[uri]
}

// Profiles returns URI -> profile vector for the requested identifiers, or
// for the whole catalog when uris is nil. A missing identifier is an error;
// there is no recovery path for partial tables downstream.
func (c *Catalog) Profiles(uris []string) (map[string]ProfileVector, error) {
	if uris == nil {
		profiles := make(map[string]ProfileVector, len(c.byURI))
		for uri, occ := range c.byURI {
			profiles[uri] = occ.Profile
		}
		return profiles, nil
	}

	profiles := make(map[string]ProfileVector, len(uris))
	for _, uri := range uris {
		occ, ok := c.byURI[uri]
		if !ok {
			return nil, fmt.Errorf("occupation %s not found in catalog", uri)
		}
		profiles[uri] = occ.Profile
	}
	return profiles, nil
}

// All returns every occupation as a working set, ordered by URI.
func (c *Catalog) All() *Set {
	items := make([]*Occupation, 0, len(c.byURI))
	for _, occ := range c.byURI {
		items = append(items, occ)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].URI < items[j].URI })
	return &Set{Items: items}
}

// LoadCatalog reads the transformed occupation profile table from a CSV file
// with a conceptUri column, one column per skill key and a sector column.
// Every profile cell must be numeric: imputation happens upstream, a gap here
// is a data defect.
func LoadCatalog(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	catalog, err := ReadCatalog(file)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return catalog, nil
}

// ReadCatalog parses the profile table from r.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.TrimSpace(name)] = idx
	}

	for _, required := range append([]string{uriColumn, sectorColumn}, SkillKeys...) {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing column %s", required)
		}
	}

	var items []*Occupation
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		occ := &Occupation{
			URI:     strings.TrimSpace(record[columns[uriColumn]]),
			Sector:  strings.TrimSpace(record[columns[sectorColumn]]),
			Profile: make(ProfileVector, 0, Dimensions),
		}
		if occ.URI == "" {
			return nil, fmt.Errorf("line %d: empty conceptUri", line)
		}

		for _, key := range SkillKeys {
			raw := strings.TrimSpace(record[columns[key]])
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s is not numeric: %q", line, key, raw)
			}
			occ.Profile = append(occ.Profile, score)
		}

		items = append(items, occ)
	}

	return NewCatalog(items)
}
