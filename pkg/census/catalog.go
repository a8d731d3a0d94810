package census

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Variable is one catalog entry for a dataset variable.
type Variable struct {
	Name      string // code as published, e.g. "B06011_001E"
	Label     string
	Concept   string
	Group     string
	Geography string // smallest published geography, where the dataset reports one
}

// Catalog holds the variable dictionary for one (year, dataset) pair.
type Catalog struct {
	Year    int
	Dataset string

	vars  map[string]Variable
	names []string // sorted for deterministic iteration
}

// catalogResponse mirrors the variables.json document.
type catalogResponse struct {
	Variables map[string]catalogEntry `json:"variables"`
}

type catalogEntry struct {
	Label     string `json:"label"`
	Concept   string `json:"concept"`
	Group     string `json:"group"`
	Geography string `json:"geography"`
}

// Variables loads the variable catalog for a year and dataset, consulting
// the in-memory cache, then the persistent store, then the network. Each
// catalog is fetched at most once per client. Concurrent callers for the
// same key may race the first fetch; entries are immutable so
// last-writer-wins is safe.
func (c *client) Variables(ctx context.Context, year int, dataset string) (*Catalog, error) {
	key := fmt.Sprintf("%d/%s", year, dataset)

	c.mu.RLock()
	cached, ok := c.catalogs[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if c.catalogStore != nil {
		payload, ok, err := c.catalogStore.GetCatalog(ctx, year, dataset)
		if err != nil {
			zap.L().Warn("catalog store read failed", zap.String("catalog", key), zap.Error(err))
		} else if ok {
			cat, parseErr := parseCatalog(year, dataset, payload)
			if parseErr == nil {
				zap.L().Debug("loaded variable catalog from store",
					zap.String("catalog", key),
					zap.Int("variables", cat.Len()),
				)
				return c.memoize(key, cat), nil
			}
			zap.L().Warn("stored catalog unreadable, refetching", zap.String("catalog", key), zap.Error(parseErr))
		}
	}

	rawURL := fmt.Sprintf("%s/%d/%s/variables.json", c.baseURL, year, dataset)
	body, err := c.doGet(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(ErrCatalogUnavailable, "census: catalog %s: %v", key, err)
	}

	cat, err := parseCatalog(year, dataset, body)
	if err != nil {
		return nil, eris.Wrapf(ErrCatalogUnavailable, "census: catalog %s: %v", key, err)
	}

	if c.catalogStore != nil {
		if err := c.catalogStore.PutCatalog(ctx, year, dataset, body, c.catalogTTL); err != nil {
			zap.L().Warn("catalog store write failed", zap.String("catalog", key), zap.Error(err))
		}
	}

	zap.L().Debug("loaded variable catalog",
		zap.String("catalog", key),
		zap.Int("variables", cat.Len()),
	)
	return c.memoize(key, cat), nil
}

// memoize installs a catalog in the in-memory cache, keeping the first entry
// when two fetches race.
func (c *client) memoize(key string, cat *Catalog) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.catalogs[key]; ok {
		return existing
	}
	c.catalogs[key] = cat
	return cat
}

// parseCatalog builds a Catalog from a raw variables.json document.
func parseCatalog(year int, dataset string, payload []byte) (*Catalog, error) {
	var resp catalogResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, eris.Wrap(err, "parse")
	}
	if len(resp.Variables) == 0 {
		return nil, eris.New("no variables in document")
	}

	cat := &Catalog{
		Year:    year,
		Dataset: dataset,
		vars:    make(map[string]Variable, len(resp.Variables)),
	}
	for name, entry := range resp.Variables {
		// for/in/ucgid are query predicates, not data variables.
		if name == "for" || name == "in" || name == "ucgid" {
			continue
		}
		cat.vars[name] = Variable{
			Name:      name,
			Label:     entry.Label,
			Concept:   entry.Concept,
			Group:     entry.Group,
			Geography: entry.Geography,
		}
		cat.names = append(cat.names, name)
	}
	sort.Strings(cat.names)
	return cat, nil
}

// Len returns the number of variables in the catalog.
func (c *Catalog) Len() int {
	return len(c.names)
}

// All returns every variable, sorted by code.
func (c *Catalog) All() []Variable {
	out := make([]Variable, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.vars[name])
	}
	return out
}

// Lookup returns the variable for a code. A bare table cell such as
// "B06011_001" resolves to its estimate entry "B06011_001E".
func (c *Catalog) Lookup(code string) (Variable, error) {
	if v, ok := c.vars[code]; ok {
		return v, nil
	}
	if v, ok := c.vars[code+"E"]; ok {
		return v, nil
	}
	return Variable{}, &UnknownVariableError{Code: code}
}

// Search returns variables whose label or concept contains every
// whitespace-separated token of query, case-insensitively, sorted by code.
func (c *Catalog) Search(query string) []Variable {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	var out []Variable
	for _, name := range c.names {
		v := c.vars[name]
		haystack := strings.ToLower(v.Label + " " + v.Concept)
		matched := true
		for _, tok := range tokens {
			if !strings.Contains(haystack, tok) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, v)
		}
	}
	return out
}

// ForGeography returns variables published at the given geography level.
// Datasets that do not annotate variables with a geography return the full
// catalog, since no filter can be applied.
func (c *Catalog) ForGeography(level string) []Variable {
	level = strings.ToLower(strings.TrimSpace(level))

	annotated := false
	for _, name := range c.names {
		if c.vars[name].Geography != "" {
			annotated = true
			break
		}
	}
	if !annotated {
		zap.L().Debug("catalog has no geography annotations, returning all variables",
			zap.String("dataset", c.Dataset),
		)
		return c.All()
	}

	var out []Variable
	for _, name := range c.names {
		v := c.vars[name]
		if strings.EqualFold(v.Geography, level) {
			out = append(out, v)
		}
	}
	return out
}
