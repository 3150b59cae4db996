// Package directory is the read-only view of matches, teams and rosters the
// scoring service consults.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/crease/internal/domain/model"
)

// Sentinel kinds for directory errors.
var (
	ErrMatchNotFound = errors.New("match not found")
	ErrInvalidRoster = errors.New("invalid roster")
)

// Directory resolves a match to its teams and rosters.
type Directory interface {
	Match(ctx context.Context, matchID string) (model.MatchInfo, error)
}

// Static is a Directory backed by a fixed set of matches.
type Static struct {
	matches map[string]model.MatchInfo
}

// roster is the layout of a roster file.
type roster struct {
	Matches []model.MatchInfo `koanf:"matches"`
}

// New returns a directory holding matches.
func New(matches ...model.MatchInfo) (*Static, error) {
	d := &Static{matches: make(map[string]model.MatchInfo, len(matches))}
	for _, m := range matches {
		if err := validate(m); err != nil {
			return nil, err
		}
		if _, dup := d.matches[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate match %q", ErrInvalidRoster, m.ID)
		}
		d.matches[m.ID] = m
	}
	return d, nil
}

// Load reads a YAML roster file of the form
//
//	matches:
//	  - id: m1
//	    team_a: {id: t1, name: ..., players: [{id: p1, name: ...}]}
//	    team_b: {...}
//
// An empty path yields an empty directory.
func Load(path string) (*Static, error) {
	if strings.TrimSpace(path) == "" {
		return New()
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load roster %s: %w", path, err)
	}
	var r roster
	if err := k.UnmarshalWithConf("", &r, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRoster, path, err)
	}
	return New(r.Matches...)
}

func validate(m model.MatchInfo) error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: match without id", ErrInvalidRoster)
	}
	if m.TeamA.ID == "" || m.TeamB.ID == "" {
		return fmt.Errorf("%w: match %q needs two team ids", ErrInvalidRoster, m.ID)
	}
	if m.TeamA.ID == m.TeamB.ID {
		return fmt.Errorf("%w: match %q has the same team twice", ErrInvalidRoster, m.ID)
	}
	return nil
}

// Match implements Directory.
func (d *Static) Match(_ context.Context, matchID string) (model.MatchInfo, error) {
	m, ok := d.matches[matchID]
	if !ok {
		return model.MatchInfo{}, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return m, nil
}

// IDs lists the known match ids in order.
func (d *Static) IDs() []string {
	ids := make([]string, 0, len(d.matches))
	for id := range d.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of matches.
func (d *Static) Len() int {
	return len(d.matches)
}
