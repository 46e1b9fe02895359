package story

import (
	"encoding/json"
	"errors"
	"sort"
)

var (
	ErrEmptyCluster       = errors.New("cluster has no members")
	ErrCanonicalNotMember = errors.New("canonical record is not a cluster member")
)

// Cluster is a non-empty group of near-duplicate records with one canonical
// member.
type Cluster struct {
	members   []Record
	canonical int
}

// NewCluster copies members and locates canonical among them.
func NewCluster(members []Record, canonical Record) (Cluster, error) {
	if len(members) == 0 {
		return Cluster{}, ErrEmptyCluster
	}
	for i, m := range members {
		if m.sameAs(canonical) {
			return Cluster{
				members:   append([]Record(nil), members...),
				canonical: i,
			}, nil
		}
	}
	return Cluster{}, ErrCanonicalNotMember
}

func (c Cluster) Canonical() Record {
	return c.members[c.canonical]
}

func (c Cluster) Len() int {
	return len(c.members)
}

// Members returns a copy of the members in grouping order.
func (c Cluster) Members() []Record {
	return append([]Record(nil), c.members...)
}

// Timeline returns the canonical first, then the other members from newest
// to oldest.
func (c Cluster) Timeline() []Record {
	out := make([]Record, 0, len(c.members))
	out = append(out, c.Canonical())
	rest := make([]Record, 0, len(c.members)-1)
	for i, m := range c.members {
		if i != c.canonical {
			rest = append(rest, m)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].EffectiveTime().After(rest[j].EffectiveTime())
	})
	return append(out, rest...)
}

// Domains returns the distinct member domains in timeline order.
func (c Cluster) Domains() []string {
	seen := make(map[string]struct{}, len(c.members))
	var out []string
	for _, m := range c.Timeline() {
		if m.Domain == "" {
			continue
		}
		if _, ok := seen[m.Domain]; ok {
			continue
		}
		seen[m.Domain] = struct{}{}
		out = append(out, m.Domain)
	}
	return out
}

type clusterJSON struct {
	Canonical Record   `json:"canonical"`
	Size      int      `json:"size"`
	Domains   []string `json:"domains,omitempty"`
	Members   []Record `json:"members"`
}

func (c Cluster) MarshalJSON() ([]byte, error) {
	if len(c.members) == 0 {
		return nil, ErrEmptyCluster
	}
	return json.Marshal(clusterJSON{
		Canonical: c.Canonical(),
		Size:      c.Len(),
		Domains:   c.Domains(),
		Members:   c.Timeline(),
	})
}
