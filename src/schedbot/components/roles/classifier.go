package roles

import (
	"log"
	"sort"
)

// Resolver fetches the role ids a guild member currently holds.
type Resolver interface {
	MemberRoles(guildID, userID string) ([]string, error)
}

// Classifier maps guild members to configured role labels. The mapping is
// loaded once at process start and read-only afterwards. Labels are not
// mutually exclusive; a member can land in several buckets.
type Classifier struct {
	guildID  string
	resolver Resolver
	labels   []string
	groups   map[string]map[string]struct{}
}

func NewClassifier(guildID string, resolver Resolver, groups map[string][]string) *Classifier {
	c := &Classifier{
		guildID:  guildID,
		resolver: resolver,
		groups:   make(map[string]map[string]struct{}, len(groups)),
	}
	for label, ids := range groups {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		c.groups[label] = set
		c.labels = append(c.labels, label)
	}
	sort.Strings(c.labels)
	return c
}

// Labels returns the configured label names in their fixed order.
func (c *Classifier) Labels() []string {
	return c.labels
}

// Configured reports whether any label mapping is present.
func (c *Classifier) Configured() bool {
	return len(c.labels) > 0
}

// LabelsForRoles classifies an already-known role id list without touching
// the resolver.
func (c *Classifier) LabelsForRoles(roleIDs []string) []string {
	if len(c.labels) == 0 || len(roleIDs) == 0 {
		return nil
	}
	var out []string
	for _, label := range c.labels {
		set := c.groups[label]
		for _, id := range roleIDs {
			if _, ok := set[id]; ok {
				out = append(out, label)
				break
			}
		}
	}
	return out
}

// Run starts one classification cycle. Results are memoized inside the run
// only; a fresh run always re-resolves, so role changes are never stale
// across cycles.
func (c *Classifier) Run() *Run {
	return &Run{c: c, cache: make(map[string][]string)}
}

// Run memoizes member classifications for a single cycle. Not safe for
// concurrent use; each handler or poller tick owns its own run.
type Run struct {
	c     *Classifier
	cache map[string][]string
}

// Labels returns the configured labels matching the member's roles, in label
// order. Resolution failures (member left, fetch error) degrade to an empty
// result and are logged; classification never blocks vote reporting.
func (r *Run) Labels(memberID string) []string {
	if got, ok := r.cache[memberID]; ok {
		return got
	}
	var labels []string
	if r.c.Configured() {
		roleIDs, err := r.c.resolver.MemberRoles(r.c.guildID, memberID)
		if err != nil {
			log.Printf("roles: resolve member %s: %v", memberID, err)
		} else {
			labels = r.c.LabelsForRoles(roleIDs)
		}
	}
	r.cache[memberID] = labels
	return labels
}
