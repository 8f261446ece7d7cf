// Package thread rebuilds conversations from message-identifier linkage.
// It is pure: callers hand it candidate messages and get ordered slices back.
package thread

import (
	"sort"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/msgid"
)

// graph is an undirected adjacency list over candidate message ids.
type graph struct {
	byID map[string]model.Message
	adj  map[string][]string
}

func buildGraph(candidates []model.Message) *graph {
	g := &graph{
		byID: make(map[string]model.Message, len(candidates)),
		adj:  make(map[string][]string, len(candidates)),
	}
	for _, m := range candidates {
		id := msgid.Normalize(m.MessageID)
		if id == "" {
			continue
		}
		if _, dup := g.byID[id]; !dup {
			g.byID[id] = m
		}
	}

	for id, m := range g.byID {
		for _, linked := range m.LinkedIDs() {
			other := msgid.Normalize(linked)
			if other == id {
				continue
			}
			if _, ok := g.byID[other]; !ok {
				continue
			}
			g.adj[id] = append(g.adj[id], other)
			g.adj[other] = append(g.adj[other], id)
		}
	}
	return g
}

// component collects every id reachable from start, breadth-first.
func (g *graph) component(start string, visited map[string]bool) []model.Message {
	queue := []string{start}
	visited[start] = true

	var out []model.Message
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, g.byID[id])

		for _, next := range g.adj[id] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	sortChronological(out)
	return out
}

// Reconstruct returns the conversation containing targetID: every candidate
// connected to it through in-reply-to or references links, oldest first.
// Messages sharing only a subject are never joined. A target with no links
// yields itself alone; a target absent from candidates yields nil.
func Reconstruct(candidates []model.Message, targetID string) []model.Message {
	g := buildGraph(candidates)
	target := msgid.Normalize(targetID)
	if _, ok := g.byID[target]; !ok {
		return nil
	}
	return g.component(target, make(map[string]bool, len(g.byID)))
}

// Group partitions candidates into conversations. Each conversation is
// ordered oldest first; conversations are ordered by their newest message,
// most recent first.
func Group(candidates []model.Message) [][]model.Message {
	g := buildGraph(candidates)
	visited := make(map[string]bool, len(g.byID))

	var groups [][]model.Message
	for _, m := range candidates {
		id := msgid.Normalize(m.MessageID)
		if id == "" || visited[id] {
			continue
		}
		groups = append(groups, g.component(id, visited))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i][len(groups[i])-1], groups[j][len(groups[j])-1]
		return before(b, a)
	})
	return groups
}

func sortChronological(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return before(msgs[i], msgs[j])
	})
}

// before orders by creation time, then store insertion order.
func before(a, b model.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}
