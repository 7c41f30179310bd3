package types

import "strings"

// EndpointSet is the ordered list of base URLs serving one drand network: the primary
// first, then fallbacks in the order they should be tried.
type EndpointSet struct {
	Primary   string
	Fallbacks []string
}

func NewEndpointSet(urls ...string) EndpointSet {
	if len(urls) == 0 {
		return EndpointSet{}
	}
	return EndpointSet{Primary: urls[0], Fallbacks: append([]string(nil), urls[1:]...)}
}

func (es EndpointSet) URLs() []string {
	out := make([]string, 0, 1+len(es.Fallbacks))
	if es.Primary != "" {
		out = append(out, strings.TrimRight(es.Primary, "/"))
	}
	for _, u := range es.Fallbacks {
		if u == "" {
			continue
		}
		out = append(out, strings.TrimRight(u, "/"))
	}
	return out
}

func (es EndpointSet) Len() int {
	return len(es.URLs())
}

// Key identifies the set for caching purposes; order matters.
func (es EndpointSet) Key() string {
	return strings.Join(es.URLs(), "|")
}
