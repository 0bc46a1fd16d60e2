package sprunje

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ErrBadParameter marks list query parameters the client got wrong;
// handlers map it to a 400.
var ErrBadParameter = errors.New("bad list parameter")

const (
	// DefaultSize is the page size when the client sends none.
	DefaultSize = 10
	// MaxSize caps the page size a client may request.
	MaxSize = 100
)

// Sort is one requested ordering.
type Sort struct {
	Field string
	Dir   string
}

// Params are the parsed list query parameters.
type Params struct {
	Page    int
	Size    int
	Sorts   []Sort
	Filters map[string][]string
	Search  string

	// filterOrder remembers the order filters arrived in so the echo in
	// the result is stable.
	filterOrder []string
}

var bracketParam = regexp.MustCompile(`^(sorts|filters)\[([^\]\[]+)\]$`)

// ParseParams parses a raw URL query string with the package default
// and maximum page sizes.
func ParseParams(rawQuery string) (*Params, error) {
	return ParseParamsWith(rawQuery, DefaultSize, MaxSize)
}

// ParseParamsWith parses a raw URL query string, paging with the given
// default and maximum sizes; non-positive values fall back to
// DefaultSize and MaxSize. Parsing the raw string instead of
// url.Values keeps sorts in the order the client sent them, which
// decides sort precedence.
func ParseParamsWith(rawQuery string, defaultSize, maxSize int) (*Params, error) {
	if defaultSize < 1 {
		defaultSize = DefaultSize
	}
	if maxSize < 1 {
		maxSize = MaxSize
	}
	p := &Params{
		Page:    0,
		Size:    defaultSize,
		Filters: make(map[string][]string),
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadParameter, err)
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadParameter, err)
		}

		switch {
		case key == "page":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: page must be a non-negative integer", ErrBadParameter)
			}
			p.Page = n
		case key == "size":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: size must be a positive integer", ErrBadParameter)
			}
			if n > maxSize {
				n = maxSize
			}
			p.Size = n
		case key == "search":
			p.Search = strings.TrimSpace(value)
		default:
			m := bracketParam.FindStringSubmatch(key)
			if m == nil {
				// Unrelated query parameters are ignored.
				continue
			}
			field := m[2]
			if m[1] == "sorts" {
				dir := strings.ToLower(strings.TrimSpace(value))
				if dir != "asc" && dir != "desc" {
					return nil, fmt.Errorf("%w: sort direction for %s must be asc or desc", ErrBadParameter, field)
				}
				p.Sorts = append(p.Sorts, Sort{Field: field, Dir: dir})
				continue
			}
			if _, seen := p.Filters[field]; !seen {
				p.filterOrder = append(p.filterOrder, field)
			}
			for _, v := range strings.Split(value, ",") {
				v = strings.TrimSpace(v)
				if v != "" {
					p.Filters[field] = append(p.Filters[field], v)
				}
			}
		}
	}

	return p, nil
}

// Filtered reports whether any filter or search term narrows the set.
func (p *Params) Filtered() bool {
	return len(p.Filters) > 0 || p.Search != ""
}

// FilterEcho returns the applied filters in arrival order, with comma
// lists rejoined, for the result envelope.
func (p *Params) FilterEcho() map[string]string {
	if len(p.Filters) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(p.Filters))
	for _, field := range p.filterOrder {
		out[field] = strings.Join(p.Filters[field], ",")
	}
	return out
}

// SortEcho returns the applied sorts as a field-to-direction map for
// the result envelope.
func (p *Params) SortEcho() map[string]string {
	out := make(map[string]string, len(p.Sorts))
	for _, s := range p.Sorts {
		out[s.Field] = s.Dir
	}
	return out
}
