package crop

import (
	"fmt"
	"net/url"
	"strings"
)

// Param is one key/value pair of a query string, key keeps its original casing.
type Param struct {
	Key   string
	Value string
}

// Query is an ordered list of query parameters with case-insensitive key
// lookup. Setting an existing key replaces its value in place, so composing a
// URL on top of an existing query never produces duplicated keys.
type Query struct {
	params []Param
}

// ParseQuery parses a raw query string (without leading `?`). Invalid escape
// sequence makes parsing fail.
func ParseQuery(raw string) (Query, error) {
	return parseQuery(raw, true)
}

// ParseQueryLenient works like ParseQuery, but keeps undecodable parts as they
// are instead of failing.
func ParseQueryLenient(raw string) Query {
	q, _ := parseQuery(raw, false)
	return q
}

func parseQuery(raw string, strict bool) (Query, error) {
	q := Query{}
	raw = strings.TrimLeft(raw, "?&")

	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}

		key, value, _ := strings.Cut(part, "=")

		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			if strict {
				return q, fmt.Errorf("invalid query key %q: %s", key, err)
			}
			decodedKey = key
		}

		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			if strict {
				return q, fmt.Errorf("invalid value for query key %q: %s", key, err)
			}
			decodedValue = value
		}

		q.params = append(q.params, Param{Key: decodedKey, Value: decodedValue})
	}

	return q, nil
}

func (q Query) index(key string) int {
	for i, param := range q.params {
		if strings.EqualFold(param.Key, key) {
			return i
		}
	}
	return -1
}

// Get returns value of the first parameter whose key equals `key` ignoring case.
func (q Query) Get(key string) (string, bool) {
	if i := q.index(key); i >= 0 {
		return q.params[i].Value, true
	}
	return "", false
}

// Set replaces value of first parameter matching `key` and drops other
// parameters with the same key. New key is appended to the end.
func (q *Query) Set(key, value string) {
	i := q.index(key)
	if i < 0 {
		q.params = append(q.params, Param{Key: key, Value: value})
		return
	}

	q.params[i].Value = value

	kept := q.params[:i+1]
	for _, param := range q.params[i+1:] {
		if !strings.EqualFold(param.Key, key) {
			kept = append(kept, param)
		}
	}
	q.params = kept
}

// Del removes all parameters matching `key`.
func (q *Query) Del(key string) {
	kept := q.params[:0]
	for _, param := range q.params {
		if !strings.EqualFold(param.Key, key) {
			kept = append(kept, param)
		}
	}
	q.params = kept
}

// Merge sets every parameter of `other` onto `q` in order.
func (q *Query) Merge(other Query) {
	for _, param := range other.params {
		q.Set(param.Key, param.Value)
	}
}

func (q Query) Len() int {
	return len(q.params)
}

func (q Query) Params() []Param {
	return append([]Param(nil), q.params...)
}

// commas are left as is, crop backends use them as list separator.
func escapeQueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%2C", ",")
}

// Encode converts query back to string form, parameter order is preserved.
func (q Query) Encode() string {
	buffer := &strings.Builder{}
	for i, param := range q.params {
		if i > 0 {
			buffer.WriteByte('&')
		}
		buffer.WriteString(escapeQueryComponent(param.Key))
		buffer.WriteByte('=')
		buffer.WriteString(escapeQueryComponent(param.Value))
	}
	return buffer.String()
}

// SplitURL separates path part and raw query part of a URL. Fragment is dropped.
func SplitURL(rawURL string) (string, string) {
	if index := strings.IndexByte(rawURL, '#'); index >= 0 {
		rawURL = rawURL[:index]
	}

	path, query, _ := strings.Cut(rawURL, "?")
	return path, query
}
