package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var attributeNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateAttributeName rejects names that cannot be used as a JSON path or column.
func ValidateAttributeName(name string) error {
	if !attributeNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidAttribute, name)
	}
	return nil
}

// CloneAttributes copies an attribute map, descending into nested maps and slices.
func CloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneAttributes(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// Normalize converts attributes to their JSON document form, so that numbers
// become float64 and times become strings, the way every store returns them.
func Normalize(attrs map[string]any) (map[string]any, error) {
	if len(attrs) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return out, nil
}

// NormalizeValue converts a single value to its JSON document form.
func NormalizeValue(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// Equal compares two attribute values in document form.
func Equal(a, b any) bool {
	return reflect.DeepEqual(NormalizeValue(a), NormalizeValue(b))
}

// Match reports whether rec satisfies the type, visibility and equality filters of q.
func (q Query) Match(rec *Record) bool {
	if rec == nil || rec.Type != q.Type {
		return false
	}
	if rec.Deleted && !q.WithDeleted {
		return false
	}
	for attr, want := range q.Where {
		got, ok := rec.Attributes[attr]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// Apply filters, orders by creation sequence and limits recs according to q.
func (q Query) Apply(recs []*Record) []*Record {
	out := make([]*Record, 0, len(recs))
	for _, rec := range recs {
		if q.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Seq == out[j].Seq {
			return out[i].ID < out[j].ID
		}
		return out[i].Seq < out[j].Seq
	})
	if q.Descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// NextRevision derives the revision that follows prev for the given attributes.
// Revisions read "<generation>-<hash>"; the generation grows on every save.
func NextRevision(prev string, attrs map[string]any) string {
	gen := 0
	if prev != "" {
		if head, _, ok := strings.Cut(prev, "-"); ok {
			gen, _ = strconv.Atoi(head)
		}
	}
	data, _ := json.Marshal(attrs)
	sum := xxhash.Sum64(append([]byte(prev+":"), data...))
	return fmt.Sprintf("%d-%016x", gen+1, sum)
}
