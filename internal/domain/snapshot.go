package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// CloneSnapshot returns a shallow copy of a snapshot map. Stored snapshots are
// treated as immutable once captured, so a copy at every hand-off is enough.
func CloneSnapshot(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

// OwnerFromSnapshot extracts the ownership identifier stored at the given
// dotted field path inside a snapshot. It never fails: an absent snapshot, a
// missing field, a non-string value, or a string that does not parse as an
// identifier all yield (uuid.Nil, false).
func OwnerFromSnapshot(snapshot map[string]any, fieldPath string) (uuid.UUID, bool) {
	if len(snapshot) == 0 || fieldPath == "" {
		return uuid.Nil, false
	}

	var current any = snapshot
	for _, segment := range strings.Split(fieldPath, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return uuid.Nil, false
		}
		current, ok = node[segment]
		if !ok {
			return uuid.Nil, false
		}
	}

	raw, ok := current.(string)
	if !ok {
		return uuid.Nil, false
	}
	owner, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || owner == uuid.Nil {
		return uuid.Nil, false
	}
	return owner, true
}

// SnapshotsEqual compares two snapshots field by field, used to suppress
// audit entries for no-op updates.
func SnapshotsEqual(a, b map[string]any) bool {
	flatA := map[string]string{}
	flatB := map[string]string{}
	if err := flattenSnapshot("", a, flatA); err != nil {
		return false
	}
	if err := flattenSnapshot("", b, flatB); err != nil {
		return false
	}
	if len(flatA) != len(flatB) {
		return false
	}
	for key, value := range flatA {
		if flatB[key] != value {
			return false
		}
	}
	return true
}

// FlattenSnapshot renders a snapshot as deterministic "path: value" lines,
// used by the history workbook export.
func FlattenSnapshot(snapshot map[string]any) []string {
	flattened := map[string]string{}
	if len(snapshot) > 0 {
		if err := flattenSnapshot("", snapshot, flattened); err != nil {
			return []string{fmt.Sprintf("(unrenderable: %v)", err)}
		}
	}
	if len(flattened) == 0 {
		return nil
	}

	keys := make([]string, 0, len(flattened))
	for key := range flattened {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", key, flattened[key]))
	}
	return lines
}

func flattenSnapshot(prefix string, value any, acc map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "{}"
			}
			return nil
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			nextPrefix := key
			if prefix != "" {
				nextPrefix = prefix + "." + key
			}
			if err := flattenSnapshot(nextPrefix, typed[key], acc); err != nil {
				return err
			}
		}
	case []any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "[]"
			}
			return nil
		}
		for idx, item := range typed {
			nextPrefix := fmt.Sprintf("%s[%d]", prefix, idx)
			if prefix == "" {
				nextPrefix = fmt.Sprintf("[%d]", idx)
			}
			if err := flattenSnapshot(nextPrefix, item, acc); err != nil {
				return err
			}
		}
	case nil:
		if prefix != "" {
			acc[prefix] = "null"
		}
	default:
		if prefix == "" {
			return fmt.Errorf("property key missing for value %v", typed)
		}
		encoded, err := json.Marshal(typed)
		if err != nil {
			acc[prefix] = fmt.Sprintf("%v", typed)
		} else {
			acc[prefix] = string(encoded)
		}
	}

	return nil
}
