package payload

import (
	"errors"
	"sort"

	json "github.com/goccy/go-json"
)

// ResourceMetaKey is the reserved key of the shared resources block.
const ResourceMetaKey = "meta"

// ResourceEntry is the output of one resource snapshot check for one cycle.
type ResourceEntry struct {
	Snapshots         []any `json:"snaps"`
	FormatVersion     int   `json:"format_version"`
	FormatDescription any   `json:"format_description,omitempty"`
}

// ResourceMeta is attached once when at least one resource check produced snapshots.
type ResourceMeta struct {
	APIKey string `json:"api_key"`
	Host   string `json:"host"`
}

// Resources holds per check entries plus the optional shared meta block.
type Resources struct {
	Entries map[string]ResourceEntry
	Meta    *ResourceMeta
}

// NewResources 创建空资源段
func NewResources() Resources {
	return Resources{Entries: map[string]ResourceEntry{}}
}

// ErrReservedResourceKey 资源检查的 key 与 meta 块冲突
var ErrReservedResourceKey = errors.New("resource key " + ResourceMetaKey + " is reserved")

// Put stores the entry of one resource check.
func (r *Resources) Put(key string, entry ResourceEntry) error {
	if key == ResourceMetaKey {
		return ErrReservedResourceKey
	}
	if r.Entries == nil {
		r.Entries = map[string]ResourceEntry{}
	}
	r.Entries[key] = entry
	return nil
}

// Keys returns entry keys in sorted order, meta excluded.
func (r Resources) Keys() []string {
	keys := make([]string, 0, len(r.Entries))
	for k := range r.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes entries and meta side by side in one object.
func (r Resources) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Entries)+1)
	for k, v := range r.Entries {
		doc[k] = v
	}
	if r.Meta != nil {
		doc[ResourceMetaKey] = r.Meta
	}
	return json.Marshal(doc)
}
