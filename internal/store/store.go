// Package store persists the vending machine's root document as a single
// JSON file. The document is tiny (item catalog plus one channel id), so the
// whole thing is read and written in one piece; there is no partial update.
package store

import (
	"encoding/json"
	"os"
)

// Item is one purchasable entry in the catalog.
//
// Unlimited marks an item that never runs out; Stock is meaningless for such
// items. Legacy documents encoded "unlimited" as stock == 0, which Load still
// accepts (see UnmarshalJSON on Document).
type Item struct {
	Content   string `json:"content"`
	Stock     int    `json:"stock"`
	Unlimited bool   `json:"unlimited"`
}

// Document is the unit of persistence: the full catalog plus the optional
// achievement chat id. A nil ChannelID means no notification chat is set.
type Document struct {
	Items     map[string]Item `json:"items"`
	ChannelID *int64          `json:"achievement_channel_id"`
}

// NewDocument returns an empty document with a non-nil items map.
func NewDocument() *Document {
	return &Document{Items: map[string]Item{}}
}

// UnmarshalJSON keeps loading tolerant: missing keys default instead of
// failing, and catalog entries written before the unlimited flag existed are
// mapped by the old rule (stock 0 meant unlimited).
func (d *Document) UnmarshalJSON(b []byte) error {
	type raw struct {
		Items     map[string]json.RawMessage `json:"items"`
		ChannelID *int64                     `json:"achievement_channel_id"`
	}
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}

	d.Items = map[string]Item{}
	d.ChannelID = r.ChannelID

	for name, entry := range r.Items {
		var it struct {
			Content   string `json:"content"`
			Stock     int    `json:"stock"`
			Unlimited *bool  `json:"unlimited"`
		}
		if err := json.Unmarshal(entry, &it); err != nil {
			return err
		}
		item := Item{Content: it.Content, Stock: it.Stock}
		if it.Unlimited != nil {
			item.Unlimited = *it.Unlimited
		} else {
			item.Unlimited = it.Stock == 0
		}
		d.Items[name] = item
	}
	return nil
}

// Load reads the document at path. A missing file is not an error: it yields
// an empty document, matching first-run behavior.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, err
	}

	doc := NewDocument()
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, err
	}
	if doc.Items == nil {
		doc.Items = map[string]Item{}
	}
	return doc, nil
}

// Save writes the whole document to path atomically: encode to a temp file,
// then rename over the old one. Item names and content may be non-Latin, so
// HTML escaping is off to keep the file byte-faithful and readable.
func Save(path string, doc *Document) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
