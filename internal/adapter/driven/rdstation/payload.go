package rdstation

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/troia/campaignsync/internal/domain/model"
)

// Payload is a decoded response body. When the body is not valid JSON, Data
// is nil and Raw holds the text, so one malformed response degrades a single
// sync step instead of failing the batch.
type Payload struct {
	Data any
	Raw  string
}

// IsRaw reports whether the body could not be decoded as JSON.
func (p Payload) IsRaw() bool {
	return p.Data == nil && p.Raw != ""
}

func parsePayload(path string, body []byte) Payload {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil || data == nil {
		slog.Warn("provider returned a non-JSON body", "path", path, "bytes", len(body))
		return Payload{Raw: string(body)}
	}
	return Payload{Data: data}
}

// items returns the entry list of a payload: the top-level array, or the
// first array found under one of keys.
func (p Payload) items(keys ...string) []map[string]any {
	var list []any
	switch v := p.Data.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				list = arr
				break
			}
		}
	}

	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// mapEmail reads one entry from either provider view. The two endpoints name
// the same facts differently, so each field accepts a list of aliases.
func mapEmail(m map[string]any) model.UpstreamEmail {
	return model.UpstreamEmail{
		ID:         stringField(m, "id", "campaign_id", "email_id"),
		Name:       stringField(m, "name", "campaign_name", "email_name"),
		Status:     stringField(m, "status"),
		Type:       stringField(m, "type", "email_type"),
		SentAt:     timeField(m, "sent_at", "send_at", "last_sent_at"),
		LeadsCount: intField(m, "leads_count"),
		Sent:       intField(m, "sent", "email_sent_count", "contacts_count"),
		Delivered:  intField(m, "delivered", "email_delivered_count"),
		Opened:     intField(m, "opened", "email_opened_unique_count", "email_opened_count"),
		Clicked:    intField(m, "clicked", "email_clicked_unique_count", "email_clicked_count"),
		Bounced:    intField(m, "bounced", "email_bounced_count"),
		OpenRate:   floatField(m, "open_rate", "email_opened_rate"),
		ClickRate:  floatField(m, "click_rate", "email_clicked_rate"),
		CreatedAt:  timeField(m, "created_at"),
		UpdatedAt:  timeField(m, "updated_at"),
	}
}

func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(m map[string]any, keys ...string) string {
	v, ok := lookup(m, keys...)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func intField(m map[string]any, keys ...string) *int64 {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	var n int64
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			n = i
		} else if f, err := x.Float64(); err == nil {
			n = int64(f)
		} else {
			return nil
		}
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

func floatField(m map[string]any, keys ...string) *float64 {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	var f float64
	var err error
	switch x := v.(type) {
	case json.Number:
		f, err = x.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return &f
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func timeField(m map[string]any, keys ...string) *time.Time {
	s := stringField(m, keys...)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	slog.Debug("unparseable provider timestamp", "keys", keys, "value", s)
	return nil
}
