package model

import "strconv"

// Webhook is an organization-level webhook, keyed by its delivery URL.
type Webhook struct {
	ID int64 `yaml:"-"`

	URL         string   `yaml:"url"`
	ContentType *string  `yaml:"content_type,omitempty"`
	Secret      *string  `yaml:"secret,omitempty"`
	InsecureSSL *string  `yaml:"insecure_ssl,omitempty"`
	Active      *bool    `yaml:"active,omitempty"`
	Events      []string `yaml:"events,omitempty"`
}

func (w *Webhook) Kind() Kind  { return KindWebhook }
func (w *Webhook) Key() string { return w.URL }

func (w *Webhook) ProviderID() string {
	if w.ID == 0 {
		return ""
	}
	return strconv.FormatInt(w.ID, 10)
}

func (w *Webhook) Diff(current Entity) []FieldChange {
	cur, ok := current.(*Webhook)
	if !ok {
		return nil
	}
	var changes []FieldChange
	changes = diffScalar(changes, "content_type", w.ContentType, cur.ContentType)
	changes = diffScalar(changes, "insecure_ssl", w.InsecureSSL, cur.InsecureSSL)
	changes = diffScalar(changes, "active", w.Active, cur.Active)
	changes = diffStringSet(changes, "events", w.Events, cur.Events)
	// The secret is write-only upstream; it is sent on create but never
	// compared, the provider never echoes it back.
	return changes
}

func (w *Webhook) CreatePayload() map[string]any {
	payload := map[string]any{"url": w.URL}
	putScalar(payload, "content_type", w.ContentType)
	putScalar(payload, "secret", w.Secret)
	putScalar(payload, "insecure_ssl", w.InsecureSSL)
	putScalar(payload, "active", w.Active)
	putList(payload, "events", w.Events)
	return payload
}

func (w *Webhook) UpdatePayload(changes []FieldChange) map[string]any {
	return PayloadFromChanges(changes)
}
