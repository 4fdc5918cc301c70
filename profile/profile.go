// Package profile holds the person record the verification pipeline
// reads and conditionally updates.
package profile

import "strings"

// Profile is a person's record. Data carries free-form extension fields
// recognized from documents; named fields are the structured subset the
// pipeline works with directly.
type Profile struct {
	Ref        string            `json:"ref"`
	FullName   string            `json:"full_name,omitempty"`
	FirstName  string            `json:"first_name,omitempty"`
	LastName   string            `json:"last_name,omitempty"`
	MiddleName string            `json:"middle_name,omitempty"`
	Birthday   string            `json:"birthday,omitempty"`
	Sex        string            `json:"sex,omitempty"`
	AvatarRef  string            `json:"avatar_ref,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// ComparisonName resolves the name to compare a document against:
// the structured full name when present, otherwise one synthesized from
// the separate name parts. Empty when the profile has no name on file.
func (p *Profile) ComparisonName() string {
	if p.FullName != "" {
		return p.FullName
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{p.LastName, p.FirstName, p.MiddleName} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// Update describes a partial profile update. Nil pointers leave the
// corresponding field untouched; Data entries are merged with
// MergeIfAbsent semantics by the stores.
type Update struct {
	Birthday  *string
	AvatarRef *string
	Data      map[string]string
}

// MergeIfAbsent copies incoming keys into existing only where existing
// has no value yet. Existing data is never clobbered; the birthday
// overwrite exception is handled by the decision engine through
// Update.Birthday, not here.
func MergeIfAbsent(existing, incoming map[string]string) map[string]string {
	merged := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if _, ok := merged[k]; !ok && v != "" {
			merged[k] = v
		}
	}
	return merged
}

func (p *Profile) clone() *Profile {
	c := *p
	if p.Data != nil {
		c.Data = make(map[string]string, len(p.Data))
		for k, v := range p.Data {
			c.Data[k] = v
		}
	}
	return &c
}

func (p *Profile) apply(update Update) {
	if update.Birthday != nil {
		p.Birthday = *update.Birthday
	}
	if update.AvatarRef != nil {
		p.AvatarRef = *update.AvatarRef
	}
	if len(update.Data) > 0 {
		p.Data = MergeIfAbsent(p.Data, update.Data)
	}
}
