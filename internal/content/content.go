// Package content defines the displayable text units a post is built from.
//
// A [Variant] is a closed sum type: [ScriptureVerse], [Saying] or
// [Narrative]. The unexported marker method keeps other packages from adding
// cases, so a type switch over the three concrete types is exhaustive.
// Variants travel as a tagged JSON envelope whose "kind" field selects the
// case; decoding never guesses the case from which fields are present.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the discriminant of a [Variant].
type Kind string

const (
	KindScripture Kind = "quran"
	KindSaying    Kind = "hadith"
	KindNarrative Kind = "story"
)

// Variant is one displayable unit of text content.
type Variant interface {
	Kind() Kind
	variant()
}

// Normalize returns v with a pointer form such as *Saying dereferenced, so
// callers can switch over the three value types only. A nil pointer
// becomes a nil Variant.
func Normalize(v Variant) Variant {
	switch p := v.(type) {
	case *ScriptureVerse:
		if p == nil {
			return nil
		}
		return *p
	case *Saying:
		if p == nil {
			return nil
		}
		return *p
	case *Narrative:
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}

// ScriptureVerse is a verse in its original script with two translations.
type ScriptureVerse struct {
	PrimaryScript        string `json:"primary_script"`
	Translation          string `json:"translation"`
	SecondaryTranslation string `json:"secondary_translation"`
	Citation             string `json:"citation"`
}

// Saying is a translated saying with its chain attribution and source.
type Saying struct {
	Translation          string `json:"translation"`
	SecondaryTranslation string `json:"secondary_translation"`
	Attribution          string `json:"attribution"`
	Citation             string `json:"citation"`
}

// Narrative is a short titled story.
type Narrative struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

func (ScriptureVerse) Kind() Kind { return KindScripture }
func (Saying) Kind() Kind         { return KindSaying }
func (Narrative) Kind() Kind      { return KindNarrative }

func (ScriptureVerse) variant() {}
func (Saying) variant()         {}
func (Narrative) variant()      {}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindScripture, KindSaying, KindNarrative:
		return k, nil
	case "":
		return "", errors.New("missing content kind")
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// ///////////////////////////////////////////////
// Envelope
// ///////////////////////////////////////////////

// Decode parses a tagged envelope such as
//
//	{"kind":"hadith","translation":"...","attribution":"Umar","citation":"Bukhari 1"}
func Decode(data []byte) (Variant, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	kind, err := ParseKind(head.Kind)
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}

	var v Variant
	switch kind {
	case KindScripture:
		var sv ScriptureVerse
		err = json.Unmarshal(data, &sv)
		v = sv
	case KindSaying:
		var s Saying
		err = json.Unmarshal(data, &s)
		v = s
	case KindNarrative:
		var n Narrative
		err = json.Unmarshal(data, &n)
		v = n
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s content: %w", kind, err)
	}
	return v, nil
}

// Encode writes v as a tagged envelope.
func Encode(v Variant) ([]byte, error) {
	switch v := Normalize(v).(type) {
	case ScriptureVerse:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			ScriptureVerse
		}{v.Kind(), v})
	case Saying:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			Saying
		}{v.Kind(), v})
	case Narrative:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			Narrative
		}{v.Kind(), v})
	default:
		return nil, errors.New("encode content: no variant")
	}
}

// Envelope wraps a Variant so it can sit inside other JSON documents.
type Envelope struct {
	Variant
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if Normalize(e.Variant) == nil {
		return []byte("null"), nil
	}
	return Encode(e.Variant)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Variant = nil
		return nil
	}
	v, err := Decode(data)
	if err != nil {
		return err
	}
	e.Variant = v
	return nil
}
