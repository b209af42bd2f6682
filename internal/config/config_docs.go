package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
type FieldDoc struct {
	// Comment is shown as a header comment above the field.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ConfigDocs maps dotted TOML field paths (e.g. "assets.logo") to their
// [FieldDoc] entries. [Annotated] uses it to comment the seeded config file.
var ConfigDocs = map[string]FieldDoc{
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	"fonts": {
		Comment: "Font files (.ttf, .otf or .woff2). Empty values use the bundled Go faces.",
	},
	"fonts.serif": {
		Comment: "Face for Arabic and Urdu text.",
		Alternatives: []string{
			`serif = "/usr/share/fonts/truetype/noto/NotoNaskhArabic-Regular.ttf"`,
		},
	},
	"fonts.sans":        {Comment: "Face for citations."},
	"fonts.sans_italic": {Comment: "Face for quoted translations and story bodies."},
	"fonts.sans_bold":   {Comment: "Face for story headings."},
	"fonts.serif_fallback": {
		Comment: "Downloaded and cached when serif is empty. Set to \"\" to stay offline.",
	},

	"assets.logo": {
		Comment: "Branding mark drawn top-right on every export.\nA file path, http(s) URL, data: URL, \"builtin\", or \"\" to disable.",
		Alternatives: []string{
			`logo = "~/Pictures/logo.png"`,
			`logo = ""`,
		},
	},
	"assets.timeout_seconds": {Comment: "Per-request timeout for remote backgrounds and logos."},
	"assets.retry_max":       {Comment: "Retries for transient network failures and 5xx responses."},
	"assets.max_megabytes":   {Comment: "Largest asset accepted before decoding."},
	"assets.max_megapixels":  {Comment: "Largest image accepted, in decoded megapixels."},

	"content.endpoint": {
		Comment: "Generation endpoint answering POST {topic, view}. Empty disables `wisdomcard fetch`.",
		Alternatives: []string{
			`endpoint = "https://example.com/api/generate"`,
		},
	},
	"content.cache":           {Comment: "Keep the last good response per topic/view and use it when the endpoint is down."},
	"content.timeout_seconds": {},

	"store.database":    {Comment: "Relative paths resolve against the data directory."},
	"store.uploads_dir": {},

	"server.addr": {Comment: "Listen address for `wisdomcard serve`."},
	"server.allow_origins": {
		Comment: "Origins allowed to call the API from a browser. Use [\"*\"] to allow any.",
	},

	"log.level": {
		Comment: "Minimum log level: trace, debug, info, warn, error",
	},
	"log.max_size_mb": {Comment: "Log file size before rotation."},
}

// ///////////////////////////////////////////////
// Annotated Output
// ///////////////////////////////////////////////

// Annotated encodes cfg as TOML with [ConfigDocs] comments, section
// separators and commented alternatives.
func Annotated(cfg *Config) ([]byte, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	out := []string{
		"# ///////////////////////////////////////////////",
		"# wisdomcard Configuration",
		"# ///////////////////////////////////////////////",
		"",
	}
	comment := func(text string) {
		for _, cl := range strings.Split(text, "\n") {
			out = append(out, "# "+cl)
		}
	}

	var section string
	emitted := map[string]bool{}
	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[[") {
			out = appendOmitted(out, section, emitted)
			section = strings.Trim(trimmed, "[] ")
			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(section)), "")
			if doc, ok := ConfigDocs[section]; ok && doc.Comment != "" {
				comment(doc.Comment)
			}
			out = append(out, trimmed)
			continue
		}

		if !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}

		key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
		full := key
		if section != "" {
			full = section + "." + key
		}
		emitted[full] = true

		doc := ConfigDocs[full]
		if doc.Comment != "" {
			comment(doc.Comment)
		}
		out = append(out, trimmed)
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
	}
	out = appendOmitted(out, section, emitted)

	return []byte(strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"), nil
}

// appendOmitted adds commented entries for documented keys of section that
// the encoder did not emit. Keys are sorted for deterministic output.
func appendOmitted(out []string, section string, emitted map[string]bool) []string {
	if section == "" {
		return out
	}
	prefix := section + "."

	var omitted []string
	for path := range ConfigDocs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := ConfigDocs[path]
		out = append(out, "")
		if doc.Comment != "" {
			for _, cl := range strings.Split(doc.Comment, "\n") {
				out = append(out, "# "+cl)
			}
		}
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
		emitted[path] = true
	}
	return out
}

// sectionName capitalizes the last dotted segment of a section header.
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
