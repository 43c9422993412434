// Package i18n loads the embedded message catalogs and renders translation
// keys of the form "namespace:key" for a requested language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale must define every key; other locales fall back to it.
const BaseLocale = "en-GB"

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Translator renders catalog messages. It is safe for concurrent use.
type Translator struct {
	builder *catalog.Builder
	matcher language.Matcher
	tags    []language.Tag
	keys    map[string]struct{}
}

// New loads the catalogs embedded in this package
func New() (*Translator, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads locales/<locale>/<namespace>.yaml catalogs from fsys
func LoadFromFS(fsys fs.FS) (*Translator, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	locales := map[string]map[string]string{}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}

		localeFromPath := path.Base(path.Dir(p))
		namespaceFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))
		if file.Locale != localeFromPath {
			return nil, fmt.Errorf("catalog %s: locale %q must match path locale %q", p, file.Locale, localeFromPath)
		}
		if file.Namespace != namespaceFromPath {
			return nil, fmt.Errorf("catalog %s: namespace %q must match filename %q", p, file.Namespace, namespaceFromPath)
		}

		messages, ok := locales[file.Locale]
		if !ok {
			messages = map[string]string{}
			locales[file.Locale] = messages
		}
		for key, value := range file.Messages {
			messages[file.Namespace+":"+strings.TrimSpace(key)] = value
		}
	}

	base, ok := locales[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	baseTag := language.MustParse(BaseLocale)
	t := &Translator{
		builder: catalog.NewBuilder(catalog.Fallback(baseTag)),
		tags:    []language.Tag{baseTag},
		keys:    make(map[string]struct{}, len(base)),
	}
	for key := range base {
		t.keys[key] = struct{}{}
	}

	names := make([]string, 0, len(locales))
	for locale := range locales {
		names = append(names, locale)
	}
	sort.Strings(names)

	for _, locale := range names {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		if locale != BaseLocale {
			t.tags = append(t.tags, tag)
		}
		messages := locales[locale]
		for key := range messages {
			if _, ok := t.keys[key]; !ok {
				return nil, fmt.Errorf("locale %s: key %q is not defined in %s", locale, key, BaseLocale)
			}
		}
		for key, value := range base {
			if v, ok := messages[key]; ok {
				value = v
			}
			if err := t.builder.SetString(tag, key, printfFormat(value)); err != nil {
				return nil, fmt.Errorf("locale %s: key %q: %w", locale, key, err)
			}
		}
	}

	t.matcher = language.NewMatcher(t.tags)
	return t, nil
}

// Languages returns the loaded locales, base locale first
func (t *Translator) Languages() []string {
	out := make([]string, 0, len(t.tags))
	for _, tag := range t.tags {
		out = append(out, tag.String())
	}
	return out
}

// Has reports whether key is defined
func (t *Translator) Has(key string) bool {
	_, ok := t.keys[key]
	return ok
}

// Translate renders key in the closest supported language to lang. %1, %2...
// in the message are replaced by args. Unknown keys are returned unchanged.
func (t *Translator) Translate(key, lang string, args ...string) string {
	if !t.Has(key) {
		return key
	}
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a
	}
	return t.printer(lang).Sprintf(key, values...)
}

// Compile renders a "[[namespace:key, arg1, arg2]]" token. Text that is not a
// token is returned unchanged.
func (t *Translator) Compile(text, lang string) string {
	if !strings.HasPrefix(text, "[[") || !strings.HasSuffix(text, "]]") {
		return text
	}
	parts := strings.Split(text[2:len(text)-2], ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if !t.Has(parts[0]) {
		return text
	}
	return t.Translate(parts[0], lang, parts[1:]...)
}

func (t *Translator) printer(lang string) *message.Printer {
	tag := t.tags[0]
	if lang != "" {
		if requested, err := language.Parse(lang); err == nil {
			_, index, confidence := t.matcher.Match(requested)
			if confidence != language.No {
				tag = t.tags[index]
			}
		}
	}
	return message.NewPrinter(tag, message.Catalog(t.builder))
}

// printfFormat turns %1, %2... placeholders into explicit printf argument
// indexes and escapes any other percent sign
func printfFormat(msg string) string {
	var b strings.Builder
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(msg) && msg[j] >= '0' && msg[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteString("%%")
			continue
		}
		fmt.Fprintf(&b, "%%[%s]s", msg[i+1:j])
		i = j - 1
	}
	return b.String()
}
