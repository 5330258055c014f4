package mailer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/osteele/liquid"
)

// emailTemplate is one renderable notification: a subject line and a
// Liquid HTML body.
type emailTemplate struct {
	Subject string
	HTML    string
}

// TemplateStore holds notification templates keyed by template name and
// language. Built-in defaults cover the standard activation flow; LoadDir
// lets a deployment override or add templates without a rebuild.
type TemplateStore struct {
	engine      *liquid.Engine
	templates   map[string]map[string]emailTemplate // name -> lang -> template
	defaultLang string
}

// NewTemplateStore creates a store seeded with the built-in templates.
func NewTemplateStore(defaultLang string) *TemplateStore {
	s := &TemplateStore{
		engine:      liquid.NewEngine(),
		templates:   make(map[string]map[string]emailTemplate),
		defaultLang: defaultLang,
	}
	for name, langs := range builtinTemplates {
		for lang, tpl := range langs {
			s.set(name, lang, tpl)
		}
	}
	return s
}

func (s *TemplateStore) set(name, lang string, tpl emailTemplate) {
	if s.templates[name] == nil {
		s.templates[name] = make(map[string]emailTemplate)
	}
	s.templates[name][lang] = tpl
}

// LoadDir reads template overrides from dir. Files are named
// "<name>.<lang>.html"; the first line must be "Subject: ...", the rest
// is the Liquid body. A missing directory is not an error.
func (s *TemplateStore) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read template dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		parts := strings.Split(strings.TrimSuffix(entry.Name(), ".html"), ".")
		if len(parts) != 2 {
			continue
		}
		name, lang := parts[0], parts[1]

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		subject, body, ok := strings.Cut(string(data), "\n")
		if !ok || !strings.HasPrefix(subject, "Subject:") {
			return fmt.Errorf("template %s: first line must be \"Subject: ...\"", entry.Name())
		}
		s.set(name, lang, emailTemplate{
			Subject: strings.TrimSpace(strings.TrimPrefix(subject, "Subject:")),
			HTML:    body,
		})
	}
	return nil
}

// Render produces the subject and HTML body for a template in the given
// language, falling back to the default language, then to any language
// the template has.
func (s *TemplateStore) Render(name, lang string, bindings map[string]any) (string, string, error) {
	langs, ok := s.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}
	tpl, ok := langs[lang]
	if !ok {
		tpl, ok = langs[s.defaultLang]
	}
	if !ok {
		for _, fallback := range langs {
			tpl = fallback
			break
		}
	}

	subject, err := s.engine.ParseAndRenderString(tpl.Subject, bindings)
	if err != nil {
		return "", "", fmt.Errorf("render subject of %s: %w", name, err)
	}
	html, err := s.engine.ParseAndRenderString(tpl.HTML, bindings)
	if err != nil {
		return "", "", fmt.Errorf("render body of %s: %w", name, err)
	}
	return subject, html, nil
}

// builtinTemplates are the stock notifications. The French wording is the
// one customers have received since the first Shopify integration.
var builtinTemplates = map[string]map[string]emailTemplate{
	"activation": {
		"fr": {
			Subject: "Votre clé d'activation",
			HTML: `<p>Bonjour,</p>
<p>Merci pour votre commande ! Voici votre clé d'activation{% if title %} pour {{ title }}{% endif %} :</p>
<h2>{{ key }}</h2>
{% if order_id %}<p>Référence commande : {{ order_id }}</p>{% endif %}
<p>À bientôt !</p>`,
		},
		"en": {
			Subject: "Your activation key",
			HTML: `<p>Hello,</p>
<p>Thank you for your order! Here is your activation key{% if title %} for {{ title }}{% endif %}:</p>
<h2>{{ key }}</h2>
{% if order_id %}<p>Order reference: {{ order_id }}</p>{% endif %}
<p>See you soon!</p>`,
		},
	},
	"subscription": {
		"fr": {
			Subject: "Votre abonnement Footbar",
			HTML: `<p>Bonjour,</p>
<p>Votre abonnement est prêt. Voici votre clé d'activation :</p>
<h2>{{ key }}</h2>
{% if order_id %}<p>Référence commande : {{ order_id }}</p>{% endif %}
<p>À bientôt !</p>`,
		},
		"en": {
			Subject: "Your Footbar subscription",
			HTML: `<p>Hello,</p>
<p>Your subscription is ready. Here is your activation key:</p>
<h2>{{ key }}</h2>
{% if order_id %}<p>Order reference: {{ order_id }}</p>{% endif %}
<p>See you soon!</p>`,
		},
	},
}
