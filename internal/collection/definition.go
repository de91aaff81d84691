package collection

import (
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kiln/internal/schema"
	"github.com/starford/kiln/internal/toc"
)

var nameRe = regexp.MustCompile(`^[A-Za-z][\w-]*$`)

// Definition configures one collection: which files belong to it, how
// their frontmatter is validated and which derived fields it gets.
type Definition struct {
	Name    string        `yaml:"name"`
	Pattern string        `yaml:"pattern"`
	Single  bool          `yaml:"single"`
	Schema  schema.Schema `yaml:"schema"`
	// SlugFrom picks the slug source when a record has no explicit slug.
	SlugFrom schema.SlugSource `yaml:"slug_from"`
	Href     string            `yaml:"href"`
	// GroupBy shapes the output as a map keyed by this field (or "dir").
	GroupBy  string       `yaml:"group_by"`
	Headings toc.Strategy `yaml:"headings"`
	// DescriptionField names the field rendered into descriptionHtml.
	DescriptionField string `yaml:"description_field"`
	// Timestamp enables the version-control lastModified lookup.
	Timestamp bool `yaml:"timestamp"`
}

// Validate checks the definition.
func (d Definition) Validate() error {
	strategies := make([]any, len(toc.Strategies))
	for i, s := range toc.Strategies {
		strategies[i] = s
	}
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Match(nameRe)),
		validation.Field(&d.Pattern, validation.Required, validation.By(validPattern)),
		validation.Field(&d.SlugFrom, validation.In(schema.SlugFromTitle, schema.SlugFromBasename)),
		validation.Field(&d.Headings, validation.In(strategies...)),
		validation.Field(&d.Schema, validation.By(validSchema)),
	)
}

func validPattern(v any) error {
	p, _ := v.(string)
	if !doublestar.ValidatePattern(p) {
		return fmt.Errorf("invalid glob pattern %q", p)
	}
	return nil
}

func validSchema(v any) error {
	s, _ := v.(schema.Schema)
	for _, name := range s.Names() {
		if err := s[name].Validate(); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

// WithDefaults fills the unset optional settings.
func (d Definition) WithDefaults() Definition {
	if d.SlugFrom == "" {
		d.SlugFrom = schema.SlugFromTitle
	}
	if d.Headings == "" {
		d.Headings = toc.StrategyAuto
	}
	if d.Schema == nil {
		d.Schema = schema.Schema{}
	}
	return d
}

// Defaults returns the collections of the personal site.
func Defaults() []Definition {
	return []Definition{
		{
			Name:     "home",
			Pattern:  "home.md",
			Single:   true,
			Schema:   schema.Schema{},
			SlugFrom: schema.SlugFromBasename,
			Href:     "/",
			Headings: toc.StrategyNone,
		},
		{
			Name:     "about",
			Pattern:  "about.md",
			Single:   true,
			Schema:   schema.Schema{},
			SlugFrom: schema.SlugFromBasename,
			Href:     "/about",
			Headings: toc.StrategyNone,
		},
		{
			Name:    "posts",
			Pattern: "posts/**/*.md",
			Schema: schema.Schema{
				"title":       {Type: schema.TypeString, Required: true},
				"date":        {Type: schema.TypeISODate, Required: true},
				"slug":        {Type: schema.TypeString},
				"tags":        {Type: schema.TypeStrings, Default: []any{"other"}},
				"description": {Type: schema.TypeText, Required: true},
				"draft":       {Type: schema.TypeBool, Default: false},
				"headings":    {Type: schema.TypeHeadings},
			},
			SlugFrom:         schema.SlugFromTitle,
			Href:             "/posts/{slug}",
			Headings:         toc.StrategyAuto,
			DescriptionField: "description",
			Timestamp:        true,
		},
		{
			Name:    "notes",
			Pattern: "notes/**/*.md",
			Schema: schema.Schema{
				"title":       {Type: schema.TypeString, Required: true},
				"date":        {Type: schema.TypeISODate, Required: true},
				"slug":        {Type: schema.TypeString},
				"tags":        {Type: schema.TypeStrings},
				"description": {Type: schema.TypeText},
			},
			SlugFrom:         schema.SlugFromTitle,
			Href:             "/notes/{slug}",
			Headings:         toc.StrategyTree,
			DescriptionField: "description",
			Timestamp:        true,
		},
		{
			Name:    "recipes",
			Pattern: "recipes/**/*.{py,r,R}",
			Schema: schema.Schema{
				"title":    {Type: schema.TypeString},
				"code":     {Type: schema.TypeText, Required: true},
				"lang":     {Type: schema.TypeEnum, Required: true, Values: []string{"python", "r"}},
				"filename": {Type: schema.TypeString},
			},
			SlugFrom: schema.SlugFromBasename,
			Href:     "/recipes/{dir}/{slug}",
			GroupBy:  "dir",
			Headings: toc.StrategyNone,
		},
	}
}
