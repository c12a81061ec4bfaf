package failures

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"anarchy.ttfm/scanpay/backend"
	"gopkg.in/yaml.v3"
)

type Category string

const (
	CategoryInvalidPin        Category = "InvalidPin"
	CategoryInsufficientFunds Category = "InsufficientFunds"
	CategoryRecipientNotFound Category = "RecipientNotFound"
	CategoryLimitExceeded     Category = "LimitExceeded"
	CategoryAccountBlocked    Category = "AccountBlocked"
	CategoryUnclassified      Category = "Unclassified"

	CategoryMalformedPayload      Category = "MalformedPayload"
	CategoryMissingRequiredFields Category = "MissingRequiredFields"
	CategoryUnsupportedIntentKind Category = "UnsupportedIntentKind"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrEmptyTable      = errors.New("table has no rules")
	ErrMissingGuidance = errors.New("missing guidance")
)

var backendCategories = map[Category]struct{}{
	CategoryInvalidPin:        {},
	CategoryInsufficientFunds: {},
	CategoryRecipientNotFound: {},
	CategoryLimitExceeded:     {},
	CategoryAccountBlocked:    {},
}

var rejectionCategories = map[Category]struct{}{
	CategoryMalformedPayload:      {},
	CategoryMissingRequiredFields: {},
	CategoryUnsupportedIntentKind: {},
}

// Rejections are detected on the device and can only be solved by scanning again
func (c Category) IsRejection() (ok bool) {
	_, ok = rejectionCategories[c]
	return ok
}

type (
	Guidance struct {
		Category Category `yaml:"category"`
		Guidance string   `yaml:"guidance"`
	}
	Rule struct {
		Category Category `yaml:"category"`
		Guidance string   `yaml:"guidance"`
		// Normalized fragments. See Fold
		Match []string `yaml:"match"`
	}
	Table struct {
		Version    string     `yaml:"version"`
		Rules      []Rule     `yaml:"rules"`
		Fallback   Guidance   `yaml:"fallback"`
		Rejections []Guidance `yaml:"rejections"`
	}
	// Classified is the closed-taxonomy view of a failure shown to the agent
	Classified struct {
		Category Category `json:"category"`
		Guidance string   `json:"guidance"`
	}
)

//go:embed table.yaml
var defaultTable []byte

// Fold lower cases s and keeps only letters and digits, so "Invalid PIN",
// "INVALID_PIN" and "InvalidPin" compare equal.
func Fold(s string) (folded string) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func (t *Table) Validate() (err error) {
	if len(t.Rules) == 0 {
		return ErrEmptyTable
	}
	for _, rule := range t.Rules {
		if _, found := backendCategories[rule.Category]; !found {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, rule.Category)
		}
		if rule.Guidance == "" {
			return fmt.Errorf("%w: %s", ErrMissingGuidance, rule.Category)
		}
	}
	if t.Fallback.Category != CategoryUnclassified {
		return fmt.Errorf("%w: fallback must be %s", ErrUnknownCategory, CategoryUnclassified)
	}
	if t.Fallback.Guidance == "" {
		return fmt.Errorf("%w: %s", ErrMissingGuidance, CategoryUnclassified)
	}
	for _, rejection := range t.Rejections {
		if !rejection.Category.IsRejection() {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, rejection.Category)
		}
	}
	return nil
}

func LoadTable(contents []byte) (table Table, err error) {
	err = yaml.Unmarshal(contents, &table)
	if err != nil {
		return table, fmt.Errorf("failed to unmarshal table: %w", err)
	}

	err = table.Validate()
	if err != nil {
		return table, fmt.Errorf("invalid table: %w", err)
	}
	return table, nil
}

type Classifier struct {
	version    string
	rules      []Rule
	fallback   Classified
	rejections map[Category]string
}

func New(table Table) (c *Classifier, err error) {
	err = table.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid table: %w", err)
	}

	c = &Classifier{
		version:    table.Version,
		rules:      make([]Rule, 0, len(table.Rules)),
		fallback:   Classified{Category: CategoryUnclassified, Guidance: table.Fallback.Guidance},
		rejections: make(map[Category]string, len(table.Rejections)),
	}
	for _, rule := range table.Rules {
		folded := make([]string, 0, len(rule.Match))
		for _, fragment := range rule.Match {
			fragment = Fold(fragment)
			if fragment != "" {
				folded = append(folded, fragment)
			}
		}
		rule.Match = folded
		c.rules = append(c.rules, rule)
	}
	for _, rejection := range table.Rejections {
		c.rejections[rejection.Category] = rejection.Guidance
	}
	return c, nil
}

// Default returns the classifier built from the embedded table
func Default() (c *Classifier) {
	table, err := LoadTable(defaultTable)
	if err != nil {
		panic(err)
	}
	c, err = New(table)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Classifier) Version() (version string) {
	return c.version
}

// Classify matches raw against the rules in table order
func (c *Classifier) Classify(raw string) (classified Classified) {
	folded := Fold(raw)
	if folded == "" {
		return c.fallback
	}
	for _, rule := range c.rules {
		for _, fragment := range rule.Match {
			if strings.Contains(folded, fragment) {
				return Classified{Category: rule.Category, Guidance: rule.Guidance}
			}
		}
	}
	return c.fallback
}

// ClassifyError prefers the ledger code carried by err and falls back to its message
func (c *Classifier) ClassifyError(err error) (classified Classified) {
	if err == nil {
		return c.fallback
	}

	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		classified = c.Classify(backendErr.Code)
		if classified.Category != CategoryUnclassified {
			return classified
		}
	}
	return c.Classify(err.Error())
}

// Reject returns the guidance of a client side rejection
func (c *Classifier) Reject(category Category) (classified Classified) {
	guidance, found := c.rejections[category]
	if !found {
		return c.fallback
	}
	return Classified{Category: category, Guidance: guidance}
}
