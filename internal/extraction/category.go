package extraction

import "strings"

// Category is a document category. Its value is the stable key used for
// persistence and routing.
type Category string

const (
	CategoryInsurance           Category = "insurance"
	CategoryPayment             Category = "payment"
	CategoryAgreement           Category = "agreement"
	CategoryDriverLicense       Category = "driver_license"
	CategoryTechnicalInspection Category = "technical_inspection"
	CategoryOther               Category = "other"
)

// DefaultCategory is used whenever no category is known
const DefaultCategory = CategoryOther

// categories lists every category in display order
var categories = []Category{
	CategoryInsurance,
	CategoryPayment,
	CategoryAgreement,
	CategoryDriverLicense,
	CategoryTechnicalInspection,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryInsurance:           "Insurance",
	CategoryPayment:             "Payment",
	CategoryAgreement:           "Agreement",
	CategoryDriverLicense:       "Driver's license",
	CategoryTechnicalInspection: "Technical inspection",
	CategoryOther:               "Other",
}

// Categories returns all categories in display order
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryFromKey maps a persisted key to its category.
// Unknown or empty keys map to DefaultCategory.
func CategoryFromKey(key string) Category {
	for _, c := range categories {
		if string(c) == key {
			return c
		}
	}
	return DefaultCategory
}

// Key returns the stable persistence key
func (c Category) Key() string {
	return string(c)
}

// Label returns the human readable name
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return categoryLabels[DefaultCategory]
}

// Index returns the position of the category in display order
func (c Category) Index() int {
	for i, cat := range categories {
		if cat == c {
			return i
		}
	}
	return len(categories) - 1
}

// MarshalText implements encoding.TextMarshaler
func (c Category) MarshalText() ([]byte, error) {
	return []byte(CategoryFromKey(string(c)).Key()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown keys decode to
// DefaultCategory rather than failing.
func (c *Category) UnmarshalText(text []byte) error {
	*c = CategoryFromKey(string(text))
	return nil
}

type categoryRule struct {
	category Category
	keywords []string
}

// classificationRules are evaluated in order and the first rule with a
// matching keyword wins. Narrow categories come before broad ones.
// Keywords padded with spaces only match as standalone tokens.
var classificationRules = []categoryRule{
	{
		category: CategoryTechnicalInspection,
		keywords: []string{
			"przegląd techniczny", "badanie techniczne", "stacja kontroli pojazdów",
			"diagnostic station", "technical inspection", "vehicle inspection", "mot test",
			"технический осмотр", "техосмотр", "діагностична картка", "технічний огляд",
		},
	},
	{
		category: CategoryDriverLicense,
		keywords: []string{
			"prawo jazdy", "prawa jazdy", "driver's license", "driver license", "driving licence",
			"водительское удостоверение", "водійське посвідчення", "посвідчення водія",
		},
	},
	{
		category: CategoryInsurance,
		keywords: []string{
			"ubezpieczenie", "polisa", "oc ", " oc ", "ac ", " ac ", "polisa ubezpieczeniowa",
			"insurance", "policy", "insurer", "coverage",
			"страхование", "страховка", "полис", "страхування", "поліс",
		},
	},
	{
		category: CategoryAgreement,
		keywords: []string{
			"umowa", "kontrakt", "porozumienie",
			"agreement", "contract",
			"договор", "контракт", "договір",
		},
	},
	{
		category: CategoryPayment,
		keywords: []string{
			"faktura", "rachunek", "płatność", "opłata",
			"invoice", "receipt", "payment", "bill",
			"счёт", "оплата", "платёж", "рахунок",
		},
	},
}

// ClassifyCategory detects a category from the full document text by
// case-insensitive keyword search. Blank text, or text matching no rule,
// yields no category; callers decide on the fallback.
func ClassifyCategory(fullText *string) (Category, bool) {
	if fullText == nil || strings.TrimSpace(*fullText) == "" {
		return "", false
	}
	text := strings.ToLower(*fullText)

	for _, rule := range classificationRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.category, true
			}
		}
	}
	return "", false
}
