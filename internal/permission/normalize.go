package permission

import "strings"

// accentFolder strips the diacritics that appear in directory group
// names (French service labels). Tags are compared only after
// normalization, so enum-vs-free-text drift cannot creep back in.
var accentFolder = strings.NewReplacer(
	"É", "E", "È", "E", "Ê", "E", "Ë", "E",
	"À", "A", "Â", "A", "Ä", "A",
	"Î", "I", "Ï", "I",
	"Ô", "O", "Ö", "O",
	"Û", "U", "Ù", "U", "Ü", "U",
	"Ç", "C",
	"é", "E", "è", "E", "ê", "E", "ë", "E",
	"à", "A", "â", "A", "ä", "A",
	"î", "I", "ï", "I",
	"ô", "O", "ö", "O",
	"û", "U", "ù", "U", "ü", "U",
	"ç", "C",
)

// Normalize maps a raw service tag to its canonical form: uppercase,
// accents stripped, internal whitespace collapsed to underscores.
func Normalize(tag string) string {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	tag = accentFolder.Replace(tag)
	return strings.Join(strings.Fields(tag), "_")
}

// NormalizeSet normalizes every tag, dropping empties and duplicates
// while preserving first-seen order.
func NormalizeSet(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Contains reports set membership over normalized tags.
func Contains(set []string, tag string) bool {
	tag = Normalize(tag)
	for _, t := range set {
		if Normalize(t) == tag {
			return true
		}
	}
	return false
}
