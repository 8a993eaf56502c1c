package matching

import "github.com/concilia-app/concilia-api/internal/domain"

// fuzzyLookupThreshold is the minimum similarity for a directory fuzzy
// scan to accept a customer.
const fuzzyLookupThreshold = 0.6

// Directory is the indexed view of a tenant's AdvBox customer registry.
// Built once per registry fetch and cached by the service layer; lookups
// are O(1) for exact document/name hits with a linear fuzzy fallback.
type Directory struct {
	byDocument map[string]domain.Customer
	byName     map[string]domain.Customer
	all        []domain.Customer
}

// NewDirectory indexes the registry, deduplicating by customer ID and
// normalizing documents and names.
func NewDirectory(customers []domain.Customer) *Directory {
	d := &Directory{
		byDocument: make(map[string]domain.Customer, len(customers)),
		byName:     make(map[string]domain.Customer, len(customers)),
		all:        make([]domain.Customer, 0, len(customers)),
	}
	seen := make(map[string]struct{}, len(customers))
	for _, c := range customers {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		c.Document = NormalizeDocument(c.Document)
		d.all = append(d.all, c)

		if len(c.Document) >= MinDocumentLen {
			if _, taken := d.byDocument[c.Document]; !taken {
				d.byDocument[c.Document] = c
			}
		}
		if name := NormalizeName(c.Name); name != "" {
			if _, taken := d.byName[name]; !taken {
				d.byName[name] = c
			}
		}
	}
	return d
}

// Len returns the number of distinct customers indexed.
func (d *Directory) Len() int { return len(d.all) }

// ByDocument returns the customer with the given normalized document.
func (d *Directory) ByDocument(document string) *domain.Customer {
	if c, ok := d.byDocument[NormalizeDocument(document)]; ok {
		return &c
	}
	return nil
}

// FindCustomerForPayer resolves a payer to a registry customer: exact
// document match first, then exact normalized-name match, then a fuzzy
// scan over the whole registry keeping the best hit at or above the
// lookup threshold. Returns nil when nothing qualifies.
func (d *Directory) FindCustomerForPayer(p domain.PayerInfo) *domain.Customer {
	if len(p.Document) >= MinDocumentLen {
		if c, ok := d.byDocument[p.Document]; ok {
			return &c
		}
	}

	name := p.BestName()
	if name == "" {
		return nil
	}
	if c, ok := d.byName[NormalizeName(name)]; ok {
		return &c
	}

	var best *domain.Customer
	bestScore := 0.0
	for i := range d.all {
		if score := FuzzyNameMatch(name, d.all[i].Name); score > bestScore {
			bestScore = score
			best = &d.all[i]
		}
	}
	if bestScore >= fuzzyLookupThreshold {
		return best
	}
	return nil
}
