// Package record decomposes a fetched disclosure file into attribute/reference
// pairs.
package record

// Attribute is a relationship name from the disclosure file vocabulary.
type Attribute string

const (
	Member       Attribute = "member"
	BelongTo     Attribute = "belongto"
	Control      Attribute = "control"
	ControlledBy Attribute = "controlledby"
	Vendor       Attribute = "vendor"
	Customer     Attribute = "customer"

	Social     Attribute = "social"
	Contact    Attribute = "contact"
	Disclosure Attribute = "disclosure"

	// Self marks the unit of work that starts a traversal at a root domain.
	// It is not part of the file vocabulary.
	Self Attribute = "self"
)

var symmetric = map[Attribute]bool{
	Member:       true,
	BelongTo:     true,
	Control:      true,
	ControlledBy: true,
	Vendor:       true,
	Customer:     true,
}

var asymmetric = map[Attribute]bool{
	Social:     true,
	Contact:    true,
	Disclosure: true,
}

// Symmetric attributes are expected to be mirrored by the target, so the crawler follows them.
func (a Attribute) Symmetric() bool {
	return symmetric[a]
}

// Known reports whether a belongs to the fixed vocabulary.
func (a Attribute) Known() bool {
	return symmetric[a] || asymmetric[a]
}

// All returns the vocabulary, symmetric attributes first.
func All() []Attribute {
	return []Attribute{Member, BelongTo, Control, ControlledBy, Vendor, Customer, Social, Contact, Disclosure}
}
