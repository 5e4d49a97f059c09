package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxRefLen is the longest reference the pledge_ref and payment_ref
// columns hold.
const MaxRefLen = 64

// IdentityKind distinguishes the two kinds of donation record that can
// own floor cells.
type IdentityKind string

const (
	KindPledge  IdentityKind = "pledge"
	KindPayment IdentityKind = "payment"
)

// Identity names the donation occupying a set of cells.  Exactly one
// reference is carried; Kind decides which cell column it matches.
type Identity struct {
	Kind IdentityKind `json:"kind"`
	Ref  string       `json:"ref"`
}

// PledgeIdentity returns an identity for a pledge reference.
func PledgeIdentity(ref string) Identity { return Identity{Kind: KindPledge, Ref: ref} }

// PaymentIdentity returns an identity for a payment reference.
func PaymentIdentity(ref string) Identity { return Identity{Kind: KindPayment, Ref: ref} }

// ParseIdentity builds an identity from its kind name and reference,
// as received in URLs and CLI arguments.
func ParseIdentity(kind, ref string) (Identity, error) {
	id := Identity{Kind: IdentityKind(strings.ToLower(strings.TrimSpace(kind))), Ref: strings.TrimSpace(ref)}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Validate checks the kind and that the reference is non-empty and fits
// the reference columns.
func (i Identity) Validate() error {
	if i.Kind != KindPledge && i.Kind != KindPayment {
		return fmt.Errorf("unknown identity kind %q", i.Kind)
	}
	if i.Ref == "" {
		return errors.New("identity reference is empty")
	}
	if n := utf8.RuneCountInString(i.Ref); n > MaxRefLen {
		return fmt.Errorf("identity reference is %d characters, max %d", n, MaxRefLen)
	}
	return nil
}

func (i Identity) String() string { return string(i.Kind) + ":" + i.Ref }
