package domain

import (
	"fmt"
	"regexp"
)

var (
	bpnlPattern = regexp.MustCompile(`^BPNL[0-9A-Z]{12}$`)
	bpnsPattern = regexp.MustCompile(`^BPNS[0-9A-Z]{12}$`)
	bpnaPattern = regexp.MustCompile(`^BPNA[0-9A-Z]{12}$`)
)

// Partner is an external business entity exchanging stock data with us.
// It is the authenticated principal of every API call.
type Partner struct {
	BPNL string `json:"bpnl"`
	Name string `json:"name"`
}

// Validate checks that the partner carries a well-formed legal entity number.
func (p Partner) Validate() error {
	return ValidateBPNL(p.BPNL)
}

// ValidateBPNL checks a business partner number of a legal entity.
func ValidateBPNL(v string) error {
	if !bpnlPattern.MatchString(v) {
		return fmt.Errorf("%w: BPNL %q", ErrInvalidBPN, v)
	}
	return nil
}

// ValidateBPNS checks a business partner number of a site.
func ValidateBPNS(v string) error {
	if !bpnsPattern.MatchString(v) {
		return fmt.Errorf("%w: BPNS %q", ErrInvalidBPN, v)
	}
	return nil
}

// ValidateBPNA checks a business partner number of an address.
func ValidateBPNA(v string) error {
	if !bpnaPattern.MatchString(v) {
		return fmt.Errorf("%w: BPNA %q", ErrInvalidBPN, v)
	}
	return nil
}
