// Package domain holds typed identifiers shared across packages. Wrapping the
// raw integers keeps a member ID from being passed where a donation ID belongs.
package domain

import "strconv"

type (
	MemberID        int64
	AdministratorID int64
	DonationID      int64
	InvoiceID       int64
	PaymentID       int64
)

func (id MemberID) IsZero() bool        { return id == 0 }
func (id AdministratorID) IsZero() bool { return id == 0 }
func (id DonationID) IsZero() bool      { return id == 0 }
func (id InvoiceID) IsZero() bool       { return id == 0 }
func (id PaymentID) IsZero() bool       { return id == 0 }

func (id MemberID) String() string        { return strconv.FormatInt(int64(id), 10) }
func (id AdministratorID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id DonationID) String() string      { return strconv.FormatInt(int64(id), 10) }
func (id InvoiceID) String() string       { return strconv.FormatInt(int64(id), 10) }
func (id PaymentID) String() string       { return strconv.FormatInt(int64(id), 10) }

// ParseMemberID parses a decimal member ID, returning 0 on malformed input.
func ParseMemberID(s string) MemberID { return MemberID(parseInt64(s)) }

// ParseAdministratorID parses a decimal administrator ID.
func ParseAdministratorID(s string) AdministratorID { return AdministratorID(parseInt64(s)) }

// ParseDonationID parses a decimal donation ID.
func ParseDonationID(s string) DonationID { return DonationID(parseInt64(s)) }

// ParseInvoiceID parses a decimal invoice ID.
func ParseInvoiceID(s string) InvoiceID { return InvoiceID(parseInt64(s)) }

// ParsePaymentID parses a decimal payment ID.
func ParsePaymentID(s string) PaymentID { return PaymentID(parseInt64(s)) }

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
