package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidIntent is returned when an intent string yields no positive user id
// or an unusable target.
var ErrInvalidIntent = errors.New("invalid payment intent")

const (
	intentSep      = ":"
	tagTopup       = "bal"
	tagOrder       = "ord"
	intentFieldMin = 3
)

// Kind says what the money of a payment is for.
type Kind int

const (
	KindTopup Kind = iota + 1
	KindOrderPurchase
)

func (k Kind) String() string {
	switch k {
	case KindTopup:
		return "topup"
	case KindOrderPurchase:
		return "order_purchase"
	default:
		return "unknown"
	}
}

// Intent is carried through a provider and returned in its callback.
// OrderID is only meaningful for KindOrderPurchase.
type Intent struct {
	UserID  int64
	Kind    Kind
	OrderID int64
}

func Topup(userID int64) Intent {
	return Intent{UserID: userID, Kind: KindTopup}
}

func OrderPurchase(userID, orderID int64) Intent {
	return Intent{UserID: userID, Kind: KindOrderPurchase, OrderID: orderID}
}

// Encode renders the intent as "user_id:tag:target_id".
func (i Intent) Encode() string {
	switch i.Kind {
	case KindOrderPurchase:
		return fmt.Sprintf("%d%s%s%s%d", i.UserID, intentSep, tagOrder, intentSep, i.OrderID)
	default:
		return fmt.Sprintf("%d%s%s%s0", i.UserID, intentSep, tagTopup, intentSep)
	}
}

func (i Intent) String() string { return i.Encode() }

// DecodeIntent parses an intent string. Fields past the third are ignored.
// A string of fewer than three fields is tried as a bare user id (topup),
// which some providers leave behind when they truncate metadata.
// Unparsable ids decode as zero and are rejected.
func DecodeIntent(s string) (Intent, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, intentSep)
	if len(parts) < intentFieldMin {
		userID, err := strconv.ParseInt(s, 10, 64)
		if err != nil || userID <= 0 {
			return Intent{}, fmt.Errorf("%w: %q", ErrInvalidIntent, s)
		}
		return Topup(userID), nil
	}

	userID := parseID(parts[0])
	targetID := parseID(parts[2])
	if userID <= 0 {
		return Intent{}, fmt.Errorf("%w: zero user id in %q", ErrInvalidIntent, s)
	}

	switch parts[1] {
	case tagTopup:
		return Topup(userID), nil
	case tagOrder:
		if targetID <= 0 {
			return Intent{}, fmt.Errorf("%w: zero order id in %q", ErrInvalidIntent, s)
		}
		return OrderPurchase(userID, targetID), nil
	default:
		return Intent{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, parts[1])
	}
}

func parseID(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
