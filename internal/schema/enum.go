package schema

import (
	"tradesim/pkg/exception"

	"github.com/yanun0323/errors"
)

// Side describes order direction.
type Side uint16

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

var sideNames = [...]string{
	SideBuy:  "buy",
	SideSell: "sell",
}

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) String() string {
	if !s.IsAvailable() {
		return "unknown"
	}
	return sideNames[s]
}

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return marshalEnum(s.IsAvailable(), s.String())
}

func (s *Side) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, sideNames[:], (*uint16)(s))
}

// OrderType describes order type.
type OrderType uint16

const (
	_orderType_beg OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	_orderType_end
)

var orderTypeNames = [...]string{
	OrderTypeMarket: "market",
	OrderTypeLimit:  "limit",
}

func (t OrderType) IsAvailable() bool {
	return t > _orderType_beg && t < _orderType_end
}

func (t OrderType) String() string {
	if !t.IsAvailable() {
		return "unknown"
	}
	return orderTypeNames[t]
}

func (t OrderType) MarshalText() ([]byte, error) {
	return marshalEnum(t.IsAvailable(), t.String())
}

func (t *OrderType) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, orderTypeNames[:], (*uint16)(t))
}

// OrderStatus is the lifecycle state reported by OrderUpdate events.
type OrderStatus uint16

const (
	_orderStatus_beg OrderStatus = iota
	OrderStatusPending
	OrderStatusSubmitted
	OrderStatusFilled
	OrderStatusPartiallyFilled
	OrderStatusCancelled
	OrderStatusRejected
	_orderStatus_end
)

var orderStatusNames = [...]string{
	OrderStatusPending:         "pending",
	OrderStatusSubmitted:       "submitted",
	OrderStatusFilled:          "filled",
	OrderStatusPartiallyFilled: "partially_filled",
	OrderStatusCancelled:       "cancelled",
	OrderStatusRejected:        "rejected",
}

func (s OrderStatus) IsAvailable() bool {
	return s > _orderStatus_beg && s < _orderStatus_end
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	if !s.IsAvailable() {
		return "unknown"
	}
	return orderStatusNames[s]
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	return marshalEnum(s.IsAvailable(), s.String())
}

func (s *OrderStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, orderStatusNames[:], (*uint16)(s))
}

// ParseOrderStatus maps the wire spelling back to an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	var status OrderStatus
	err := status.UnmarshalText([]byte(s))
	return status, err
}

// RiskReason names the risk limit that rejected an order.
type RiskReason uint16

const (
	RiskReasonNone RiskReason = iota
	RiskReasonMaxOrderValue
	RiskReasonMaxPositionSize
	RiskReasonMaxDrawdown
	_riskReason_end
)

var riskReasonNames = [...]string{
	RiskReasonNone:            "none",
	RiskReasonMaxOrderValue:   "max_order_value",
	RiskReasonMaxPositionSize: "max_position_size",
	RiskReasonMaxDrawdown:     "max_drawdown",
}

// RiskReasons lists every reason including RiskReasonNone.
func RiskReasons() []RiskReason {
	out := make([]RiskReason, 0, int(_riskReason_end))
	for r := RiskReasonNone; r < _riskReason_end; r++ {
		out = append(out, r)
	}
	return out
}

func (r RiskReason) IsAvailable() bool {
	return r < _riskReason_end
}

func (r RiskReason) String() string {
	if !r.IsAvailable() {
		return "unknown"
	}
	return riskReasonNames[r]
}

func (r RiskReason) MarshalText() ([]byte, error) {
	return marshalEnum(r.IsAvailable(), r.String())
}

func (r *RiskReason) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, riskReasonNames[:], (*uint16)(r))
}

func marshalEnum(ok bool, name string) ([]byte, error) {
	if !ok {
		return nil, errors.Wrapf(exception.ErrUnknownEnum, "marshal %s", name)
	}
	return []byte(name), nil
}

func unmarshalEnum(b []byte, names []string, dst *uint16) error {
	text := string(b)
	for i, name := range names {
		if name != "" && name == text {
			*dst = uint16(i)
			return nil
		}
	}
	return errors.Wrapf(exception.ErrUnknownEnum, "value: %q", text)
}
