package models

// OrderStatus is the lifecycle stage of an order
type OrderStatus string

const (
	StatusPendingPayment    OrderStatus = "pending_payment"
	StatusPaymentVerified   OrderStatus = "payment_verified"
	StatusPassportRequested OrderStatus = "passport_requested"
	StatusPassportVerified  OrderStatus = "passport_verified"
	StatusConfirmed         OrderStatus = "confirmed"
	StatusRejected          OrderStatus = "rejected"
)

var statusLabels = map[OrderStatus]string{
	StatusPendingPayment:    "Ожидает проверки платежа",
	StatusPaymentVerified:   "Платёж подтверждён",
	StatusPassportRequested: "Запрошены паспортные данные",
	StatusPassportVerified:  "Паспортные данные получены",
	StatusConfirmed:         "Заказ оформлен",
	StatusRejected:          "Отклонён",
}

// Valid reports whether s is one of the known statuses
func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the buyer-facing label, or the raw value for unknown statuses
func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsTerminal reports whether no action leaves s
func (s OrderStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// OrderAction is an admin-triggered edge of the order lifecycle
type OrderAction string

const (
	ActionVerifyPayment   OrderAction = "verify_payment"
	ActionReject          OrderAction = "reject"
	ActionRequestPassport OrderAction = "request_passport"
	ActionAttachPassport  OrderAction = "attach_passport"
	ActionConfirm         OrderAction = "confirm"
)

// Transition is one row of the lifecycle table
type Transition struct {
	Action OrderAction
	From   OrderStatus
	To     OrderStatus
}

// transitions is ordered the way actions are offered to the admin
var transitions = []Transition{
	{ActionVerifyPayment, StatusPendingPayment, StatusPaymentVerified},
	{ActionReject, StatusPendingPayment, StatusRejected},
	{ActionRequestPassport, StatusPaymentVerified, StatusPassportRequested},
	{ActionAttachPassport, StatusPassportRequested, StatusPassportVerified},
	{ActionConfirm, StatusPassportVerified, StatusConfirmed},
}

// Transitions returns a copy of the lifecycle table
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// AvailableActions returns the actions valid for an order in status s.
// Terminal and unknown statuses have none.
func AvailableActions(s OrderStatus) []OrderAction {
	var out []OrderAction
	for _, t := range transitions {
		if t.From == s {
			out = append(out, t.Action)
		}
	}
	return out
}

// Allows reports whether action a is offered for status s
func (s OrderStatus) Allows(a OrderAction) bool {
	for _, t := range transitions {
		if t.From == s && t.Action == a {
			return true
		}
	}
	return false
}

// Transition returns the table row for a
func (a OrderAction) Transition() (Transition, bool) {
	for _, t := range transitions {
		if t.Action == a {
			return t, true
		}
	}
	return Transition{}, false
}

// Valid reports whether a is a known action
func (a OrderAction) Valid() bool {
	_, ok := a.Transition()
	return ok
}

// Target returns the status an order lands in after a, or "" for unknown actions
func (a OrderAction) Target() OrderStatus {
	t, _ := a.Transition()
	return t.To
}
