package cart

import (
	"errors"
	"fmt"

	"storefront/models"
)

// MsgNoActiveSession is shown when a cart write finds no shopping session.
const MsgNoActiveSession = "No active session"

var ErrNoActiveSession = errors.New("no active shopping session")

// PartialOrderError reports an order row that was written while its line
// items were not. The order is left in place.
type PartialOrderError struct {
	Order *models.Order
	Err   error
}

func (e *PartialOrderError) Error() string {
	return fmt.Sprintf("order %s created without items: %v", e.Order.ID, e.Err)
}

func (e *PartialOrderError) Unwrap() error { return e.Err }
