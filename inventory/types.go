package inventory

import (
	"fmt"

	"github.com/Alturino/storefront/cart"
	"github.com/Alturino/storefront/internal/commerce"
)

// Snapshot maps variant ids to the live variant at fetch time.
type Snapshot map[string]commerce.Variant

func NewSnapshot(products ...commerce.Product) Snapshot {
	snapshot := Snapshot{}
	for _, p := range products {
		for _, v := range p.Variants {
			snapshot[v.ID] = v
		}
	}
	return snapshot
}

// exceeded reports the live maximum when quantity is above it. Untracked stock never is.
func exceeded(v commerce.Variant, quantity int) (int, bool) {
	available, tracked := v.Stock()
	return available, tracked && quantity > available
}

type Result struct {
	Message string          `json:"message,omitempty"`
	Type    cart.NoticeType `json:"type,omitempty"`
}

func (r Result) Empty() bool {
	return r.Message == ""
}

type AddResult struct {
	Success bool `json:"success"`
	Result
}

func noLongerAvailable(title string) Result {
	return Result{Message: fmt.Sprintf("%s is no longer available", title), Type: cart.NoticeError}
}

func outOfStock(title string) Result {
	return Result{Message: fmt.Sprintf("%s is out of stock", title), Type: cart.NoticeError}
}

func onlyLeft(available int) Result {
	return Result{Message: fmt.Sprintf("Only %d left in stock", available), Type: cart.NoticeWarning}
}
