// Package collection defines the account grouping for entries.
package collection

import (
	"errors"
	"strings"
)

// LocalAccount is the account name used for device-only collections.
const LocalAccount = "LOCAL"

// Collection groups entries by sync account. Local collections have no
// remote counterpart, so hard deletes inside them are safe. Remote
// collections require deletions and moves to be staged through the
// dirty/deleted flags for the sync adapter to reconcile.
type Collection struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AccountName string `json:"accountName,omitempty"`
	Local       bool   `json:"local"`
	ReadOnly    bool   `json:"readOnly,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Remote reports whether the collection is backed by a sync account.
func (c Collection) Remote() bool {
	return !c.Local
}

// NewLocal builds a device-only collection with the given name.
func NewLocal(name string) Collection {
	return Collection{Name: name, AccountName: LocalAccount, Local: true}
}

// Validate checks the fields a collection needs before persisting.
func Validate(c Collection) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("collection: name required")
	}
	if !c.Local && strings.TrimSpace(c.AccountName) == "" {
		return errors.New("collection: remote collection requires an account name")
	}
	return nil
}
