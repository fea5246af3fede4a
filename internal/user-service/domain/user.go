// Package domain models marketplace users as a closed set of roles sharing
// one core record. Role specific data lives in exactly one profile field,
// selected by Role; callers branch on the role-check methods, never on the
// presence of a profile.
package domain

import (
	"context"
	"strings"
	"time"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleClient, RoleSupplier, RoleAdmin:
		return r, nil
	}
	return "", apperr.Newf(apperr.Validation, "unknown role %q", s)
}

type ClientProfile struct {
	Address       string `json:"address,omitempty"`
	LoyaltyPoints int    `json:"loyalty_points"`
}

type SupplierProfile struct {
	CompanyName string `json:"company_name"`
	TaxID       string `json:"tax_id,omitempty"`
	Verified    bool   `json:"verified"`
}

type AdminProfile struct {
	Permissions []string `json:"permissions,omitempty"`
}

type User struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	FirstName string    `json:"first_name,omitempty"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Client   *ClientProfile   `json:"client,omitempty"`
	Supplier *SupplierProfile `json:"supplier,omitempty"`
	Admin    *AdminProfile    `json:"admin,omitempty"`
}

func NewClient(id, name, firstName, email, phone string, p ClientProfile) (*User, error) {
	u := &User{ID: id, Role: RoleClient, Name: name, FirstName: firstName, Email: email, Phone: phone, Client: &p}
	return u, u.Validate()
}

func NewSupplier(id, name, email, phone string, p SupplierProfile) (*User, error) {
	u := &User{ID: id, Role: RoleSupplier, Name: name, Email: email, Phone: phone, Supplier: &p}
	return u, u.Validate()
}

func NewAdmin(id, name, email string, p AdminProfile) (*User, error) {
	u := &User{ID: id, Role: RoleAdmin, Name: name, Email: email, Admin: &p}
	return u, u.Validate()
}

// Validate checks the core fields and that exactly the profile matching
// Role is present.
func (u *User) Validate() error {
	if u.ID == "" {
		return apperr.New(apperr.Validation, "user id is required")
	}
	if strings.TrimSpace(u.Name) == "" {
		return apperr.New(apperr.Validation, "user name is required")
	}
	if !strings.Contains(u.Email, "@") {
		return apperr.Newf(apperr.Validation, "user email %q is not valid", u.Email)
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}

	profiles := 0
	for _, set := range []bool{u.Client != nil, u.Supplier != nil, u.Admin != nil} {
		if set {
			profiles++
		}
	}
	ok := profiles == 1 &&
		(u.IsClient() && u.Client != nil ||
			u.IsSupplier() && u.Supplier != nil ||
			u.IsAdmin() && u.Admin != nil)
	if !ok {
		return apperr.Newf(apperr.Validation, "user %s must carry exactly the %s profile", u.ID, u.Role)
	}
	if u.IsSupplier() && strings.TrimSpace(u.Supplier.CompanyName) == "" {
		return apperr.New(apperr.Validation, "supplier company name is required")
	}
	return nil
}

func (u *User) IsClient() bool   { return u.Role == RoleClient }
func (u *User) IsSupplier() bool { return u.Role == RoleSupplier }
func (u *User) IsAdmin() bool    { return u.Role == RoleAdmin }

// CanSeeCustomer reports whether u may read documents of customerID.
func (u *User) CanSeeCustomer(customerID string) bool {
	return u.IsAdmin() || u.ID == customerID
}

// Address is the postal address carried by the client profile, if any.
func (u *User) Address() string {
	if u.Client == nil {
		return ""
	}
	return u.Client.Address
}

func (u *User) Clone() *User {
	c := *u
	if u.Client != nil {
		p := *u.Client
		c.Client = &p
	}
	if u.Supplier != nil {
		p := *u.Supplier
		c.Supplier = &p
	}
	if u.Admin != nil {
		p := AdminProfile{Permissions: append([]string(nil), u.Admin.Permissions...)}
		c.Admin = &p
	}
	return &c
}

// Directory resolves users by id.
type Directory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	SaveUser(ctx context.Context, u *User) error
}
