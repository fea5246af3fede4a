package cli

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

// UserOptions holds flags for the user add command.
type UserOptions struct {
	*RootOptions
	ID      string
	Role    string
	Name    string
	First   string
	Email   string
	Phone   string
	Address string
	Company string
}

// NewUserCommand groups the user administration commands. "user add" is how
// the first admin gets in: the API only lets admins create users.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage marketplace users",
	}
	cmd.AddCommand(newUserAddCommand(rootOpts))
	return cmd
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or replace a user",
		Long: `Create or replace a user and print it as JSON.

Example:
  clickmarket user add --role admin --name Ops --email ops@clickmarket.test
  clickmarket user add --role supplier --name Kofi --email kofi@example.com --company "Kofi Farms"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := opts.user(time.Now().UTC())
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.services.Users.SaveUser(cmd.Context(), u); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(u)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "user id (generated when empty)")
	cmd.Flags().StringVar(&opts.Role, "role", "", "client, supplier or admin (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.First, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.Address, "address", "", "postal address of a client")
	cmd.Flags().StringVar(&opts.Company, "company", "", "company name of a supplier")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func (o *UserOptions) user(now time.Time) (*user.User, error) {
	role, err := user.ParseRole(o.Role)
	if err != nil {
		return nil, err
	}
	id := o.ID
	if id == "" {
		id = uuid.NewString()
	}
	u := &user.User{
		ID:        id,
		Role:      role,
		Name:      o.Name,
		FirstName: o.First,
		Email:     o.Email,
		Phone:     o.Phone,
		CreatedAt: now,
	}
	switch role {
	case user.RoleClient:
		u.Client = &user.ClientProfile{Address: o.Address}
	case user.RoleSupplier:
		u.Supplier = &user.SupplierProfile{CompanyName: o.Company}
	case user.RoleAdmin:
		u.Admin = &user.AdminProfile{}
	}
	return u, u.Validate()
}
