package cli

import "github.com/dmitrijs2005/certhub/internal/client/models"

// dashboardPath maps a role to its landing page.
func dashboardPath(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "/dashboard/admin"
	case models.RoleInstitution:
		return "/dashboard/institution"
	default:
		return "/dashboard/user"
	}
}
