// Package view maps the session role onto the dashboard variant and its
// capability set. The three role dashboards share one template
// parametrized by capabilities instead of three copies.
package view

import (
	"github.com/rs/zerolog/log"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
)

// Capabilities are the actions a dashboard variant exposes.
type Capabilities struct {
	// CanEdit allows creating, updating, deleting and publishing events.
	CanEdit bool
	// CanSeeGuestList allows viewing and pruning per-event guest lists.
	CanSeeGuestList bool
	// HasEarlyAccess shows premium-only events before they are public.
	HasEarlyAccess bool
}

// View is a selected dashboard variant.
type View struct {
	// Name labels the variant in templates and logs.
	Name string
	Capabilities
}

// For selects the view for a role. Unknown or empty roles get the guest
// capability set; the original frontend rendered a blank dashboard body
// for them, which helped nobody.
func For(role model.Role) View {
	switch role {
	case model.RoleAdmin:
		return View{
			Name: "admin",
			Capabilities: Capabilities{
				CanEdit:         true,
				CanSeeGuestList: true,
				HasEarlyAccess:  true,
			},
		}
	case model.RolePremium:
		return View{
			Name: "premium",
			Capabilities: Capabilities{
				HasEarlyAccess: true,
			},
		}
	case model.RoleGuest:
		return View{Name: "guest"}
	default:
		if role != "" {
			log.Warn().Str("role", string(role)).Msg("unrecognized role, falling back to guest view")
		}
		return View{Name: "guest"}
	}
}
