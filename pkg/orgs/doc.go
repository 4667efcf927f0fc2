// Package orgs manages organizations and their memberships.
//
// # Overview
//
// An organization has a unique name and a creator. Creating one inserts the
// organization and the creator's membership in a single transaction; the
// creator's row carries no verification code, so the creator is a confirmed
// member from the start and can never be removed.
//
// Other agents join through invitations. Membership rows themselves are kept
// by package membership, shared with teams.
//
// # Usage Example
//
//	service := orgs.NewPostgresService(db)
//	org, err := service.CreateOrganization(ctx, "Acme", creator.ID)
//	if errors.Is(err, orgs.ErrDuplicateName) {
//		// "That organization is already registered"
//	}
//
// Renaming returns the previous name so pending invitations can follow it:
//
//	oldName, err := service.RenameOrganization(ctx, org.ID, "Acme Corp")
package orgs
