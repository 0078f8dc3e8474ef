package auth

// Resource and action identifiers submitted with authorization checks.
// The session store owns the role → permission policy; these are only names.

// Application resources
const (
	// ResourceIdea is the custom resource protecting the ideas board
	ResourceIdea = "idea"
)

// Resources defined by the session store itself
const (
	// ResourceOrganization covers organization settings
	ResourceOrganization = "stytch.organization"

	// ResourceMember covers member records of an organization
	ResourceMember = "stytch.member"

	// ResourceSelf covers the caller's own member record
	ResourceSelf = "stytch.self"
)

// Actions
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionSearch = "search"

	// ActionAny matches every action on a resource
	ActionAny = "*"
)
