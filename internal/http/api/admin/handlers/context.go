package handlers

// Context keys set by the admin auth middleware.
const (
	ContextAdminIDKey       = "adminID"
	ContextAdminUsernameKey = "adminUsername"
)
