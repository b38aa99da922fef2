package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyUserID           = "user_id"
	KeyUserEmail        = "user_email"
	KeyUserName         = "user_name"
	KeyCurrentAccountID = "current_account_id"
	KeyAuthenticated    = "authenticated"
	KeyContext          = "USER_CONTEXT"
)
