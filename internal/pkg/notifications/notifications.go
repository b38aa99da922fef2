// Package notifications composes the transactional mails the app sends and
// hands them to the background job queue. Every function here is
// fire-and-forget: enqueue failures are logged and never propagate to the
// caller, so a lost mail can never roll back a domain mutation.
package notifications

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/env"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/jobqueue"
)

func appName() string {
	return env.GetEnv("APP_NAME", "Cornerstone")
}

func baseURL() string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base
}

func enqueue(to, subject, body string) {
	payload := jobqueue.MailJobPayload{To: to, Subject: subject, BodyHTML: body}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeSendMail, payload.ToMap()); err != nil {
		log.Errorf("[Notifications] failed to enqueue mail to %s: %v", to, err)
	}
}

// Welcome greets a freshly registered user.
func Welcome(user *models.User) {
	enqueue(user.Email,
		fmt.Sprintf("Welcome to %s", appName()),
		fmt.Sprintf("<p>Hi %s,</p><p>welcome to %s. Create an account or accept a pending invitation to get started.</p>", user.FirstName, appName()),
	)
}

// NewUserInvitation goes to an invited address with no local user yet.
func NewUserInvitation(m *models.Membership, account *models.Account) {
	link := fmt.Sprintf("%s/invitations/%s/accept", baseURL(), m.InvitationToken)
	enqueue(m.Email,
		fmt.Sprintf("You have been invited to %s", account.Name),
		fmt.Sprintf("<p>You have been invited to join <strong>%s</strong> on %s as %s.</p><p><a href=%q>Accept invitation</a></p>",
			account.Name, appName(), m.Role, link),
	)
}

// MemberInvitation goes to an invited address that already has a user.
func MemberInvitation(m *models.Membership, account *models.Account) {
	link := fmt.Sprintf("%s/invitations/%s/accept", baseURL(), m.InvitationToken)
	enqueue(m.Email,
		fmt.Sprintf("You have been added to %s", account.Name),
		fmt.Sprintf("<p>You have been invited to join <strong>%s</strong> as %s.</p><p><a href=%q>Accept invitation</a></p>",
			account.Name, m.Role, link),
	)
}

// MemberJoined tells the account owner someone accepted.
func MemberJoined(owner *models.User, joined *models.Membership, account *models.Account) {
	enqueue(owner.Email,
		fmt.Sprintf("New member in %s", account.Name),
		fmt.Sprintf("<p>%s joined <strong>%s</strong> as %s.</p>", joined.Email, account.Name, joined.Role),
	)
}

// InvitationDeclined tells the inviter their invitation was declined.
func InvitationDeclined(inviter *models.User, m *models.Membership, account *models.Account) {
	enqueue(inviter.Email,
		fmt.Sprintf("Invitation to %s declined", account.Name),
		fmt.Sprintf("<p>%s declined the invitation to <strong>%s</strong>.</p>", m.Email, account.Name),
	)
}

// MagicLink delivers a one-time login link.
func MagicLink(user *models.User, token string) {
	link := fmt.Sprintf("%s/magic-link/%s", baseURL(), token)
	enqueue(user.Email,
		fmt.Sprintf("Your %s login link", appName()),
		fmt.Sprintf("<p>Hi %s,</p><p><a href=%q>Click here to sign in</a>. The link expires in 15 minutes.</p>", user.FirstName, link),
	)
}

// SubscriptionCreated confirms a new paid subscription.
func SubscriptionCreated(owner *models.User, account *models.Account) {
	enqueue(owner.Email,
		fmt.Sprintf("Subscription active for %s", account.Name),
		fmt.Sprintf("<p>Your subscription for <strong>%s</strong> is now active on the %s plan.</p>", account.Name, account.PlanName),
	)
}

// SubscriptionCanceled confirms a cancellation.
func SubscriptionCanceled(owner *models.User, account *models.Account) {
	enqueue(owner.Email,
		fmt.Sprintf("Subscription canceled for %s", account.Name),
		fmt.Sprintf("<p>Your subscription for <strong>%s</strong> has been canceled.</p>", account.Name),
	)
}

// PaymentFailed alerts the owner about a failed invoice.
func PaymentFailed(owner *models.User, account *models.Account, payment *models.Payment) {
	enqueue(owner.Email,
		fmt.Sprintf("Payment failed for %s", account.Name),
		fmt.Sprintf("<p>A payment of %s for <strong>%s</strong> failed.</p><p>%s</p>",
			payment.FormattedAmount(), account.Name, payment.FailureReason),
	)
}

// TrialEnding warns the owner shortly before the trial runs out.
func TrialEnding(owner *models.User, account *models.Account) {
	enqueue(owner.Email,
		fmt.Sprintf("Your %s trial is ending soon", account.Name),
		fmt.Sprintf("<p>The trial for <strong>%s</strong> ends in a few days. Pick a plan to keep access.</p>", account.Name),
	)
}

// CheckoutCompleted confirms a completed checkout session.
func CheckoutCompleted(owner *models.User, account *models.Account) {
	enqueue(owner.Email,
		fmt.Sprintf("Welcome aboard, %s", account.Name),
		fmt.Sprintf("<p>Checkout for <strong>%s</strong> completed. Your plan: %s.</p>", account.Name, account.PlanName),
	)
}
