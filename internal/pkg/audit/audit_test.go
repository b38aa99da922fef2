package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
)

type fakeRepo struct {
	events []models.AuditEvent
}

func (f *fakeRepo) Create(event *models.AuditEvent) error {
	event.ID = uint(len(f.events) + 1)
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeRepo) ListByAccount(accountID uint, limit int) ([]models.AuditEvent, error) {
	var out []models.AuditEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].AccountID != nil && *f.events[i].AccountID == accountID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func TestLogRejectsEmptyAction(t *testing.T) {
	svc := NewService(&fakeRepo{})

	_, err := svc.Log(context.Background(), Entry{Action: "  "})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestLogRecordsActorAndSubject(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	user := &models.User{ID: 7, FirstName: "Ada", LastName: "Lovelace"}
	account := &models.Account{ID: 3, Name: "Acme"}

	event, err := svc.Log(context.Background(), Entry{
		Action:   models.AuditMembershipAccepted,
		User:     user,
		Account:  account,
		Subject:  MembershipSubject(11),
		Metadata: map[string]any{"role": "member"},
		Request:  RequestInfo{IPAddress: "203.0.113.9", UserAgent: "curl/8"},
	})
	require.NoError(t, err)

	require.NotNil(t, event.UserID)
	assert.Equal(t, uint(7), *event.UserID)
	require.NotNil(t, event.AccountID)
	assert.Equal(t, uint(3), *event.AccountID)
	assert.Equal(t, models.SubjectMembership, event.SubjectKind)
	assert.Equal(t, uint(11), event.SubjectID)
	assert.Equal(t, "member", event.Metadata()["role"])
	assert.Equal(t, "203.0.113.9", event.IPAddress)
}

func TestDescription(t *testing.T) {
	tests := []struct {
		action string
		actor  string
		want   string
	}{
		{action: models.AuditMembershipAccepted, actor: "Ada Lovelace", want: "Ada Lovelace joined the account"},
		{action: models.AuditSubscriptionCreated, actor: "Ada Lovelace", want: "Subscription created"},
		{action: models.AuditPaymentSucceeded, actor: "", want: "Payment processed successfully"},
		{action: models.AuditAccountSwitched, actor: "", want: "Someone switched to this account"},
	}

	for _, tt := range tests {
		event := &models.AuditEvent{Action: tt.action}
		if got := Description(event, tt.actor); got != tt.want {
			t.Fatalf("Description(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestDescriptionUnknownAction(t *testing.T) {
	event := &models.AuditEvent{Action: "exported_csv", SubjectKind: models.SubjectAccount, SubjectID: 4}
	assert.Equal(t, "Ada performed exported_csv on account #4", Description(event, "Ada"))
}
