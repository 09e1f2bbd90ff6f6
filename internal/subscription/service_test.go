package subscription

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hitoshi/jobberwocky/internal/model"
	"github.com/hitoshi/jobberwocky/internal/repository"
)

// --- モック ---

// memorySubRepo は一意制約を模したインメモリの購読リポジトリ。
type memorySubRepo struct {
	subs      []model.Subscription
	createErr error
}

func (m *memorySubRepo) Create(_ context.Context, sub *model.Subscription) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, s := range m.subs {
		if s.Email == sub.Email {
			return model.NewDuplicateEmailError(sub.Email)
		}
	}
	sub.ID = int64(len(m.subs) + 1)
	m.subs = append(m.subs, *sub)
	return nil
}

func (m *memorySubRepo) All(context.Context) ([]model.Subscription, error) {
	return m.subs, nil
}

var _ repository.SubscriptionRepository = (*memorySubRepo)(nil)

func newTestService(repo repository.SubscriptionRepository) *Service {
	var buf bytes.Buffer
	return NewService(repo, slog.New(slog.NewJSONHandler(&buf, nil)))
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"a@example.com", "a@example.com", false},
		{"  b@example.com  ", "b@example.com", false},
		{"", "", true},
		{"   ", "", true},
		{"not-an-email", "", true},
		{"a@", "", true},
		{"@example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ValidateEmail(tt.input)
			if tt.wantErr {
				if !model.IsCode(err, model.ErrCodeValidation) {
					t.Errorf("err = %v, want VALIDATION_ERROR", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestService_Subscribe_CreatesSubscription(t *testing.T) {
	repo := &memorySubRepo{}
	svc := newTestService(repo)

	sub, err := svc.Subscribe(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.ID != 1 || sub.Email != "a@example.com" {
		t.Errorf("Subscribe() = %+v", sub)
	}
	if len(repo.subs) != 1 {
		t.Errorf("stored %d subscriptions, want 1", len(repo.subs))
	}
}

func TestService_Subscribe_DuplicateFailsSecondTime(t *testing.T) {
	repo := &memorySubRepo{}
	svc := newTestService(repo)

	if _, err := svc.Subscribe(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("first Subscribe: unexpected error: %v", err)
	}
	_, err := svc.Subscribe(context.Background(), " a@example.com ")
	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeDuplicateEmail {
		t.Fatalf("err = %v, want DUPLICATE_EMAIL", err)
	}
	if apiErr.Category != "validation" {
		t.Errorf("Category = %q, want validation", apiErr.Category)
	}
	if len(repo.subs) != 1 {
		t.Errorf("stored %d subscriptions, want 1", len(repo.subs))
	}
}

func TestService_Subscribe_InvalidEmail_NotStored(t *testing.T) {
	repo := &memorySubRepo{}
	svc := newTestService(repo)

	_, err := svc.Subscribe(context.Background(), "nope")
	if !model.IsCode(err, model.ErrCodeValidation) {
		t.Fatalf("err = %v, want VALIDATION_ERROR", err)
	}
	if len(repo.subs) != 0 {
		t.Errorf("stored %d subscriptions, want 0", len(repo.subs))
	}
}

func TestService_Subscribe_RepositoryError_Wrapped(t *testing.T) {
	svc := newTestService(&memorySubRepo{createErr: errors.New("db down")})

	_, err := svc.Subscribe(context.Background(), "a@example.com")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := model.AsAPIError(err); ok {
		t.Errorf("infrastructure error should not be an APIError: %v", err)
	}
}
