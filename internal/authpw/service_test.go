package authpw

import (
	"context"
	"errors"
	"testing"

	"gutcheck/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	usersByEmail map[string]store.User
	usersByID    map[string]store.User
	updatedHash  string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		usersByEmail: make(map[string]store.User),
		usersByID:    make(map[string]store.User),
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.usersByEmail[email]
	if !ok {
		return store.User{}, errors.New("not found")
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.usersByID[id]
	if !ok {
		return store.User{}, errors.New("not found")
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.usersByEmail[user.Email] = user
	f.usersByID[user.ID] = user
	return nil
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.updatedHash = passwordHash
	user := f.usersByID[userID]
	user.PasswordHash = passwordHash
	f.usersByID[userID] = user
	f.usersByEmail[user.Email] = user
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "Editor@Example.com",
		Password:    "correct-horse",
		DisplayName: "Avery",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected generated user id")
	}
	if user.Email != "editor@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.Role != "editor" {
		t.Fatalf("default role = %q, want editor", user.Role)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in plain text")
	}

	got, err := svc.SignIn(context.Background(), "editor@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("signed in as %q, want %q", got.ID, user.ID)
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "a@example.com",
		Password:    "short",
		DisplayName: "A",
	})
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	req := SignUpRequest{Email: "a@example.com", Password: "correct-horse", DisplayName: "A"}
	if _, err := svc.SignUp(context.Background(), req); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(context.Background(), req); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate SignUp() error = %v, want ErrEmailTaken", err)
	}
}

func TestSignInWrongPasswordDoesNotRevealAccount(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	if _, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "a@example.com", Password: "correct-horse", DisplayName: "A",
	}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	var wrongPass string
	if _, err := svc.SignIn(context.Background(), "a@example.com", "wrong-password"); err != nil {
		wrongPass = err.Error()
	} else {
		t.Fatal("expected error for wrong password")
	}
	if _, err := svc.SignIn(context.Background(), "missing@example.com", "correct-horse"); err != nil {
		if err.Error() != wrongPass {
			t.Fatalf("error for unknown email %q differs from wrong password %q", err.Error(), wrongPass)
		}
	} else {
		t.Fatal("expected error for unknown email")
	}
}

func TestChangePassword(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "a@example.com", Password: "correct-horse", DisplayName: "A",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if err := svc.ChangePassword(context.Background(), user.ID, "wrong", "battery-staple"); err == nil {
		t.Fatal("expected error for wrong current password")
	}
	if err := svc.ChangePassword(context.Background(), user.ID, "correct-horse", "battery-staple"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(fs.updatedHash), []byte("battery-staple")); err != nil {
		t.Fatalf("stored hash does not match new password: %v", err)
	}
}
