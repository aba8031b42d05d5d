package domain

import (
	"testing"
	"time"
)

func ptrTime(t time.Time) *time.Time { return &t }

func ptrString(s string) *string { return &s }

func TestRoleOutranks(t *testing.T) {
	cases := []struct {
		a, b Role
		want bool
	}{
		{RoleAdmin, RolePro, true},
		{RolePro, RoleSponsor, true},
		{RoleSponsor, RoleUser, true},
		{RoleUser, RoleUser, false},
		{RoleUser, RoleAdmin, false},
		{RoleSponsor, RolePro, false},
	}
	for _, tc := range cases {
		if got := tc.a.Outranks(tc.b); got != tc.want {
			t.Fatalf("Outranks(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleSponsor, RolePro, RoleAdmin} {
		if !r.Valid() {
			t.Fatalf("expected %s to be valid", r)
		}
	}
	if Role("superuser").Valid() {
		t.Fatalf("expected unknown role to be invalid")
	}
}

func TestLoginLocked(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	secret := UserSecret{FailedPasswordCount: 2, FirstFailedAt: ptrTime(now)}
	if secret.LoginLocked(now) {
		t.Fatalf("two failures must not lock the account")
	}

	secret.FailedPasswordCount = 3
	if !secret.LoginLocked(now.Add(time.Minute)) {
		t.Fatalf("three failures inside the window must lock the account")
	}

	if secret.LoginLocked(now.Add(LoginLockoutWindow)) {
		t.Fatalf("the lock must lapse once the window anchored to the first failure passes")
	}
}

func TestNextLoginFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	count, anchor := UserSecret{}.NextLoginFailure(now)
	if count != 1 || !anchor.Equal(now) {
		t.Fatalf("first failure: got (%d, %v), want (1, %v)", count, anchor, now)
	}

	first := now.Add(-time.Minute)
	secret := UserSecret{FailedPasswordCount: 1, FirstFailedAt: ptrTime(first)}
	count, anchor = secret.NextLoginFailure(now)
	if count != 2 || !anchor.Equal(first) {
		t.Fatalf("failure inside window: got (%d, %v), want (2, %v)", count, anchor, first)
	}

	stale := now.Add(-LoginLockoutWindow)
	secret = UserSecret{FailedPasswordCount: 5, FirstFailedAt: ptrTime(stale)}
	count, anchor = secret.NextLoginFailure(now)
	if count != 1 || !anchor.Equal(now) {
		t.Fatalf("expired window must restart the streak: got (%d, %v)", count, anchor)
	}
}

func TestResetTokenValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if (UserSecret{}).ResetTokenValid(now) {
		t.Fatalf("missing token must be invalid")
	}

	secret := UserSecret{
		ResetPasswordToken: ptrString("tok"),
		ResetPasswordSetAt: ptrTime(now.Add(-time.Hour)),
	}
	if !secret.ResetTokenValid(now) {
		t.Fatalf("fresh token must be valid")
	}

	secret.ResetPasswordSetAt = ptrTime(now.Add(-ResetTokenLifetime - time.Second))
	if secret.ResetTokenValid(now) {
		t.Fatalf("expired token must be invalid")
	}

	secret.ResetPasswordSetAt = ptrTime(now.Add(-time.Hour))
	secret.FailedResetCount = ResetLockoutThreshold
	if secret.ResetTokenValid(now) {
		t.Fatalf("token at the failed-attempt cap must be invalid")
	}
}

func TestDeleteTokenValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	secret := UserSecret{
		DeleteAccountToken: ptrString("tok"),
		DeleteAccountSetAt: ptrTime(now.Add(-ResetTokenLifetime)),
	}
	if !secret.DeleteTokenValid(now) {
		t.Fatalf("token at the lifetime boundary must still be valid")
	}

	secret.DeleteAccountSetAt = ptrTime(now.Add(-ResetTokenLifetime - time.Second))
	if secret.DeleteTokenValid(now) {
		t.Fatalf("expired delete token must be invalid")
	}
}

func TestMayResendReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !(UserEmailSecret{}).MayResendReset(now) {
		t.Fatalf("an address never mailed may always be mailed")
	}

	secret := UserEmailSecret{PasswordResetSentAt: ptrTime(now.Add(-time.Minute))}
	if secret.MayResendReset(now) {
		t.Fatalf("a reset mailed one minute ago must be suppressed")
	}

	secret.PasswordResetSentAt = ptrTime(now.Add(-ResetNotificationInterval))
	if !secret.MayResendReset(now) {
		t.Fatalf("the interval boundary must allow a resend")
	}
}

func TestUnregisteredShouldNotify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	record := UnregisteredPasswordReset{LastAttemptAt: now.Add(-time.Minute)}
	if record.ShouldNotify(now) {
		t.Fatalf("a recent attempt must suppress the notification")
	}

	record.LastAttemptAt = now.Add(-UnregisteredResetInterval)
	if !record.ShouldNotify(now) {
		t.Fatalf("the interval boundary must allow a notification")
	}
}
