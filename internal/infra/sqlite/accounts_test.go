package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/rmachado/crediario/internal/domain"
)

// ─── CreateAccount ──────────────────────────────────────────────────────────

func TestCreateAccount(t *testing.T) {
	db := newTestDB(t)
	c := newTestCustomer(t, db)

	acct, err := db.CreateAccount(context.Background(), c.ID, domain.MustParseMoney("45.00"))
	if err != nil {
		t.Fatalf("CreateAccount() error: %v", err)
	}
	if acct.ID == "" {
		t.Error("expected a generated ID")
	}
	if acct.AccountNumber != "CR-000001" {
		t.Errorf("account number = %q, want CR-000001", acct.AccountNumber)
	}
	if acct.Status != domain.StatusActive {
		t.Errorf("status = %q, want active", acct.Status)
	}
	if !acct.PaidAmount.IsZero() {
		t.Errorf("paid = %s, want 0.00", acct.PaidAmount)
	}
	if acct.RemainingAmount.String() != "45.00" {
		t.Errorf("remaining = %s, want 45.00", acct.RemainingAmount)
	}
	if !acct.Consistent() {
		t.Error("new account must be consistent")
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	db := newTestDB(t)
	c := newTestCustomer(t, db)

	_, err := db.CreateAccount(context.Background(), c.ID, domain.MustParseMoney("0.00"))
	if !domain.IsValidation(err) {
		t.Errorf("zero total: got %v, want ValidationError", err)
	}
	_, err = db.CreateAccount(context.Background(), c.ID, domain.MustParseMoney("-5.00"))
	if !domain.IsValidation(err) {
		t.Errorf("negative total: got %v, want ValidationError", err)
	}
}

func TestCreateAccount_UnknownCustomer(t *testing.T) {
	db := newTestDB(t)
	_, err := db.CreateAccount(context.Background(), "ghost", domain.MustParseMoney("10.00"))
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("got %v, want ErrCustomerNotFound", err)
	}
}

func TestAccountNumbers_NeverReused(t *testing.T) {
	db := newTestDB(t)
	c := newTestCustomer(t, db)
	ctx := context.Background()

	first, err := db.CreateAccount(ctx, c.ID, domain.MustParseMoney("10.00"))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.DeleteAccountCascade(ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	// The sequence only moves forward: the deleted account's number must
	// not come back.
	second, err := db.CreateAccount(ctx, c.ID, domain.MustParseMoney("10.00"))
	if err != nil {
		t.Fatal(err)
	}
	if second.AccountNumber == first.AccountNumber {
		t.Errorf("account number %q was reused after deletion", first.AccountNumber)
	}
	if second.AccountNumber != "CR-000002" {
		t.Errorf("account number = %q, want CR-000002", second.AccountNumber)
	}
}

// ─── Get / List ─────────────────────────────────────────────────────────────

func TestGetAccount_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetAccount(context.Background(), "nope")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("got %v, want ErrAccountNotFound", err)
	}
}

func TestListAccounts_FilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c1 := newTestCustomer(t, db)
	c2 := newTestCustomer(t, db)

	a1, _ := db.CreateAccount(ctx, c1.ID, domain.MustParseMoney("10.00"))
	a2, _ := db.CreateAccount(ctx, c2.ID, domain.MustParseMoney("20.00"))
	a3, _ := db.CreateAccount(ctx, c1.ID, domain.MustParseMoney("30.00"))

	// Close a3 by paying it off.
	if _, err := db.ApplyDelta(ctx, a3, domain.MustParseMoney("30.00")); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListAccounts(ctx, domain.AccountFilter{})
	if err != nil {
		t.Fatalf("ListAccounts() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	// created_at ascending
	if all[0].ID != a1.ID || all[1].ID != a2.ID || all[2].ID != a3.ID {
		t.Error("accounts not ordered by creation time ascending")
	}

	active, err := db.ListAccounts(ctx, domain.AccountFilter{Status: domain.StatusActive})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Errorf("active accounts = %d, want 2", len(active))
	}

	byCustomer, err := db.ListAccounts(ctx, domain.AccountFilter{CustomerID: c1.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(byCustomer) != 2 {
		t.Errorf("customer accounts = %d, want 2", len(byCustomer))
	}

	both, err := db.ListAccounts(ctx, domain.AccountFilter{Status: domain.StatusClosed, CustomerID: c1.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(both) != 1 || both[0].ID != a3.ID {
		t.Error("combined filter should return only the closed account of c1")
	}
}

// ─── ApplyDelta ─────────────────────────────────────────────────────────────

func TestApplyDelta_PartialPayment(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "45.00")

	updated, err := db.ApplyDelta(context.Background(), acct, domain.MustParseMoney("20.00"))
	if err != nil {
		t.Fatalf("ApplyDelta() error: %v", err)
	}
	if updated.PaidAmount.String() != "20.00" {
		t.Errorf("paid = %s, want 20.00", updated.PaidAmount)
	}
	if updated.RemainingAmount.String() != "25.00" {
		t.Errorf("remaining = %s, want 25.00", updated.RemainingAmount)
	}
	if updated.Status != domain.StatusActive {
		t.Errorf("status = %q, want active", updated.Status)
	}
	if updated.Version != acct.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, acct.Version+1)
	}
	if !updated.Consistent() {
		t.Error("account must stay consistent")
	}
}

func TestApplyDelta_ClosesAtZero(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "15.00")

	updated, err := db.ApplyDelta(context.Background(), acct, domain.MustParseMoney("15.00"))
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.StatusClosed {
		t.Errorf("status = %q, want closed", updated.Status)
	}
	if !updated.RemainingAmount.IsZero() {
		t.Errorf("remaining = %s, want 0.00", updated.RemainingAmount)
	}
	if updated.ClosedAt == nil {
		t.Error("closed_at must be set on the active→closed edge")
	}

	// Persisted state must match.
	got, err := db.GetAccount(context.Background(), acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusClosed || got.ClosedAt == nil {
		t.Error("closed state not persisted")
	}
}

func TestApplyDelta_OvershootClamps(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "20.00")

	updated, err := db.ApplyDelta(context.Background(), acct, domain.MustParseMoney("50.00"))
	if err != nil {
		t.Fatal(err)
	}
	if updated.PaidAmount.String() != "50.00" {
		t.Errorf("paid = %s, want 50.00 (overshoot stays visible)", updated.PaidAmount)
	}
	if !updated.RemainingAmount.IsZero() {
		t.Errorf("remaining = %s, want 0.00 (clamped)", updated.RemainingAmount)
	}
	if updated.Status != domain.StatusClosed {
		t.Errorf("status = %q, want closed", updated.Status)
	}
}

func TestApplyDelta_ReopensOnReversal(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "15.00")
	ctx := context.Background()

	closed, err := db.ApplyDelta(ctx, acct, domain.MustParseMoney("15.00"))
	if err != nil {
		t.Fatal(err)
	}

	reopened, err := db.ApplyDelta(ctx, closed, domain.MustParseMoney("-15.00"))
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Status != domain.StatusActive {
		t.Errorf("status = %q, want active after reversal", reopened.Status)
	}
	if reopened.ClosedAt != nil {
		t.Error("closed_at must be cleared on reopen")
	}
	if reopened.RemainingAmount.String() != "15.00" {
		t.Errorf("remaining = %s, want 15.00", reopened.RemainingAmount)
	}
}

func TestApplyDelta_RejectsNegativePaid(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "15.00")

	_, err := db.ApplyDelta(context.Background(), acct, domain.MustParseMoney("-1.00"))
	if !errors.Is(err, domain.ErrNegativePaid) {
		t.Errorf("got %v, want ErrNegativePaid", err)
	}
}

func TestApplyDelta_StaleVersion(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "20.00")
	ctx := context.Background()

	// Another writer moves the account forward.
	if _, err := db.ApplyDelta(ctx, acct, domain.MustParseMoney("5.00")); err != nil {
		t.Fatal(err)
	}

	// Writing against the stale snapshot must fail, not lose the update.
	_, err := db.ApplyDelta(ctx, acct, domain.MustParseMoney("10.00"))
	if !errors.Is(err, domain.ErrStaleAccount) {
		t.Errorf("got %v, want ErrStaleAccount", err)
	}

	got, err := db.GetAccount(ctx, acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PaidAmount.String() != "5.00" {
		t.Errorf("paid = %s, want 5.00 (stale write must not apply)", got.PaidAmount)
	}
}

func TestApplyDelta_MissingAccount(t *testing.T) {
	db := newTestDB(t)
	ghost := &domain.CreditAccount{ID: "ghost", Version: 1, TotalAmount: domain.MustParseMoney("5.00")}
	_, err := db.ApplyDelta(context.Background(), ghost, domain.MustParseMoney("1.00"))
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("got %v, want ErrAccountNotFound", err)
	}
}

// ─── OverwriteAccount ───────────────────────────────────────────────────────

func TestOverwriteAccount_RepairsDrift(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "45.00")
	ctx := context.Background()

	paid := domain.MustParseMoney("20.00")
	remaining := domain.MustParseMoney("25.00")
	updated, err := db.OverwriteAccount(ctx, acct.ID, domain.AccountCorrection{
		PaidAmount:      &paid,
		RemainingAmount: &remaining,
	})
	if err != nil {
		t.Fatalf("OverwriteAccount() error: %v", err)
	}
	if updated.PaidAmount != paid || updated.RemainingAmount != remaining {
		t.Error("corrected amounts not applied")
	}
	if !updated.Consistent() {
		t.Error("overwrite must leave a consistent account")
	}
}

func TestOverwriteAccount_DerivesRemaining(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "45.00")

	// Raising the principal without stating remaining re-derives it.
	total := domain.MustParseMoney("60.00")
	updated, err := db.OverwriteAccount(context.Background(), acct.ID, domain.AccountCorrection{
		TotalAmount: &total,
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.RemainingAmount.String() != "60.00" {
		t.Errorf("remaining = %s, want 60.00", updated.RemainingAmount)
	}
}

func TestOverwriteAccount_RejectsBrokenIdentity(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "45.00")

	paid := domain.MustParseMoney("10.00")
	remaining := domain.MustParseMoney("99.00")
	_, err := db.OverwriteAccount(context.Background(), acct.ID, domain.AccountCorrection{
		PaidAmount:      &paid,
		RemainingAmount: &remaining,
	})
	if !errors.Is(err, domain.ErrIntegrity) {
		t.Errorf("got %v, want ErrIntegrity", err)
	}
}

func TestOverwriteAccount_RejectsStatusMismatch(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "45.00")

	closed := domain.StatusClosed
	_, err := db.OverwriteAccount(context.Background(), acct.ID, domain.AccountCorrection{
		Status: &closed,
	})
	if !errors.Is(err, domain.ErrIntegrity) {
		t.Errorf("closing an account with remaining > 0: got %v, want ErrIntegrity", err)
	}
}

func TestOverwriteAccount_Empty(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "45.00")
	_, err := db.OverwriteAccount(context.Background(), acct.ID, domain.AccountCorrection{})
	if !domain.IsValidation(err) {
		t.Errorf("got %v, want ValidationError", err)
	}
}

func TestOverwriteAccount_NotFound(t *testing.T) {
	db := newTestDB(t)
	paid := domain.MustParseMoney("1.00")
	_, err := db.OverwriteAccount(context.Background(), "ghost", domain.AccountCorrection{PaidAmount: &paid})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("got %v, want ErrAccountNotFound", err)
	}
}

// ─── DeleteAccountCascade ───────────────────────────────────────────────────

func TestDeleteAccountCascade(t *testing.T) {
	db := newTestDB(t)
	acct := newTestAccount(t, db, "45.00")
	ctx := context.Background()

	p1, err := db.CreatePayment(ctx, acct.ID, domain.MustParseMoney("10.00"), "cash", "")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := db.CreatePayment(ctx, acct.ID, domain.MustParseMoney("5.00"), "pix", "")
	if err != nil {
		t.Fatal(err)
	}

	number, deleted, err := db.DeleteAccountCascade(ctx, acct.ID)
	if err != nil {
		t.Fatalf("DeleteAccountCascade() error: %v", err)
	}
	if number != acct.AccountNumber {
		t.Errorf("account number = %q, want %q", number, acct.AccountNumber)
	}
	if deleted != 2 {
		t.Errorf("deleted payments = %d, want 2", deleted)
	}

	if _, err := db.GetAccount(ctx, acct.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("account lookup after delete: got %v, want ErrAccountNotFound", err)
	}
	for _, id := range []string{p1.ID, p2.ID} {
		if _, err := db.GetPayment(ctx, id); !errors.Is(err, domain.ErrPaymentNotFound) {
			t.Errorf("payment %s lookup after cascade: got %v, want ErrPaymentNotFound", id, err)
		}
	}
}

func TestDeleteAccountCascade_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, _, err := db.DeleteAccountCascade(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("got %v, want ErrAccountNotFound", err)
	}
}

// ─── Outstanding ────────────────────────────────────────────────────────────

func TestOutstanding(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c1 := newTestCustomer(t, db)
	c2 := newTestCustomer(t, db)

	a1, _ := db.CreateAccount(ctx, c1.ID, domain.MustParseMoney("45.00"))
	db.CreateAccount(ctx, c2.ID, domain.MustParseMoney("30.00"))

	// Pay 20.00 into a1.
	if _, err := db.ApplyDelta(ctx, a1, domain.MustParseMoney("20.00")); err != nil {
		t.Fatal(err)
	}

	report, err := db.Outstanding(ctx, domain.AccountFilter{})
	if err != nil {
		t.Fatalf("Outstanding() error: %v", err)
	}
	if report.Outstanding.String() != "55.00" {
		t.Errorf("outstanding = %s, want 55.00", report.Outstanding)
	}
	if report.TotalExtended.String() != "75.00" {
		t.Errorf("extended = %s, want 75.00", report.TotalExtended)
	}
	if report.TotalPaid.String() != "20.00" {
		t.Errorf("paid = %s, want 20.00", report.TotalPaid)
	}
	if report.ActiveAccounts != 2 || report.ClosedAccounts != 0 {
		t.Errorf("counts = %d/%d, want 2/0", report.ActiveAccounts, report.ClosedAccounts)
	}

	byCustomer, err := db.Outstanding(ctx, domain.AccountFilter{CustomerID: c1.ID})
	if err != nil {
		t.Fatal(err)
	}
	if byCustomer.Outstanding.String() != "25.00" {
		t.Errorf("c1 outstanding = %s, want 25.00", byCustomer.Outstanding)
	}
}

func TestOutstanding_Empty(t *testing.T) {
	db := newTestDB(t)
	report, err := db.Outstanding(context.Background(), domain.AccountFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Outstanding.IsZero() {
		t.Errorf("outstanding = %s, want 0.00", report.Outstanding)
	}
}
