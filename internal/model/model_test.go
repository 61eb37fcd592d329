package model

import "testing"

func boolPtr(v bool) *bool    { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestInventoryRecordSufficient(t *testing.T) {
	tests := []struct {
		name   string
		record *InventoryRecord
		count  int64
		want   bool
	}{
		{
			name:   "boolean available",
			record: &InventoryRecord{Remain: boolPtr(true)},
			count:  10,
			want:   true,
		},
		{
			name:   "boolean unavailable",
			record: &InventoryRecord{Remain: boolPtr(false)},
			count:  1,
			want:   false,
		},
		{
			name:   "counted enough",
			record: &InventoryRecord{RemainCount: int64Ptr(5)},
			count:  5,
			want:   true,
		},
		{
			name:   "counted not enough",
			record: &InventoryRecord{RemainCount: int64Ptr(1)},
			count:  2,
			want:   false,
		},
		{
			name:   "zero count never sufficient",
			record: &InventoryRecord{Remain: boolPtr(true)},
			count:  0,
			want:   false,
		},
		{
			name:   "missing record",
			record: nil,
			count:  1,
			want:   false,
		},
		{
			name:   "record without either form",
			record: &InventoryRecord{},
			count:  1,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.record.Sufficient(tt.count)
			if got != tt.want {
				t.Fatalf("Sufficient(%d) = %v, want %v", tt.count, got, tt.want)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	admin := &AuthEntry{UID: "u1", AuthType: AuthTypeAdmin}
	shop := &AuthEntry{UID: "u2", AuthType: AuthTypeShop, ShopID: "s1"}

	if !Authorize(admin, AuthTypeAdmin) {
		t.Fatalf("admin must pass admin check")
	}
	if !Authorize(shop, AuthTypeShop, AuthTypeAdmin) {
		t.Fatalf("shop must pass shop-or-admin check")
	}
	if Authorize(shop, AuthTypeCashier) {
		t.Fatalf("shop must not pass cashier check")
	}
	if Authorize(nil, AuthTypeAdmin) {
		t.Fatalf("nil entry must never be authorized")
	}
	if Authorize(admin) {
		t.Fatalf("empty required set must deny")
	}
}

func TestOrderCheckInsufficientIDs(t *testing.T) {
	check := OrderCheck{
		Items: []ItemSufficiency{
			{GoodsID: "g1", Sufficient: true},
			{GoodsID: "g2", Sufficient: false},
			{GoodsID: "g3", Sufficient: false},
		},
	}

	ids := check.InsufficientIDs()
	if len(ids) != 2 || ids[0] != "g2" || ids[1] != "g3" {
		t.Fatalf("InsufficientIDs() = %v, want [g2 g3]", ids)
	}
}

func TestEnumValidity(t *testing.T) {
	for _, role := range []AuthType{AuthTypeAdmin, AuthTypeShop, AuthTypeCashier, AuthTypeAnonymous} {
		if !role.Valid() {
			t.Fatalf("role %s must be valid", role)
		}
	}
	if AuthType("SUPERUSER").Valid() {
		t.Fatalf("unknown role must be invalid")
	}

	for _, st := range []TicketStatus{TicketStatusProcessing, TicketStatusReady, TicketStatusReceived} {
		if !st.Valid() {
			t.Fatalf("status %s must be valid", st)
		}
	}
	if TicketStatus("BURNED").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}
