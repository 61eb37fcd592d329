package service

import (
	"context"
	"testing"

	"github.com/mmeshcher/foodhall-system/internal/apperr"
	"github.com/mmeshcher/foodhall-system/internal/model"
)

func TestResolveShop(t *testing.T) {
	infos := []model.BarcodeInfo{
		{ShopID: "shopA", BarcodeStartsWith: []string{"A0", "AX"}},
		{ShopID: "shopB", BarcodeStartsWith: []string{"B0"}},
		{ShopID: "shopC", BarcodeStartsWith: []string{"A0123"}},
	}

	tests := []struct {
		name     string
		barcode  string
		wantShop string
		wantCode apperr.Code
	}{
		{
			name:     "unique prefix match",
			barcode:  "B0777",
			wantShop: "shopB",
		},
		{
			name:     "second prefix of the same shop",
			barcode:  "AX001",
			wantShop: "shopA",
		},
		{
			name:     "no shop matches",
			barcode:  "Z9999",
			wantCode: apperr.CodeBarcodeNoMatch,
		},
		{
			name:     "overlapping prefixes of different shops",
			barcode:  "A0123456",
			wantCode: apperr.CodeBarcodeAmbiguous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&stubRepo{barcodeInfos: infos}, nil, nil)

			info, err := svc.ResolveShop(context.Background(), tt.barcode)
			if tt.wantCode != "" {
				if apperr.CodeOf(err) != tt.wantCode {
					t.Fatalf("code = %s, want %s", apperr.CodeOf(err), tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveShop error: %v", err)
			}
			if info.ShopID != tt.wantShop {
				t.Fatalf("shop = %s, want %s", info.ShopID, tt.wantShop)
			}
		})
	}
}

func TestResolveTicket_UsesExistingBinding(t *testing.T) {
	repo := &stubRepo{
		binding: &model.TicketBarcodeBind{Barcode: "A0123", UID: "cashier1", TicketID: "t1"},
	}
	svc := NewService(repo, nil, nil)

	ticketID, err := svc.ResolveTicket(context.Background(), "cashier2", "A0123", []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("ResolveTicket error: %v", err)
	}
	if ticketID != "t1" {
		t.Fatalf("ticket = %s, want t1", ticketID)
	}
	if repo.listBarcodeCalls != 0 {
		t.Fatalf("prefix matching must be skipped when a binding exists")
	}
}

func TestResolveTicket_BindsUniqueMatch(t *testing.T) {
	repo := &stubRepo{
		barcodeInfos: []model.BarcodeInfo{
			{ShopID: "shopA", BarcodeStartsWith: []string{"A0"}},
		},
		tickets: []model.Ticket{
			{ID: "t1", ShopID: "shopA"},
			{ID: "t2", ShopID: "shopB"},
		},
	}
	svc := NewService(repo, nil, nil)

	ticketID, err := svc.ResolveTicket(context.Background(), "cashier1", "A0123", []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("ResolveTicket error: %v", err)
	}
	if ticketID != "t1" {
		t.Fatalf("ticket = %s, want t1", ticketID)
	}

	b := repo.createdBinding
	if b == nil {
		t.Fatalf("resolution must be persisted as a binding")
	}
	if b.Barcode != "A0123" || b.TicketID != "t1" || b.UID != "cashier1" {
		t.Fatalf("unexpected binding: %+v", b)
	}
}

func TestResolveTicket_LostBindRaceReturnsStoredTicket(t *testing.T) {
	// Другая касса успела закрепить этот штрихкод за своим билетом:
	// возвращается её билет, а не локально подобранный кандидат.
	repo := &stubRepo{
		barcodeInfos: []model.BarcodeInfo{
			{ShopID: "shopA", BarcodeStartsWith: []string{"A0"}},
		},
		tickets: []model.Ticket{
			{ID: "t1", ShopID: "shopA"},
		},
		storedBindingTicketID: "t-winner",
	}
	svc := NewService(repo, nil, nil)

	ticketID, err := svc.ResolveTicket(context.Background(), "cashier1", "A0123", []string{"t1"})
	if err != nil {
		t.Fatalf("ResolveTicket error: %v", err)
	}
	if ticketID != "t-winner" {
		t.Fatalf("ticket = %s, want t-winner (authoritative stored binding)", ticketID)
	}
}

func TestResolveTicket_NoCandidateInShop(t *testing.T) {
	repo := &stubRepo{
		barcodeInfos: []model.BarcodeInfo{
			{ShopID: "shopA", BarcodeStartsWith: []string{"A0"}},
		},
		tickets: []model.Ticket{
			{ID: "t2", ShopID: "shopB"},
		},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.ResolveTicket(context.Background(), "cashier1", "A0123", []string{"t2"})
	if apperr.CodeOf(err) != apperr.CodeBarcodeNoMatch {
		t.Fatalf("code = %s, want %s", apperr.CodeOf(err), apperr.CodeBarcodeNoMatch)
	}
	if repo.createdBinding != nil {
		t.Fatalf("failed resolution must not be bound")
	}
}

func TestResolveTicket_MultipleCandidatesInShop(t *testing.T) {
	repo := &stubRepo{
		barcodeInfos: []model.BarcodeInfo{
			{ShopID: "shopA", BarcodeStartsWith: []string{"A0"}},
		},
		tickets: []model.Ticket{
			{ID: "t1", ShopID: "shopA"},
			{ID: "t2", ShopID: "shopA"},
		},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.ResolveTicket(context.Background(), "cashier1", "A0123", []string{"t1", "t2"})
	if apperr.CodeOf(err) != apperr.CodeBarcodeAmbiguous {
		t.Fatalf("code = %s, want %s", apperr.CodeOf(err), apperr.CodeBarcodeAmbiguous)
	}
	if repo.createdBinding != nil {
		t.Fatalf("ambiguous resolution must not be bound")
	}
}

func TestResolveTicket_EmptyBarcode(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil)

	_, err := svc.ResolveTicket(context.Background(), "cashier1", "", []string{"t1"})
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("code = %s, want %s", apperr.CodeOf(err), apperr.CodeValidation)
	}
}
