package main

import (
	"fmt"
	"testing"
	"time"
)

func TestAccounts(t *testing.T) {
	db := newTestDB(t)

	id, err := db.CreateAccount("alice", "hash")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateAccount("alice", "other"); err == nil {
		t.Error("usernames are unique")
	}

	acc, err := db.GetAccountByUsername("alice")
	if err != nil || acc == nil || acc.ID != id || acc.PassHash != "hash" {
		t.Fatalf("by username: %+v %v", acc, err)
	}
	acc, err = db.GetAccountByID(id)
	if err != nil || acc == nil || acc.Username != "alice" {
		t.Fatalf("by id: %+v %v", acc, err)
	}
	if acc, err := db.GetAccountByUsername("nobody"); acc != nil || err != nil {
		t.Errorf("missing account should be nil, nil; got %+v %v", acc, err)
	}

	if ok, _ := db.UsernameExists("alice"); !ok {
		t.Error("alice should exist")
	}
	if ok, _ := db.UsernameExists("bob"); ok {
		t.Error("bob should not exist")
	}

	if err := db.UpdatePassword(id, "new"); err != nil {
		t.Fatal(err)
	}
	if acc, _ := db.GetAccountByID(id); acc.PassHash != "new" {
		t.Errorf("password hash not updated: %q", acc.PassHash)
	}
}

func TestPurchases(t *testing.T) {
	db := newTestDB(t)
	id, _ := db.CreateAccount("carol", "hash")

	added, err := db.AddPurchase(id, "turbo")
	if err != nil || !added {
		t.Fatalf("first purchase: %v %v", added, err)
	}
	if added, _ := db.AddPurchase(id, "turbo"); added {
		t.Error("second purchase of the same item should not be added")
	}
	db.AddPurchase(id, "faster")

	items, err := db.PurchasedItems(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", items)
	}
	if other, _ := db.PurchasedItems(id + 1); len(other) != 0 {
		t.Errorf("other accounts own nothing, got %v", other)
	}
}

func TestChatHistory(t *testing.T) {
	db := newTestDB(t)
	id, _ := db.CreateAccount("dave", "hash")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var entries []ChatEntry
	for i := 0; i < 15; i++ {
		entries = append(entries, ChatEntry{
			AccountID: id,
			Username:  "dave",
			Team:      "RED",
			Message:   fmt.Sprintf("line %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	entries[0].AccountID = 0
	if err := db.InsertChatBatch(entries); err != nil {
		t.Fatal(err)
	}

	recent, err := db.RecentChat(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 10 {
		t.Fatalf("expected 10 lines, got %d", len(recent))
	}
	if recent[0].Message != "line 5" || recent[9].Message != "line 14" {
		t.Errorf("expected lines 5..14 oldest first, got %q..%q", recent[0].Message, recent[9].Message)
	}
	if !recent[9].CreatedAt.Equal(base.Add(14 * time.Second)) {
		t.Errorf("timestamp round trip: %v", recent[9].CreatedAt)
	}

	all, _ := db.RecentChat(100)
	if len(all) != 15 || all[0].AccountID != 0 || all[1].AccountID != id {
		t.Errorf("anonymous lines keep a zero account id, got %d lines", len(all))
	}
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)
	if v := db.GetSetting("missing"); v != "" {
		t.Errorf("unset setting should be empty, got %q", v)
	}
	db.SetSetting("k", "one")
	db.SetSetting("k", "two")
	if v := db.GetSetting("k"); v != "two" {
		t.Errorf("expected upserted value, got %q", v)
	}
}
