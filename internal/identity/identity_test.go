package identity

import "testing"

func TestMintedGuestsAreUnique(t *testing.T) {
	minter := NewGuestMinter()

	a := minter.Mint("Alice")
	b := minter.Mint("Alice")
	if a.ID == b.ID {
		t.Fatalf("guest tokens must be unique, got %q twice", a.ID)
	}
	if !a.IsGuest || a.DisplayName != "Alice" {
		t.Fatalf("unexpected identity %+v", a)
	}
}

func TestMintFillsMissingDisplayName(t *testing.T) {
	id := NewGuestMinter().Mint("")
	if id.DisplayName == "" {
		t.Fatal("expected a placeholder display name")
	}
}

func TestStaticProviderResolves(t *testing.T) {
	p := NewStaticProvider()

	user, err := p.Resolve("u1", "Alice")
	if err != nil || user.IsGuest || user.ID != "u1" {
		t.Fatalf("expected durable identity, got %+v err=%v", user, err)
	}

	guest, err := p.Resolve("", "Bob")
	if err != nil || !guest.IsGuest || guest.ID == "" {
		t.Fatalf("expected minted guest, got %+v err=%v", guest, err)
	}
}
