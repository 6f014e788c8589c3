package types

import "testing"

func TestNewHeaderCompanyTaxID(t *testing.T) {
	base := Header{IssuerTaxID: "E1", IssuerName: "Emisor", RecipientTaxID: "R1", RecipientName: "Receptor"}

	tests := []struct {
		name        string
		role        Role
		wantRole    Role
		wantCompany string
		wantCounter string
		wantOK      bool
	}{
		{"received owns recipient", RoleReceived, RoleReceived, "R1", "E1", true},
		{"issued owns issuer", RoleIssued, RoleIssued, "E1", "R1", true},
		{"unknown owns nothing", RoleUnknown, RoleUnknown, "", "", false},
		{"invalid role collapses to unknown", Role("bogus"), RoleUnknown, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeader(base, tt.role)
			if h.Role != tt.wantRole {
				t.Errorf("Role = %q, want %q", h.Role, tt.wantRole)
			}
			if h.CompanyTaxID != tt.wantCompany {
				t.Errorf("CompanyTaxID = %q, want %q", h.CompanyTaxID, tt.wantCompany)
			}
			id, _, ok := h.Counterparty()
			if id != tt.wantCounter || ok != tt.wantOK {
				t.Errorf("Counterparty() = (%q, %v), want (%q, %v)", id, ok, tt.wantCounter, tt.wantOK)
			}
		})
	}
}

func TestHeaderKey(t *testing.T) {
	h := Header{
		IssuerTaxID:    "210000000012",
		RecipientTaxID: "219999990019",
		Series:         "A",
		Number:         "1234",
		IssueDate:      "2024-03-05",
		DocType:        "111",
	}
	want := "210000000012|219999990019|A|1234|2024-03-05|111"
	if got := h.Key(); got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}
