package privilege

import "testing"

func TestHashPassphraseVerifiesCorrectValue(t *testing.T) {
	hash, err := hashPassphrase("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashPassphrase: %v", err)
	}
	if !verifyPassphrase(hash, "correct horse battery staple") {
		t.Error("expected the correct passphrase to verify")
	}
}

func TestHashPassphraseRejectsWrongValue(t *testing.T) {
	hash, err := hashPassphrase("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashPassphrase: %v", err)
	}
	if verifyPassphrase(hash, "wrong passphrase") {
		t.Error("expected an incorrect passphrase to be rejected")
	}
}

func TestHashPassphraseSaltsEachCall(t *testing.T) {
	a, err := hashPassphrase("same passphrase")
	if err != nil {
		t.Fatalf("hashPassphrase: %v", err)
	}
	b, err := hashPassphrase("same passphrase")
	if err != nil {
		t.Fatalf("hashPassphrase: %v", err)
	}
	if a == b {
		t.Error("expected distinct salts to produce distinct stored hashes")
	}
}

func TestVerifyPassphraseRejectsMalformedStore(t *testing.T) {
	cases := []string{"", "no-colon-here", "zz:also-not-hex"}
	for _, c := range cases {
		if verifyPassphrase(c, "anything") {
			t.Errorf("verifyPassphrase(%q, ...) = true, want false", c)
		}
	}
}
