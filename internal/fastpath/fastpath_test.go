package fastpath

import "testing"

func TestClassifyBlocksCatastrophicAbsolutePaths(t *testing.T) {
	cases := []string{
		"/etc/shadow",
		"/etc/sudoers",
		"/etc/gshadow",
		"/sys/kernel/debug",
		"/boot/grub/grub.cfg",
	}
	for _, c := range cases {
		if got := Classify(c, "read"); got != Block {
			t.Errorf("Classify(%q) = %v, want Block", c, got)
		}
	}
}

func TestClassifyBlocksTraversalIntoSensitiveDirs(t *testing.T) {
	cases := []string{
		"../../../etc/passwd",
		"a/../../root/.ssh/id_rsa",
		"../../etc/sudoers.d/override",
	}
	for _, c := range cases {
		if got := Classify(c, "read"); got != Block {
			t.Errorf("Classify(%q) = %v, want Block", c, got)
		}
	}
}

func TestClassifyAllowsWhitelistedRelativeFiles(t *testing.T) {
	cases := []string{
		"src/main.go",
		"docs/README.md",
		"package.json",
		"Makefile",
		"scripts/build.sh",
	}
	for _, c := range cases {
		if got := Classify(c, "write"); got != Allow {
			t.Errorf("Classify(%q) = %v, want Allow", c, got)
		}
	}
}

func TestClassifyContinuesOnSuspiciousPatterns(t *testing.T) {
	cases := []string{
		".env",
		".env.production",
		"config/id_rsa",
		"secrets.yaml",
		"wallet.dat",
	}
	for _, c := range cases {
		if got := Classify(c, "read"); got != Continue {
			t.Errorf("Classify(%q) = %v, want Continue", c, got)
		}
	}
}

func TestClassifyContinuesOnAbsolutePathsNotCatastrophic(t *testing.T) {
	if got := Classify("/home/dev/project/main.go", "read"); got != Continue {
		t.Errorf("Classify(abs path) = %v, want Continue", got)
	}
}

func TestClassifyContinuesOnUnknownExtension(t *testing.T) {
	if got := Classify("binary.exe", "write"); got != Continue {
		t.Errorf("Classify(unknown ext) = %v, want Continue", got)
	}
}
