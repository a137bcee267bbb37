package handlers

import (
	"path/filepath"
	"regexp"
	"strings"
)

// systemDirPrefixes are the host directories no handler lets a write/edit
// target resolve into.
var systemDirPrefixes = []string{
	"/etc", "/sys", "/boot", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/lib",
}

var traversalSensitive = regexp.MustCompile(`(^|/)(etc|root|shadow|passwd|sudoers|\.ssh|\.aws|\.gnupg)(/|$)`)

// validateWritablePath rejects empty paths and anything resolving into a
// protected system directory, mirroring mounts.ValidateWorkspace's
// resolve-then-check shape.
func validateWritablePath(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	resolved := resolvePath(path)
	for _, prefix := range systemDirPrefixes {
		if resolved == prefix || strings.HasPrefix(resolved, prefix+"/") {
			return false, "path resolves into a protected system directory: " + resolved
		}
	}
	if strings.Contains(path, "..") && traversalSensitive.MatchString(resolved) {
		return false, "path traversal resolves into a sensitive target: " + resolved
	}
	return true, ""
}

// resolvePath cleans a path the way the kernel would resolve it, without
// touching the filesystem (no symlink following — spec handlers reason
// about the literal path the host sent, not the live filesystem).
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(filepath.Clean("/" + path))
}

var tier1ReadBlocked = regexp.MustCompile(`/etc/shadow$|/etc/sudoers(\b|$)|/etc/gshadow$`)

var tier2ReadWarn = []*regexp.Regexp{
	regexp.MustCompile(`^/etc/passwd$`),
	regexp.MustCompile(`^/root/`),
	regexp.MustCompile(`id_rsa$|id_ed25519$|id_ecdsa$|id_dsa$`),
	regexp.MustCompile(`\.aws/credentials$`),
	regexp.MustCompile(`\.config/gcloud/|\.gnupg/`),
	regexp.MustCompile(`wallet\.dat|\.wallet$|keystore`),
	regexp.MustCompile(`/proc/\d+/environ`),
	regexp.MustCompile(`\.env(\.|$)`),
	regexp.MustCompile(`secrets?\.`),
	regexp.MustCompile(`cookies\.sqlite|Login Data`),
}

var dbFilePattern = regexp.MustCompile(`\.db$|\.sqlite3?$`)

// ReadTier classifies a read target per spec 4.10.4.
type ReadTier int

const (
	ReadTierAllow ReadTier = iota
	ReadTierWarn
	ReadTierBlock
)

// ClassifyReadPath implements the three-tier Read handler classification,
// reused as-is by the Glob/Grep/NotebookEdit path checks.
func ClassifyReadPath(path string) ReadTier {
	resolved := resolvePath(path)
	if tier1ReadBlocked.MatchString(resolved) {
		return ReadTierBlock
	}
	if strings.Contains(path, "..") && traversalSensitive.MatchString(resolved) {
		return ReadTierBlock
	}
	for _, re := range tier2ReadWarn {
		if re.MatchString(resolved) {
			return ReadTierWarn
		}
	}
	return ReadTierAllow
}

// IsDatabaseFile reports whether path is a Tier 3 (allow + track) database file.
func IsDatabaseFile(path string) bool {
	return dbFilePattern.MatchString(path)
}
